package main

import (
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	cls "github.com/renewhub/app/classes"
	"github.com/renewhub/app/common"
	"github.com/renewhub/app/db"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"
)

func launchRegisterExporter(
	fnameChan chan<- string,
	pool *pgxpool.Pool,
	encryptionKey string,
) {
	log.Printf("registerExporter : launched register exporter. ")

	for {
		nextRunTime := getNextExportTime()
		durationUntilNextRun := time.Until(nextRunTime)

		timer := time.NewTimer(durationUntilNextRun)
		<-timer.C

		log.Printf("registerExporter : exporting license register…")

		filename, err := prepRegisterExport(pool, encryptionKey)
		if err != nil {
			common.LogAndSendAlertF(
				"registerExporter : failed to prep register for export, %v", err,
			)
			continue
		}

		log.Printf("registerExporter : sending %s to discord bot", filename)
		fnameChan <- filename
	}
}

// create and save a workbook containing the full license register. The
// returned string is the filename of where the file was saved
func prepRegisterExport(pool *pgxpool.Pool, encryptionKey string) (string, error) {
	file := xlsx.NewFile()

	// create a summary sheet of costs per department
	deptSheet, err := file.AddSheet("Departments")
	if err != nil {
		return "", fmt.Errorf("failed to add departments sheet, %v", err)
	}
	deptHeaderRow := deptSheet.AddRow()
	deptHeaderRow.AddCell().SetString("Department")
	deptHeaderRow.AddCell().SetString("Licenses")
	deptHeaderRow.AddCell().SetString("TotalMonthlyCost")

	licenses, err := db.ReadAllLicenses(pool, encryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to fetch licenses, %v", err)
	}

	now := time.Now()

	// maps to hold per department counts and costs
	countMap := make(map[string]int)
	costMap := make(map[string]decimal.Decimal)

	for _, lic := range licenses {
		dept := lic.Department
		if dept == "" {
			dept = "Unassigned"
		}

		// check if a sheet for this department exists
		sheet, ok := file.Sheet[dept]
		if !ok {
			// create sheet for this department
			sheet, err = file.AddSheet(dept)
			if err != nil {
				return "", fmt.Errorf("failed to add sheet, %v", err)
			}
			// add column headers
			headerRow := sheet.AddRow()
			headerRow.AddCell().SetString("Name")
			headerRow.AddCell().SetString("Type")
			headerRow.AddCell().SetString("Supplier")
			headerRow.AddCell().SetString("RenewalDate")
			headerRow.AddCell().SetString("Status")
			headerRow.AddCell().SetString("ServiceOwner")
			headerRow.AddCell().SetString("CostType")
			headerRow.AddCell().SetString("MonthlyCost")
			headerRow.AddCell().SetString("PaymentMethod")
		}

		// add this license to the department's sheet
		row := sheet.AddRow()
		row.AddCell().SetString(lic.Name)
		row.AddCell().SetString(lic.Type)
		row.AddCell().SetString(lic.Supplier)
		row.AddCell().SetString(lic.RenewalDate.Format("2006-01-02"))
		row.AddCell().SetString(string(cls.Classify(lic.RenewalDate, now)))
		row.AddCell().SetString(lic.ServiceOwnerEmail)
		row.AddCell().SetString(lic.CostType)
		row.AddCell().SetFloat(lic.MonthlyCost.InexactFloat64())
		row.AddCell().SetString(lic.PaymentMethod)

		// update totals for this department
		countMap[dept]++
		costMap[dept] = costMap[dept].Add(lic.MonthlyCost)
	}

	// populate departments sheet
	for dept, count := range countMap {
		row := deptSheet.AddRow()
		row.AddCell().SetString(dept)
		row.AddCell().SetInt(count)
		row.AddCell().SetFloat(costMap[dept].InexactFloat64())
	}

	// save the xlsx file
	currentDate := time.Now().UTC().Format("2January") // "2" for day without leading zero, "January" for full month
	filename := "license_register_" + currentDate + ".xlsx"
	err = file.Save(filename)
	if err != nil {
		return "", fmt.Errorf("failed to save file: %v", err)
	}

	log.Printf(
		"registerExporter : successfully exported (%d) licenses into %s",
		len(licenses), filename,
	)

	return filename, nil
}

// getNextExportTime calculates the next time the exporter should run.
func getNextExportTime() time.Time {
	now := time.Now()

	// find the next Monday - mondays at 8am is when the ops team review
	// the register
	nextRunTime := time.Date(
		now.Year(), now.Month(), now.Day(),
		8, 0, 0, 0, time.UTC,
	)
	for nextRunTime.Weekday() != time.Monday {
		nextRunTime = nextRunTime.Add(24 * time.Hour)
	}

	// if we've already passed the run time for this week, schedule for next week.
	if nextRunTime.Before(now) {
		nextRunTime = nextRunTime.Add(7 * 24 * time.Hour)
	}

	return nextRunTime
}
