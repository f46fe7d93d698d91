package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	cls "github.com/renewhub/app/classes"
	"github.com/renewhub/app/db"
	"github.com/shopspring/decimal"
)

// a license plus its derived lifecycle status. Status is computed at
// request time, never read from storage.
type LicenseView struct {
	cls.License
	Status cls.LicenseStatus `json:"status"`
}

type ListLicensesResponse struct {
	Err      string        `json:"error"`
	Licenses []LicenseView `json:"licenses,omitempty"`
}

// returns every license in the register, with derived statuses
func onListLicenses(w http.ResponseWriter, r *http.Request, pool *pgxpool.Pool, encryptionKey string) {
	resp := ListLicensesResponse{
		Err:      "",
		Licenses: []LicenseView{},
	}

	// get user id
	userID, err := extractUserID(r)
	if err != nil {
		log.Printf("failed to authorise, %v", err)

		resp.Err = "Authorization error"
		sendStructToUser(resp, w, 401)
		return
	}
	log.Printf("%s : received onListLicenses request", userID)

	licenses, err := db.ReadAllLicenses(pool, encryptionKey)
	if err != nil {
		log.Printf("%s : failed to read from db, %v", userID, err)

		resp.Err = "Internal server error"
		sendStructToUser(resp, w, 500)
		return
	}

	now := time.Now()
	for _, lic := range licenses {
		resp.Licenses = append(resp.Licenses, LicenseView{
			License: lic,
			Status:  cls.Classify(lic.RenewalDate, now),
		})
	}

	sendStructToUser(resp, w, 200)
	log.Printf("%s : served %d licenses to user", userID, len(licenses))
}

type CreateLicenseRequest struct {
	Name              string   `json:"name"`
	Type              string   `json:"type"`
	Department        string   `json:"department"`
	Supplier          string   `json:"supplier"`
	RenewalDate       string   `json:"renewalDate"` // "2006-01-02"
	ServiceOwnerEmail string   `json:"serviceOwnerEmail"`
	CostType          string   `json:"costType"`
	MonthlyCost       string   `json:"monthlyCost"`
	PaymentMethod     string   `json:"paymentMethod"`
	CardDigits        string   `json:"cardDigits"`
	CCEmails          []string `json:"ccEmails"`
}

type CreateLicenseResponse struct {
	Err string `json:"err"`
	ID  string `json:"id,omitempty"`
}

func onCreateLicense(w http.ResponseWriter, r *http.Request, pool *pgxpool.Pool, encryptionKey string) {
	userID, err := extractUserID(r)
	if err != nil {
		log.Printf("failed to authorise, %v", err)
		sendStructToUser(CreateLicenseResponse{Err: "Authorization error"}, w, 401)
		return
	}

	var req CreateLicenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("%s : bad json request, %v", userID, err)
		sendStructToUser(CreateLicenseResponse{Err: "Badly formatted request"}, w, 400)
		return
	}

	lic, errMsg := licenseFromCreateRequest(req)
	if errMsg != "" {
		log.Printf("%s : invalid create request, %s", userID, errMsg)
		sendStructToUser(CreateLicenseResponse{Err: errMsg}, w, 400)
		return
	}

	if err := db.WriteLicense(pool, lic, encryptionKey); err != nil {
		log.Printf("%s : failed to write license, %v", userID, err)
		sendStructToUser(CreateLicenseResponse{Err: "Internal server error"}, w, 500)
		return
	}

	log.Printf("%s : created license %s (%s)", userID, lic.ID, lic.Name)
	sendStructToUser(CreateLicenseResponse{ID: lic.ID}, w, 200)
}

// validate a create request and build the License. Returns a user
// showable error string, empty on success.
func licenseFromCreateRequest(req CreateLicenseRequest) (cls.License, string) {
	var lic cls.License

	if req.Name == "" {
		return lic, "name is required"
	}
	renewalDate, err := time.Parse("2006-01-02", req.RenewalDate)
	if err != nil {
		return lic, "renewalDate must be formatted yyyy-mm-dd"
	}
	if !emailIsOK(req.ServiceOwnerEmail) {
		return lic, "serviceOwnerEmail is not a valid address"
	}
	if !cardDigitsAreOK(req.CardDigits) {
		return lic, "cardDigits must be 0-4 digits"
	}

	monthlyCost := decimal.Zero
	if req.MonthlyCost != "" {
		monthlyCost, err = decimal.NewFromString(req.MonthlyCost)
		if err != nil {
			return lic, "monthlyCost is not a valid number"
		}
	}

	for _, cc := range req.CCEmails {
		if cc == "" || !emailIsOK(cc) {
			return lic, fmt.Sprintf("ccEmails contains an invalid address: %s", cc)
		}
	}

	return cls.License{
		ID:                uuid.NewString(),
		Name:              req.Name,
		Type:              req.Type,
		Department:        req.Department,
		Supplier:          req.Supplier,
		RenewalDate:       renewalDate,
		ServiceOwnerEmail: req.ServiceOwnerEmail,
		CostType:          req.CostType,
		MonthlyCost:       monthlyCost,
		PaymentMethod:     req.PaymentMethod,
		CardDigits:        req.CardDigits,
		CCEmails:          req.CCEmails,
	}, ""
}

type UpdateLicenseRequest struct {
	LicenseID string         `json:"licenseID"`
	Fields    map[string]any `json:"fields"` // only the CHANGED fields go here
}

type UpdateLicenseResponse struct {
	UpdateFailed []string `json:"updateFailed"` // json keys the server couldnt update
	Err          string   `json:"err"`
}

// used to update fields of a license
// request body must be an UpdateLicenseRequest json
func onUpdateLicense(
	w http.ResponseWriter,
	r *http.Request,
	pool *pgxpool.Pool,
	encryptionKey string,
) {
	resp := UpdateLicenseResponse{
		UpdateFailed: []string{},
		Err:          "",
	}

	userID, err := extractUserID(r)
	if err != nil {
		log.Printf("failed to authorise, %v", err)

		resp.Err = "Authorization error"
		sendStructToUser(resp, w, 401)
		return
	}

	var req UpdateLicenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("%s : bad json request, %v", userID, err)

		resp.Err = "Badly formatted request"
		sendStructToUser(resp, w, 400)
		return
	}
	if req.LicenseID == "" || len(req.Fields) == 0 {
		resp.Err = "licenseID and at least one field are required"
		sendStructToUser(resp, w, 400)
		return
	}

	args, query, updateFailed := buildLicenseUpdateQuery(userID, req, encryptionKey)
	resp.UpdateFailed = updateFailed

	if len(args) == 1 {
		// nothing survived validation
		resp.Err = "No valid fields to update"
		sendStructToUser(resp, w, 400)
		return
	}

	err = db.UpdateLicenseFields(pool, query, args)
	if errors.Is(err, db.ErrNoLicense) {
		resp.Err = "License not found"
		sendStructToUser(resp, w, 404)
		return
	} else if err != nil {
		log.Printf("%s : failed to update license %s, %v", userID, req.LicenseID, err)

		resp.Err = "Internal server error"
		sendStructToUser(resp, w, 500)
		return
	}

	log.Printf("%s : updated license %s (%d fields)", userID, req.LicenseID, len(req.Fields)-len(updateFailed))
	sendStructToUser(resp, w, 200)
}

// json keys the update endpoint accepts, mapped to their columns
var updatableLicenseColumns = map[string]string{
	"name":              "name",
	"type":              "license_type",
	"department":        "department",
	"supplier":          "supplier",
	"renewalDate":       "renewal_date",
	"serviceOwnerEmail": "service_owner_email",
	"costType":          "cost_type",
	"monthlyCost":       "monthly_cost",
	"paymentMethod":     "payment_method",
	"cardDigits":        "card_digits_raw",
	"ccEmails":          "cc_emails",
}

// build the dynamic SET query for a license update. $1 is always the
// license id. Fields that fail validation are collected into
// updateFailed and skipped rather than failing the whole request.
func buildLicenseUpdateQuery(
	userID string,
	req UpdateLicenseRequest,
	encryptionKey string,
) ([]any, string, []string) {
	updateFailed := []string{}
	args := []any{req.LicenseID}
	argCount := 2

	var queryBuilder strings.Builder
	queryBuilder.WriteString("UPDATE licenses SET ")

	for jsonKey, value := range req.Fields {
		column, known := updatableLicenseColumns[jsonKey]
		if !known {
			log.Printf("%s : unknown update key %s", userID, jsonKey)
			updateFailed = append(updateFailed, jsonKey)
			continue
		}

		switch valType := value.(type) {
		case string:
			switch jsonKey {
			case "renewalDate":
				parsed, err := time.Parse("2006-01-02", valType)
				if err != nil {
					log.Printf("%s : bad renewalDate %s", userID, valType)
					updateFailed = append(updateFailed, jsonKey)
					continue
				}
				args = append(args, parsed)

			case "serviceOwnerEmail":
				if !emailIsOK(valType) {
					log.Printf("%s : %s is a non valid email", userID, valType)
					updateFailed = append(updateFailed, jsonKey)
					continue
				}
				args = append(args, valType)

			case "cardDigits":
				if !cardDigitsAreOK(valType) {
					log.Printf("%s : bad card digits value", userID)
					updateFailed = append(updateFailed, jsonKey)
					continue
				}
				if valType == "" {
					args = append(args, []byte(nil))
					break
				}
				encrypted, err := db.Encrypt(valType, encryptionKey)
				if err != nil {
					log.Printf("%s : failed to encrypt card digits, %v", userID, err)
					updateFailed = append(updateFailed, jsonKey)
					continue
				}
				args = append(args, encrypted)

			case "monthlyCost":
				cost, err := decimal.NewFromString(valType)
				if err != nil {
					log.Printf("%s : bad monthlyCost %s", userID, valType)
					updateFailed = append(updateFailed, jsonKey)
					continue
				}
				args = append(args, cost)

			default:
				args = append(args, valType)
			}
			queryBuilder.WriteString(fmt.Sprintf("%s = $%d, ", column, argCount))

		case []any:
			strArray := make([]string, len(valType))
			badElement := false
			for ind, item := range valType {
				item, isStr := item.(string)
				if !isStr || !emailIsOK(item) || item == "" {
					log.Printf("%s : bad element %v in array for key %s", userID, item, jsonKey)
					badElement = true
					break
				}
				strArray[ind] = item
			}
			if badElement {
				updateFailed = append(updateFailed, jsonKey)
				continue
			}
			queryBuilder.WriteString(fmt.Sprintf("%s = $%d::text[], ", column, argCount))
			args = append(args, pq.Array(strArray))

		default:
			log.Printf("%s : got bad type for key %s, type: %T, value: %v", userID, jsonKey, valType, value)
			updateFailed = append(updateFailed, jsonKey)
			continue
		}
		argCount++
	}

	query := strings.TrimSuffix(queryBuilder.String(), ", ") + " WHERE id = $1"
	return args, query, updateFailed
}

type DeleteLicenseRequest struct {
	LicenseID string `json:"licenseID"`
}

type DeleteLicenseResponse struct {
	Err string `json:"err"`
}

func onDeleteLicense(w http.ResponseWriter, r *http.Request, pool *pgxpool.Pool) {
	userID, err := extractUserID(r)
	if err != nil {
		log.Printf("failed to authorise, %v", err)
		sendStructToUser(DeleteLicenseResponse{Err: "Authorization error"}, w, 401)
		return
	}

	var req DeleteLicenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LicenseID == "" {
		log.Printf("%s : bad json request, %v", userID, err)
		sendStructToUser(DeleteLicenseResponse{Err: "Badly formatted request"}, w, 400)
		return
	}

	err = db.DeleteLicense(pool, req.LicenseID)
	if errors.Is(err, db.ErrNoLicense) {
		sendStructToUser(DeleteLicenseResponse{Err: "License not found"}, w, 404)
		return
	} else if err != nil {
		log.Printf("%s : failed to delete license %s, %v", userID, req.LicenseID, err)
		sendStructToUser(DeleteLicenseResponse{Err: "Internal server error"}, w, 500)
		return
	}

	log.Printf("%s : deleted license %s", userID, req.LicenseID)
	sendStructToUser(DeleteLicenseResponse{}, w, 200)
}

type DashboardResponse struct {
	Err              string `json:"err"`
	TotalLicenses    int    `json:"totalLicenses"`
	Active           int    `json:"active"`
	Pending          int    `json:"pending"`
	Expired          int    `json:"expired"`
	RenewingSoon     int    `json:"renewingSoon"` // flat window, see DashboardPendingWindowDays
	TotalMonthlyCost string `json:"totalMonthlyCost"`
}

// register-level counts for the dashboard. Note renewingSoon uses the
// flat 30 day window while the per-license pending status uses calendar
// month arithmetic - the two disagree for some months, which is known
// behaviour the frontend relies on.
func onGetDashboard(w http.ResponseWriter, r *http.Request, pool *pgxpool.Pool, encryptionKey string) {
	resp := DashboardResponse{}

	userID, err := extractUserID(r)
	if err != nil {
		log.Printf("failed to authorise, %v", err)

		resp.Err = "Authorization error"
		sendStructToUser(resp, w, 401)
		return
	}

	licenses, err := db.ReadAllLicenses(pool, encryptionKey)
	if err != nil {
		log.Printf("%s : failed to read from db, %v", userID, err)

		resp.Err = "Internal server error"
		sendStructToUser(resp, w, 500)
		return
	}

	now := time.Now()
	totalCost := decimal.Zero

	for _, lic := range licenses {
		switch cls.Classify(lic.RenewalDate, now) {
		case cls.StatusActive:
			resp.Active++
		case cls.StatusPending:
			resp.Pending++
		case cls.StatusExpired:
			resp.Expired++
		}

		if cls.RenewsWithinDays(lic.RenewalDate, now, cls.DashboardPendingWindowDays) {
			resp.RenewingSoon++
		}

		totalCost = totalCost.Add(lic.MonthlyCost)
	}

	resp.TotalLicenses = len(licenses)
	resp.TotalMonthlyCost = totalCost.String()

	sendStructToUser(resp, w, 200)
	log.Printf("%s : served dashboard (%d licenses)", userID, len(licenses))
}
