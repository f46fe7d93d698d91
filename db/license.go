package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	cls "github.com/renewhub/app/classes"
)

const licenseColumns = `id, name, license_type, department, supplier,
	renewal_date, service_owner_email, cost_type, monthly_cost,
	payment_method, card_digits_raw, cc_emails`

// write to licenses table. Used for initial insertion, not for
// updating an existing record. Card digits are encrypted before they
// touch the database.
func WriteLicense(pool *pgxpool.Pool, lic cls.License, encryptionKey string) error {
	var cardDigitsRaw []byte
	if lic.CardDigits != "" {
		var err error
		cardDigitsRaw, err = Encrypt(lic.CardDigits, encryptionKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt card digits, %v", err)
		}
	}

	query := `INSERT INTO licenses (
		id, name, license_type, department, supplier, renewal_date,
		service_owner_email, cost_type, monthly_cost, payment_method,
		card_digits_raw, cc_emails
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
	)`
	_, err := pool.Exec(context.Background(), query,
		lic.ID, lic.Name, lic.Type, lic.Department, lic.Supplier,
		lic.RenewalDate, lic.ServiceOwnerEmail, lic.CostType,
		lic.MonthlyCost, lic.PaymentMethod, cardDigitsRaw, lic.CCEmails,
	)
	if err != nil {
		return fmt.Errorf("failed to execute query, %v", err)
	}
	return nil
}

// get a single license by id
func ReadLicense(pool *pgxpool.Pool, licenseID string, encryptionKey string) (cls.License, error) {
	row := pool.QueryRow(
		context.Background(),
		"SELECT "+licenseColumns+" FROM licenses WHERE id=$1",
		licenseID,
	)

	lic, err := scanLicense(row, encryptionKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return lic, ErrNoLicense
		}
		return lic, fmt.Errorf("failed to scan row, %v", err)
	}

	return lic, nil
}

// get every license the register holds. No pagination - the register is
// a few hundred rows at most.
func ReadAllLicenses(pool *pgxpool.Pool, encryptionKey string) ([]cls.License, error) {
	rows, err := pool.Query(
		context.Background(),
		"SELECT "+licenseColumns+" FROM licenses",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows, %v", err)
	}
	defer rows.Close()

	var licenses []cls.License
	for rows.Next() {
		lic, err := scanLicense(rows, encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row, %v", err)
		}
		licenses = append(licenses, lic)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed during row iteration, %v", err)
	}

	return licenses, nil
}

func scanLicense(row pgx.Row, encryptionKey string) (cls.License, error) {
	var lic cls.License
	var cardDigitsRaw []byte

	err := row.Scan(
		&lic.ID, &lic.Name, &lic.Type, &lic.Department, &lic.Supplier,
		&lic.RenewalDate, &lic.ServiceOwnerEmail, &lic.CostType,
		&lic.MonthlyCost, &lic.PaymentMethod, &cardDigitsRaw, &lic.CCEmails,
	)
	if err != nil {
		return lic, err
	}

	if len(cardDigitsRaw) > 0 {
		digits, err := Decrypt(cardDigitsRaw, encryptionKey)
		if err != nil {
			return lic, fmt.Errorf("failed to decrypt card digits, %v", err)
		}
		lic.CardDigits = digits
	}

	return lic, nil
}

// update a license with a prebuilt SET query + args (see
// buildLicenseUpdateQuery in the handlers). Returns ErrNoLicense if
// nothing matched.
func UpdateLicenseFields(pool *pgxpool.Pool, query string, args []any) error {
	tag, err := pool.Exec(context.Background(), query, args...)
	if err != nil {
		return fmt.Errorf("failed to execute update, %v", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoLicense
	}
	return nil
}

func DeleteLicense(pool *pgxpool.Pool, licenseID string) error {
	tag, err := pool.Exec(
		context.Background(),
		"DELETE FROM licenses WHERE id = $1;",
		licenseID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete license, %v", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoLicense
	}
	return nil
}
