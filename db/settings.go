package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	cls "github.com/renewhub/app/classes"
)

// Both settings tables are single row, id = 1. Defaults are installed
// by the schema, so reads never come back empty on a migrated database.

func ReadNotificationSettings(pool *pgxpool.Pool) (cls.NotificationSettings, error) {
	var ns cls.NotificationSettings
	var tmplThirty, tmplSeven, tmplOne string

	row := pool.QueryRow(
		context.Background(),
		`SELECT enabled, tmpl_thirty_days, tmpl_seven_days, tmpl_one_day
		FROM notification_settings WHERE id = 1`,
	)
	err := row.Scan(&ns.Enabled, &tmplThirty, &tmplSeven, &tmplOne)
	if err != nil {
		return ns, fmt.Errorf("failed to scan row, %v", err)
	}

	ns.Templates = map[cls.Tier]string{
		cls.TierThirtyDays: tmplThirty,
		cls.TierSevenDays:  tmplSeven,
		cls.TierOneDay:     tmplOne,
	}
	return ns, nil
}

func WriteNotificationSettings(pool *pgxpool.Pool, ns cls.NotificationSettings) error {
	_, err := pool.Exec(
		context.Background(),
		`UPDATE notification_settings
		SET enabled = $1, tmpl_thirty_days = $2, tmpl_seven_days = $3, tmpl_one_day = $4
		WHERE id = 1`,
		ns.Enabled,
		ns.Templates[cls.TierThirtyDays],
		ns.Templates[cls.TierSevenDays],
		ns.Templates[cls.TierOneDay],
	)
	if err != nil {
		return fmt.Errorf("failed to execute query, %v", err)
	}
	return nil
}

func ReadEmailSettings(pool *pgxpool.Pool) (cls.EmailSettings, error) {
	var es cls.EmailSettings

	row := pool.QueryRow(
		context.Background(),
		`SELECT service_id, template_id, public_key, sender_email
		FROM email_settings WHERE id = 1`,
	)
	err := row.Scan(&es.ServiceID, &es.TemplateID, &es.PublicKey, &es.SenderEmail)
	if err != nil {
		return es, fmt.Errorf("failed to scan row, %v", err)
	}

	return es, nil
}

func WriteEmailSettings(pool *pgxpool.Pool, es cls.EmailSettings) error {
	_, err := pool.Exec(
		context.Background(),
		`UPDATE email_settings
		SET service_id = $1, template_id = $2, public_key = $3, sender_email = $4
		WHERE id = 1`,
		es.ServiceID, es.TemplateID, es.PublicKey, es.SenderEmail,
	)
	if err != nil {
		return fmt.Errorf("failed to execute query, %v", err)
	}
	return nil
}
