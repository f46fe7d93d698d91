package main

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	cls "github.com/renewhub/app/classes"
	"github.com/renewhub/app/db"
	"github.com/renewhub/app/emailjs"
)

// production implementation of the scheduler's dispatch port, backed by
// the EmailJS client. Configure swaps the credentials in when settings
// change - the scheduler itself never sees provider details.
type emailDispatcher struct {
	mu     sync.Mutex
	client *emailjs.Client
}

func (d *emailDispatcher) Configure(es cls.EmailSettings) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.client = emailjs.NewClient(es.ServiceID, es.TemplateID, es.PublicKey, es.SenderEmail)
}

// send one rendered reminder to the license's service owner, with best
// effort copies to any cc addresses. A failed cc copy is logged but
// does not fail the dispatch - the owner got their reminder.
func (d *emailDispatcher) Send(lic cls.License, message string, tier cls.Tier) error {
	d.mu.Lock()
	client := d.client
	d.mu.Unlock()

	if client == nil {
		return fmt.Errorf("email dispatcher is not configured")
	}

	subject := fmt.Sprintf("Renewal reminder: %s", lic.Name)

	if err := client.Send(lic.ServiceOwnerEmail, subject, message); err != nil {
		return fmt.Errorf("failed to send to owner, %v", err)
	}

	for _, cc := range lic.CCEmails {
		if err := client.Send(cc, subject, message); err != nil {
			log.Printf("%s : failed to send cc copy to %s, %v", lic.ID, cc, err)
		}
	}

	return nil
}

// watermark persistence on the app_state table
type dbWatermarkStore struct {
	pool *pgxpool.Pool
}

func (s *dbWatermarkStore) Get(ctx context.Context) (string, error) {
	return db.ReadStateValue(s.pool, db.KeyCheckWatermark)
}

func (s *dbWatermarkStore) Set(ctx context.Context, date string) error {
	return db.WriteStateValue(s.pool, db.KeyCheckWatermark, date)
}
