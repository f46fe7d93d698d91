package main

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	cls "github.com/renewhub/app/classes"
	"github.com/renewhub/app/db"
)

type GetNotificationSettingsResponse struct {
	Err                  string                   `json:"err"`
	NotificationSettings cls.NotificationSettings `json:"notificationSettings"`
	EmailConfigured      bool                     `json:"emailConfigured"`
}

func onGetNotificationSettings(w http.ResponseWriter, r *http.Request, pool *pgxpool.Pool) {
	resp := GetNotificationSettingsResponse{}

	userID, err := extractUserID(r)
	if err != nil {
		log.Printf("failed to authorise, %v", err)

		resp.Err = "Authorization error"
		sendStructToUser(resp, w, 401)
		return
	}

	ns, err := db.ReadNotificationSettings(pool)
	if err != nil {
		log.Printf("%s : failed to read notification settings, %v", userID, err)

		resp.Err = "Internal server error"
		sendStructToUser(resp, w, 500)
		return
	}

	es, err := db.ReadEmailSettings(pool)
	if err != nil {
		log.Printf("%s : failed to read email settings, %v", userID, err)

		resp.Err = "Internal server error"
		sendStructToUser(resp, w, 500)
		return
	}

	// credentials themselves never leave the server
	resp.NotificationSettings = ns
	resp.EmailConfigured = es.Configured()
	sendStructToUser(resp, w, 200)
}

type UpdateNotificationSettingsRequest struct {
	NotificationSettings cls.NotificationSettings `json:"notificationSettings"`
}

type UpdateSettingsResponse struct {
	Err string `json:"err"`
}

// persists new reminder settings, then restarts the scheduler so the
// new snapshot takes effect. The restart is the documented way settings
// changes propagate - the scheduler does not watch for live updates.
func onUpdateNotificationSettings(w http.ResponseWriter, r *http.Request, pool *pgxpool.Pool) {
	userID, err := extractUserID(r)
	if err != nil {
		log.Printf("failed to authorise, %v", err)
		sendStructToUser(UpdateSettingsResponse{Err: "Authorization error"}, w, 401)
		return
	}

	var req UpdateNotificationSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("%s : bad json request, %v", userID, err)
		sendStructToUser(UpdateSettingsResponse{Err: "Badly formatted request"}, w, 400)
		return
	}

	if err := db.WriteNotificationSettings(pool, req.NotificationSettings); err != nil {
		log.Printf("%s : failed to write notification settings, %v", userID, err)
		sendStructToUser(UpdateSettingsResponse{Err: "Internal server error"}, w, 500)
		return
	}

	if err := restartSchedulerFromDB(pool); err != nil {
		log.Printf("%s : failed to restart scheduler, %v", userID, err)
		sendStructToUser(UpdateSettingsResponse{Err: "Internal server error"}, w, 500)
		return
	}

	log.Printf("%s : updated notification settings (enabled: %t)", userID, req.NotificationSettings.Enabled)
	sendStructToUser(UpdateSettingsResponse{}, w, 200)
}

type UpdateEmailSettingsRequest struct {
	EmailSettings cls.EmailSettings `json:"emailSettings"`
}

func onUpdateEmailSettings(w http.ResponseWriter, r *http.Request, pool *pgxpool.Pool) {
	userID, err := extractUserID(r)
	if err != nil {
		log.Printf("failed to authorise, %v", err)
		sendStructToUser(UpdateSettingsResponse{Err: "Authorization error"}, w, 401)
		return
	}

	var req UpdateEmailSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("%s : bad json request, %v", userID, err)
		sendStructToUser(UpdateSettingsResponse{Err: "Badly formatted request"}, w, 400)
		return
	}

	for _, email := range []string{req.EmailSettings.SenderEmail} {
		if email != "" && !emailIsOK(email) {
			sendStructToUser(UpdateSettingsResponse{Err: "senderEmail is not a valid address"}, w, 400)
			return
		}
	}

	if err := db.WriteEmailSettings(pool, req.EmailSettings); err != nil {
		log.Printf("%s : failed to write email settings, %v", userID, err)
		sendStructToUser(UpdateSettingsResponse{Err: "Internal server error"}, w, 500)
		return
	}

	if err := restartSchedulerFromDB(pool); err != nil {
		log.Printf("%s : failed to restart scheduler, %v", userID, err)
		sendStructToUser(UpdateSettingsResponse{Err: "Internal server error"}, w, 500)
		return
	}

	log.Printf("%s : updated email settings (configured: %t)", userID, req.EmailSettings.Configured())
	sendStructToUser(UpdateSettingsResponse{}, w, 200)
}

type TriggerCheckResponse struct {
	Err    string      `json:"err"`
	Report CycleReport `json:"report"`
}

// run a check cycle now, outside the daily schedule. Reads a fresh
// settings snapshot and responds once every dispatch has settled.
func onTriggerCheck(w http.ResponseWriter, r *http.Request, pool *pgxpool.Pool) {
	resp := TriggerCheckResponse{}

	userID, err := extractUserID(r)
	if err != nil {
		log.Printf("failed to authorise, %v", err)

		resp.Err = "Authorization error"
		sendStructToUser(resp, w, 401)
		return
	}
	log.Printf("%s : received onTriggerCheck request", userID)

	ns, err := db.ReadNotificationSettings(pool)
	if err != nil {
		log.Printf("%s : failed to read notification settings, %v", userID, err)

		resp.Err = "Internal server error"
		sendStructToUser(resp, w, 500)
		return
	}
	es, err := db.ReadEmailSettings(pool)
	if err != nil {
		log.Printf("%s : failed to read email settings, %v", userID, err)

		resp.Err = "Internal server error"
		sendStructToUser(resp, w, 500)
		return
	}

	report, err := notifScheduler.TriggerManualCheck(r.Context(), ns, es)
	if err != nil {
		// only ErrCycleInFlight comes out of a manual check
		resp.Err = "A check is already running, try again shortly"
		sendStructToUser(resp, w, 409)
		return
	}

	resp.Report = report
	sendStructToUser(resp, w, 200)
	log.Printf(
		"%s : manual check finished, %d sent, %d failed",
		userID, report.TotalSent(), report.TotalFailed(),
	)
}

// re-read settings and re-enter Start, replacing the previous timer and
// settings snapshot. The persisted watermark survives, so a same-day
// restart cannot double-send.
func restartSchedulerFromDB(pool *pgxpool.Pool) error {
	ns, err := db.ReadNotificationSettings(pool)
	if err != nil {
		return err
	}
	es, err := db.ReadEmailSettings(pool)
	if err != nil {
		return err
	}

	emailPort.Configure(es)
	notifScheduler.Start(ns, es)
	return nil
}
