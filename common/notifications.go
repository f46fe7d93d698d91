package common

import (
	"fmt"
	"log"

	dwh "github.com/nat-echlin/dwhooks"
	cls "github.com/renewhub/app/classes"
)

var RENEWHUB_BOT_PROFILE_PICTURE_URL string
var STAFF_DISC_WH_URL string

// send an alert to the staff alerts webhook
func SendStaffAlert(
	desc string,
) error {
	msg := dwh.NewMessage(desc)

	wh := dwh.NewWebhook(STAFF_DISC_WH_URL)
	status, err := wh.Send(msg)

	if err != nil {
		return fmt.Errorf("failed to send to webhook, %v", err)
	}
	expectedStatus := 204
	if status != expectedStatus {
		return fmt.Errorf("bad status; expected: %d, got: %d", expectedStatus, status)
	}
	return nil
}

// Send an embed to the staff webhook when a reminder email could not be
// delivered, so someone can chase the owner manually. Logs its own
// failures - a dead alert webhook must never break the check cycle.
func SendDispatchFailureAlert(lic cls.License, tier cls.Tier, dispatchErr error) {
	emb := dwh.NewEmbed()
	emb.SetTitle("Renewal reminder failed to send")
	emb.SetDescription(fmt.Sprintf(
		"Could not email %s about %s (%s tier).\n\nRenewal date: %s\nError: %v",
		lic.ServiceOwnerEmail, lic.Name, tier,
		lic.RenewalDate.Format(cls.ExpiryDateFormat), dispatchErr,
	))
	emb.SetColour(DiscordAlertColourDispatchFail)

	msg := dwh.NewMessage("")
	msg.SetUsername("RenewHub Renewals")
	msg.SetAvatarURL(RENEWHUB_BOT_PROFILE_PICTURE_URL)
	msg.AddEmbed(emb)

	status, err := dwh.NewWebhook(STAFF_DISC_WH_URL).Send(msg)
	if err != nil || (status < 200 || status > 299) {
		log.Printf("%s : failed to send dispatch failure alert, sta: %d, err: %v", lic.ID, status, err)
		return
	}

	log.Printf("%s : sent dispatch failure alert (%s tier)", lic.ID, tier)
}

// log to stdout, and send as a staff alert. internally launched as a goroutine
func LogAndSendAlertF(str string, v ...any) {
	go func() {
		msg := fmt.Sprintf("STAFF-ALERT : "+str, v...)
		log.Print(msg)

		SendStaffAlert(msg)
	}()
}

// For discord bot alerts use the following colours
const (
	DiscordAlertColourExportDone   = 65280    // #00FF00 (green)
	DiscordAlertColourDispatchFail = 16711680 // #FF0000 (red)
	DiscordAlertColourConfigIssue  = 16776960 // #FFFF00 (yellow)
	DiscordAlertColourBotAlert     = 255      // #0000FF (blue)
)
