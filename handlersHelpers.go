package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/renewhub/app/common"
)

// send any interface that can be marshalled as an http response.
func sendStructToUser(v any, w http.ResponseWriter, code int) {
	w.WriteHeader(code)

	// marshall struct as json
	jsonData, err := json.Marshal(v)
	if err != nil {
		log.Printf("err marshalling json, %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// send to user
	w.Header().Set("Content-Type", "application/json")
	w.Write(jsonData)

	if code == 500 {
		go common.SendStaffAlert("Sent 500 response to user, check logs.")
	}
}

// cheap shape check for a service owner address. Licenses with a bad
// address are rejected at write time rather than silently skipped at
// dispatch time.
func emailIsOK(email string) bool {
	if email == "" {
		return true // empty means "no reminders for this license", which is allowed
	}

	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		return false
	}

	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(email, " \t\r\n")
}

// card digits are stored as the last 0-4 digits only
func cardDigitsAreOK(digits string) bool {
	if len(digits) > 4 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
