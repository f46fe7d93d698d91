package main

import (
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AdminRunExportResponse struct {
	Err      string `json:"err"`
	Filename string `json:"filename,omitempty"`
}

// build the register workbook immediately and hand it to the discord
// bot, outside the weekly schedule. For admin use only. Returns status
// 401 if auth is invalid.
func onAdminRunExport(
	w http.ResponseWriter,
	r *http.Request,
	pool *pgxpool.Pool,
	expectedAdminKey string,
	encryptionKey string,
	fnameChan chan<- string,
) {
	// check user has admin api key
	key := r.Header.Get("RH-API-Key")
	if key != expectedAdminKey {
		http.Error(w, "", http.StatusUnauthorized)
		return
	}

	filename, err := prepRegisterExport(pool, encryptionKey)
	if err != nil {
		log.Printf("ADMIN : failed to export register, %v", err)
		sendStructToUser(AdminRunExportResponse{Err: "Internal server error"}, w, 500)
		return
	}

	// hand off without blocking the request if the bot is busy
	select {
	case fnameChan <- filename:
	default:
		log.Printf("ADMIN : export bot busy, %s saved locally only", filename)
	}

	log.Printf("ADMIN : exported register to %s", filename)
	sendStructToUser(AdminRunExportResponse{Filename: filename}, w, 200)
}
