package main

import (
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

func CreateServer(
	dbConnPool *pgxpool.Pool,
	adminApiKey string,
	dbEncryptionKey string,
	v *verifier,
	exportFnameChan chan<- string,
) *http.Server {
	router := http.NewServeMux()

	// admin specific endpoints
	router.Handle("/admin/runExport", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}
		onAdminRunExport(w, r, dbConnPool, adminApiKey, dbEncryptionKey, exportFnameChan)
	})))

	// needs auth
	router.Handle("/user/listLicenses", corsMiddleware(v.authoriseJWT(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}
		onListLicenses(w, r, dbConnPool, dbEncryptionKey)
	}))))
	router.Handle("/user/createLicense", corsMiddleware(v.authoriseJWT(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}
		onCreateLicense(w, r, dbConnPool, dbEncryptionKey)
	}))))
	router.Handle("/user/updateLicense", corsMiddleware(v.authoriseJWT(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}
		onUpdateLicense(w, r, dbConnPool, dbEncryptionKey)
	}))))
	router.Handle("/user/deleteLicense", corsMiddleware(v.authoriseJWT(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}
		onDeleteLicense(w, r, dbConnPool)
	}))))
	router.Handle("/user/dashboard", corsMiddleware(v.authoriseJWT(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}
		onGetDashboard(w, r, dbConnPool, dbEncryptionKey)
	}))))
	router.Handle("/user/notificationSettings", corsMiddleware(v.authoriseJWT(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}
		onGetNotificationSettings(w, r, dbConnPool)
	}))))
	router.Handle("/user/updateNotificationSettings", corsMiddleware(v.authoriseJWT(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}
		onUpdateNotificationSettings(w, r, dbConnPool)
	}))))
	router.Handle("/user/updateEmailSettings", corsMiddleware(v.authoriseJWT(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}
		onUpdateEmailSettings(w, r, dbConnPool)
	}))))
	router.Handle("/user/triggerCheck", corsMiddleware(v.authoriseJWT(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}
		onTriggerCheck(w, r, dbConnPool)
	}))))

	// no auth
	router.Handle("/health", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})))

	server := &http.Server{
		Addr:     PORT,
		Handler:  router,
		ErrorLog: log.New(&errorLogWriter{}, "", 0), // custom error logger
	}

	return server
}

type errorLogWriter struct{}

func (elw *errorLogWriter) Write(p []byte) (n int, err error) {
	msg := string(p)
	if strings.HasSuffix(msg, "tls: first record does not look like a TLS handshake") {
		return len(p), nil // Suppress this specific log message
	}
	return os.Stdout.Write(p) // Log other messages
}
