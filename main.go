package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	cls "github.com/renewhub/app/classes"
	"github.com/renewhub/app/common"
	db "github.com/renewhub/app/db"
	"gopkg.in/natefinch/lumberjack.v2"
)

var PORT = ":443"
var PROD_ADMIN_ROLE_ID = "1172448810034713677"
var PROD_GUILD_ID = "1170256733861489514"
var DEV_ADMIN_ROLE_ID = "1198033275672591284"
var DEV_GUILD_ID = "1198030166618497105"
var ENVPATH = "inputs/settings.env"

var TESTING bool
var STAFF_DISC_WH_URL string
var RENEWHUB_BOT_PROFILE_PICTURE_URL string
var LOCAL_PORT string // eg "8080", not ":8080"

var dbConnPool *pgxpool.Pool
var notifScheduler *Scheduler
var emailPort *emailDispatcher

func main() {
	// set up logger
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	logger := &lumberjack.Logger{ // change file at 200MB, and delete after 7 days
		Filename:   "log.log",
		MaxSize:    200,        // in MB
		MaxBackups: 9999999999, // set very large to effectively disable the max simultaneous number of logfiles
		MaxAge:     7,          // days
	}

	wrt := io.MultiWriter(os.Stdout, logger)
	log.SetOutput(wrt)
	defer logger.Close()

	log.Printf("launching…")

	// get creds from settings env
	creds, err := godotenv.Read(ENVPATH)
	if err != nil {
		log.Fatalf("failed to read creds, %v", err)
	}
	TESTING, err := strconv.ParseBool(creds["TESTING"])
	if err != nil {
		log.Fatalf("non bool creds.TESTING %s, %v", creds["TESTING"], err)
	}
	LOCAL_PORT = creds["LOCAL_PORT_PROD"]
	if TESTING {
		LOCAL_PORT = creds["LOCAL_PORT_DEV"]
	}

	STAFF_DISC_WH_URL = creds["STAFF_DISC_WH_URL"]
	BOT_TOKEN := creds["RENEWHUB_HELPER_DISCORD_TOKEN_PROD"]
	RENEWHUB_BOT_PROFILE_PICTURE_URL = creds["RENEWHUB_BOT_PROFILE_PICTURE_URL"]

	common.STAFF_DISC_WH_URL = STAFF_DISC_WH_URL
	common.RENEWHUB_BOT_PROFILE_PICTURE_URL = RENEWHUB_BOT_PROFILE_PICTURE_URL

	log.Printf("in testing mode: %t", TESTING)

	// get database connection pool
	pool, err := db.GetConnPool(creds["DB_NAME"], creds["DB_USER"], creds["DB_PASS"], TESTING)
	if err != nil {
		log.Fatalf("failed to get conn pool, %v", err)
	}
	dbConnPool = pool

	encryptionKey := creds["DB_ENCRYPTION_KEY"]

	// read the settings snapshot the scheduler starts with
	notifSettings, err := db.ReadNotificationSettings(pool)
	if err != nil {
		log.Fatalf("failed to read notification settings, %v", err)
	}
	emailSettings, err := db.ReadEmailSettings(pool)
	if err != nil {
		log.Fatalf("failed to read email settings, %v", err)
	}

	// build the scheduler and its collaborators
	emailPort = &emailDispatcher{}
	emailPort.Configure(emailSettings)

	licenseSource := func(ctx context.Context) ([]cls.License, error) {
		return db.ReadAllLicenses(pool, encryptionKey)
	}

	notifScheduler = newScheduler(
		licenseSource,
		emailPort.Send,
		&dbWatermarkStore{pool: pool},
	)
	notifScheduler.Start(notifSettings, emailSettings)
	log.Printf("successfully started notification scheduler")

	// launch services
	exportFnameChan := make(chan string, 4)
	go launchDiscordBot(
		BOT_TOKEN, pool, encryptionKey, exportFnameChan,
		creds["EXPORTED_REGISTER_DISCORD_CHANNEL_ID"],
	)

	go launchRegisterExporter(exportFnameChan, pool, encryptionKey)

	// create JWT verifier
	jwkPath := "inputs/JWKSprod.json"
	v := NewVerifier(jwkPath)

	// listen to http requests
	server := CreateServer(
		pool, creds["ADMIN_API_KEY"], encryptionKey, v, exportFnameChan,
	)
	log.Printf("listening on port %s", PORT)
	err = server.ListenAndServeTLS(
		fmt.Sprintf("/etc/letsencrypt/live/%s/fullchain.pem", creds["DOMAIN_NAME"]),
		fmt.Sprintf("/etc/letsencrypt/live/%s/privkey.pem", creds["DOMAIN_NAME"]),
	)
	if err != nil {
		log.Fatalf("err serving http, %v", err)
	}
}
