package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx/v5/pgxpool"
	cls "github.com/renewhub/app/classes"
	"github.com/renewhub/app/common"
	"github.com/renewhub/app/db"
)

var RHBOT string = "RHBOT_DISC"

// long running function, start with a go routine
func launchDiscordBot(
	botToken string,
	pool *pgxpool.Pool,
	encryptionKey string,
	fnameChan <-chan string,
	exportsDiscordChannelID string,
) {
	defer func() {
		if err := recover(); err != nil {
			alert := fmt.Sprintf("discord bot crashed, restarting\n\n%v", err)
			common.SendStaffAlert(alert)

			launchDiscordBot(botToken, pool, encryptionKey, fnameChan, exportsDiscordChannelID)
		}
	}()

	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		log.Fatalf("%s : failed to create session, %v", RHBOT, err)
	}

	// add handlers
	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		onMessageCreated(s, m, pool, encryptionKey)
	})

	// launch bot
	session.Identify.Intents = discordgo.IntentsAll

	err = session.Open()
	if err != nil {
		log.Fatalf("%s : failed to open session, %v", RHBOT, err)
	}
	defer session.Close()

	go listenForExportFiles(session, fnameChan, exportsDiscordChannelID)

	log.Printf("%s : %s is now online", RHBOT, session.State.User.Username)
	for {
		time.Sleep(999999999999)
	}
}

func listenForExportFiles(
	s *discordgo.Session,
	fnameChan <-chan string,
	exportsDiscordChannelID string,
) {
	log.Printf("%s : listening for register exports to send…", RHBOT)

	for {
		err := getExportFiles(fnameChan, s, exportsDiscordChannelID)
		if err != nil {
			common.LogAndSendAlertF(err.Error())
			continue
		}
		log.Printf("%s : success sending register export to discord channel", RHBOT)
	}
}

func getExportFiles(fnameChan <-chan string, s *discordgo.Session, exportsDiscordChannelID string) error {
	filename := <-fnameChan

	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf(
			"%s : failed to open export file %s, %v",
			RHBOT, filename, err,
		)

	}

	_, err = s.ChannelFileSend(exportsDiscordChannelID, filename, file)
	if err != nil {
		file.Close()
		return fmt.Errorf(
			"%s : failed to send export file to discord, %v",
			RHBOT, err,
		)
	}

	file.Close()
	return nil
}

func onMessageCreated(
	s *discordgo.Session,
	m *discordgo.MessageCreate,
	pool *pgxpool.Pool,
	encryptionKey string,
) {
	if m.Author.ID == s.State.User.ID {
		return // skip if message is sent by the bot
	}

	if strings.HasPrefix(m.Content, "!register") && isAdmin(m.Member, m.GuildID) {
		commandRegister(s, m, pool, encryptionKey)

	} else if strings.HasPrefix(m.Content, "!expiring") && isAdmin(m.Member, m.GuildID) {
		commandExpiring(s, m, pool, encryptionKey)
	}
}

// whether a guild member carries the staff admin role
func isAdmin(member *discordgo.Member, guildID string) bool {
	if member == nil {
		return false
	}

	adminRoleID := PROD_ADMIN_ROLE_ID
	if guildID == DEV_GUILD_ID {
		adminRoleID = DEV_ADMIN_ROLE_ID
	}

	for _, roleID := range member.Roles {
		if roleID == adminRoleID {
			return true
		}
	}
	return false
}

// !register - reply with register counts by status
func commandRegister(
	s *discordgo.Session,
	m *discordgo.MessageCreate,
	pool *pgxpool.Pool,
	encryptionKey string,
) {
	log.Printf("%s : received !register request from %s", RHBOT, m.Author.Username)

	licenses, err := db.ReadAllLicenses(pool, encryptionKey)
	if err != nil {
		log.Printf("%s : failed to read licenses, %v", RHBOT, err)
		s.ChannelMessageSend(m.ChannelID, "Internal server error (reading licenses)")
		return
	}

	now := time.Now()
	counts := map[cls.LicenseStatus]int{}
	for _, lic := range licenses {
		counts[cls.Classify(lic.RenewalDate, now)]++
	}

	msg := fmt.Sprintf(
		"Register: %d licenses (%d active, %d pending, %d expired)",
		len(licenses),
		counts[cls.StatusActive], counts[cls.StatusPending], counts[cls.StatusExpired],
	)
	s.ChannelMessageSend(m.ChannelID, msg)

	log.Printf("%s : sent %s", RHBOT, msg)
}

// !expiring - list licenses renewing inside the dashboard window
func commandExpiring(
	s *discordgo.Session,
	m *discordgo.MessageCreate,
	pool *pgxpool.Pool,
	encryptionKey string,
) {
	log.Printf("%s : received !expiring request from %s", RHBOT, m.Author.Username)

	licenses, err := db.ReadAllLicenses(pool, encryptionKey)
	if err != nil {
		log.Printf("%s : failed to read licenses, %v", RHBOT, err)
		s.ChannelMessageSend(m.ChannelID, "Internal server error (reading licenses)")
		return
	}

	now := time.Now()
	lines := []string{}
	for _, lic := range licenses {
		if cls.RenewsWithinDays(lic.RenewalDate, now, cls.DashboardPendingWindowDays) {
			lines = append(lines, fmt.Sprintf(
				"%s (%s) - renews %s, owner: %s",
				lic.Name, lic.Department,
				lic.RenewalDate.Format(cls.ExpiryDateFormat), lic.ServiceOwnerEmail,
			))
		}
	}

	if len(lines) == 0 {
		s.ChannelMessageSend(m.ChannelID, "Nothing renewing in the next 30 days.")
		return
	}

	s.ChannelMessageSend(m.ChannelID, strings.Join(lines, "\n"))
	log.Printf("%s : sent %d expiring licenses", RHBOT, len(lines))
}
