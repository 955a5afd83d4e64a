package main

import (
	"context"
	"log"
	"os"

	"log/slog"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/config"
	apphttp "github.com/acquahdegraft/ghanapwdeba-sub001/internal/http"
	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/mailer"
	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/modules/auth"
	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/modules/memberships"
	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/modules/payments"
	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/storage"
)

func main() {
	// Load .env file (ignore error if not found - prod uses real env vars)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}

	db, err := gorm.Open(mysql.Open(cfg.DBDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	ctx := context.Background()
	archive, err := storage.FromEnv(ctx)
	if err != nil {
		log.Fatalf("failed to configure callback archive: %v", err)
	}
	logger.Info("callback archive ready", "driver", archive.Driver)

	gateway := payments.NewHTTPGateway(cfg.Provider.BaseURL, cfg.Provider.ClientID, cfg.Provider.ClientKey)
	smtpMailer := mailer.NewSMTPMailer(cfg.SMTP)
	membershipSvc := memberships.NewService(db, cfg.MembershipValidity, logger)

	// Member contact info lives in the profile CRUD owned elsewhere; we
	// only read it for receipts.
	directory := payments.DirectoryFunc(func(ctx context.Context, userID string) (string, string, error) {
		var row struct {
			Name  string
			Email string
		}
		err := db.WithContext(ctx).Raw(
			"SELECT name, email FROM users WHERE id = ?", userID).Scan(&row).Error
		return row.Name, row.Email, err
	})

	dispatcher := payments.NewDispatcher(membershipSvc, directory, smtpMailer, logger, cfg.SMTP.From, cfg.SMTP.FromName)
	store := payments.NewGormStore(db)
	reconciler := payments.NewReconciler(store, gateway, dispatcher, logger)
	poller := payments.NewPoller(reconciler, gateway, payments.PollConfig{
		GraceDelay:  cfg.Poll.GraceDelay,
		Interval:    cfg.Poll.Interval,
		MaxAttempts: cfg.Poll.MaxAttempts,
	}, logger)
	callbackLog := payments.NewCallbackLog(db, archive.Archiver, logger)

	authorizer := &auth.StaticAuthorizer{Tokens: map[string]auth.Identity{}}
	if tok := os.Getenv("DEV_MEMBER_TOKEN"); tok != "" {
		authorizer.Tokens[tok] = auth.Identity{UserID: os.Getenv("DEV_MEMBER_ID"), Role: "member"}
	}
	if tok := os.Getenv("DEV_ADMIN_TOKEN"); tok != "" {
		authorizer.Tokens[tok] = auth.Identity{UserID: os.Getenv("DEV_ADMIN_ID"), Role: auth.RoleAdmin}
	}

	r := apphttp.NewRouter(apphttp.Deps{
		Logger:      logger,
		Authorizer:  authorizer,
		Store:       store,
		Reconciler:  reconciler,
		Poller:      poller,
		CallbackLog: callbackLog,
	})
	_ = r.Run(cfg.HTTPAddr)
}
