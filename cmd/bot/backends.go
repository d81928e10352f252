package main

import (
	"context"
	"fmt"

	"personal-connect/internal/auth"
	firebaseauth "personal-connect/internal/auth/firebase"
	authmem "personal-connect/internal/auth/memory"
	authpg "personal-connect/internal/auth/postgres"
	"personal-connect/internal/catalog"
	"personal-connect/internal/events"
	"personal-connect/internal/logger"
	"personal-connect/internal/mailer"
	"personal-connect/internal/models/config"
	"personal-connect/internal/repository"
	firestorestore "personal-connect/internal/repository/firestore"
	"personal-connect/internal/repository/gcs"
	"personal-connect/internal/repository/memory"
	pgstore "personal-connect/internal/repository/postgres"
	client_service "personal-connect/internal/service/client"
	database "personal-connect/pkg"

	"github.com/jmoiron/sqlx"
	"go.uber.org/fx"
	"go.uber.org/multierr"
)

// newBackends connects every remote boundary selected in the config and
// closes them when the app stops.
func newBackends(lc fx.Lifecycle, cfg *config.Config, c *catalog.Catalog, log *logger.Logger) (client_service.Backends, error) {
	ctx := context.Background()
	var closers []func() error

	var db *sqlx.DB
	if cfg.Backends.Store == "postgres" || cfg.Backends.Auth == "postgres" {
		var err error
		if db, err = database.NewPostgres(ctx, cfg.Database, log); err != nil {
			return client_service.Backends{}, err
		}
		closers = append(closers, db.Close)
	}

	var store repository.DocumentStore
	var err error
	switch cfg.Backends.Store {
	case "firestore":
		store, err = firestorestore.New(ctx, cfg.Firebase, log)
	case "postgres":
		store, err = pgstore.New(ctx, db, cfg.Database.DSN(), log)
	default:
		store = memory.NewStore()
	}
	if err != nil {
		return client_service.Backends{}, err
	}
	closers = append([]func() error{store.Close}, closers...)

	mail := mailer.New(cfg.Mail, log)

	var provider auth.Provider
	switch cfg.Backends.Auth {
	case "firebase":
		provider, err = firebaseauth.New(ctx, cfg.Firebase.APIKey, log)
	case "postgres":
		provider, err = authpg.New(ctx, db, cfg.Auth.JWTSecret, cfg.Auth.RecentLoginWindow, mail, log)
	default:
		provider = authmem.New(cfg.Auth.RecentLoginWindow)
	}
	if err != nil {
		return client_service.Backends{}, err
	}

	var blobs repository.BlobStore
	switch cfg.Backends.Blob {
	case "gcs":
		blobs, err = gcs.New(ctx, cfg.Firebase, log)
	default:
		blobs = memory.NewBlobStore(fmt.Sprintf("http://localhost:%s/blobs", cfg.HTTPPort))
	}
	if err != nil {
		return client_service.Backends{}, err
	}

	publisher, err := events.New(cfg.Redis, log)
	if err != nil {
		return client_service.Backends{}, err
	}
	closers = append([]func() error{publisher.Close}, closers...)

	log.Info("backends ready",
		"store", cfg.Backends.Store,
		"auth", cfg.Backends.Auth,
		"blob", cfg.Backends.Blob,
		"events", cfg.Redis.Addr != "",
	)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			var errs error
			for _, closeFn := range closers {
				errs = multierr.Append(errs, closeFn())
			}
			return errs
		},
	})

	return client_service.Backends{
		Provider:    provider,
		Store:       store,
		Blobs:       blobs,
		Mailer:      mail,
		Events:      publisher,
		Catalog:     c,
		Placeholder: cfg.Firebase.PlaceholderPictureURL,
	}, nil
}
