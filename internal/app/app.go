package app

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/tainamorais/clinica-agenda/internal/backup"
	"github.com/tainamorais/clinica-agenda/internal/store"
)

// BackupRunner takes one backup snapshot.
type BackupRunner interface {
	Run(ctx context.Context) (*backup.Result, error)
}

// App carries the dependencies shared by all HTTP handlers.
type App struct {
	Store    store.Store
	Logger   *zap.Logger
	Location *time.Location

	// Busy adds external busy time to the day context. Optional.
	Busy BusySource
	// Backup is nil when storage is not configured.
	Backup       BackupRunner
	BackupSecret string
	Production   bool

	// OAuth drives the Google consent flow for obtaining a refresh token. Optional.
	OAuth *oauth2.Config

	Pool  *pgxpool.Pool
	Redis *goredis.Client

	Now func() time.Time
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now().In(a.loc())
	}
	return time.Now().In(a.loc())
}

func (a *App) loc() *time.Location {
	if a.Location == nil {
		return time.UTC
	}
	return a.Location
}
