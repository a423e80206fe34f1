package backup

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Dumper returns every row of a table as a JSON array together with its row count.
type Dumper interface {
	DumpTable(ctx context.Context, table string) (json.RawMessage, int, error)
}

// ObjectStore is the private bucket that receives backup files.
type ObjectStore interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, path string, body []byte, contentType string) error
}

type Manifest struct {
	CreatedAt string         `json:"createdAt"`
	Tables    map[string]int `json:"tables"`
}

type Result struct {
	OK       bool     `json:"ok"`
	Prefix   string   `json:"prefix"`
	Manifest Manifest `json:"manifest"`
}

const contentTypeJSON = "application/json; charset=utf-8"

// Runner writes one snapshot of the configured tables under
// backups/<timestamp>/ with a manifest of row counts.
type Runner struct {
	Dumper  Dumper
	Objects ObjectStore
	Tables  []string
	Logger  *zap.Logger
	Now     func() time.Time
}

func NewRunner(d Dumper, o ObjectStore, tables []string, logger *zap.Logger) *Runner {
	return &Runner{Dumper: d, Objects: o, Tables: tables, Logger: logger, Now: time.Now}
}

// Prefix returns the object prefix for a snapshot taken at t: the ISO-8601 UTC
// timestamp with colons replaced so it is a safe path segment.
func Prefix(t time.Time) string {
	ts := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return "backups/" + strings.ReplaceAll(ts, ":", "-")
}

// Run takes a snapshot. A table that cannot be dumped is left out of the
// snapshot and logged. Upload failures abort the run.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.Objects.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	now := r.Now()
	prefix := Prefix(now)
	manifest := Manifest{
		CreatedAt: now.UTC().Format(time.RFC3339Nano),
		Tables:    map[string]int{},
	}

	dumps := map[string][]byte{}
	for _, table := range r.Tables {
		raw, n, err := r.Dumper.DumpTable(ctx, table)
		if err != nil {
			r.Logger.Warn("skipping table in backup", zap.String("table", table), zap.Error(err))
			manifest.Tables[table] = 0
			continue
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, raw, "", "  "); err != nil {
			return nil, fmt.Errorf("format %s: %w", table, err)
		}
		dumps[table] = pretty.Bytes()
		manifest.Tables[table] = n
	}

	mb, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := r.Objects.Put(ctx, prefix+"/manifest.json", mb, contentTypeJSON); err != nil {
		return nil, fmt.Errorf("upload manifest: %w", err)
	}
	for _, table := range r.Tables {
		body, ok := dumps[table]
		if !ok {
			continue
		}
		if err := r.Objects.Put(ctx, prefix+"/"+table+".json", body, contentTypeJSON); err != nil {
			return nil, fmt.Errorf("upload %s: %w", table, err)
		}
	}

	r.Logger.Info("backup written", zap.String("prefix", prefix), zap.Any("tables", manifest.Tables))
	return &Result{OK: true, Prefix: prefix, Manifest: manifest}, nil
}

var bearer = regexp.MustCompile(`(?i)^Bearer\s+`)

// Authorized checks a trigger request against the cron secret, accepted in
// X-Cron-Secret or as a bearer token. Without a configured secret, triggers are
// only accepted outside production.
func Authorized(secret string, production bool, req *http.Request) bool {
	if secret == "" {
		return !production
	}
	header := req.Header.Get("X-Cron-Secret")
	if header == "" {
		header = req.Header.Get("Authorization")
	}
	got := bearer.ReplaceAllString(header, "")
	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}
