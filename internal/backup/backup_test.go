package backup

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeDumper struct {
	rows map[string]string
}

func (f *fakeDumper) DumpTable(ctx context.Context, table string) (json.RawMessage, int, error) {
	raw, ok := f.rows[table]
	if !ok {
		return nil, 0, errors.New("relation does not exist")
	}
	var arr []any
	_ = json.Unmarshal([]byte(raw), &arr)
	return json.RawMessage(raw), len(arr), nil
}

type fakeBucket struct {
	ensured bool
	objects map[string][]byte
	failOn  string
}

func (f *fakeBucket) EnsureBucket(ctx context.Context) error {
	f.ensured = true
	return nil
}

func (f *fakeBucket) Put(ctx context.Context, path string, body []byte, contentType string) error {
	if path == f.failOn {
		return errors.New("storage unavailable")
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[path] = body
	return nil
}

func fixedNow() time.Time {
	return time.Date(2025, 8, 21, 13, 45, 7, 123e6, time.UTC)
}

func TestPrefix(t *testing.T) {
	if got := Prefix(fixedNow()); got != "backups/2025-08-21T13-45-07.123Z" {
		t.Errorf("unexpected prefix %q", got)
	}
}

func TestRunner_Run(t *testing.T) {
	dumper := &fakeDumper{rows: map[string]string{
		"patients":     `[{"id":1,"name":"Ana"},{"id":2,"name":"Bruno"}]`,
		"appointments": `[{"id":10}]`,
	}}
	bucket := &fakeBucket{}
	r := NewRunner(dumper, bucket, []string{"patients", "appointments", "allowed_emails"}, zap.NewNop())
	r.Now = fixedNow

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bucket.ensured {
		t.Error("bucket should be ensured before upload")
	}
	if !res.OK || res.Prefix != "backups/2025-08-21T13-45-07.123Z" {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Manifest.Tables["patients"] != 2 || res.Manifest.Tables["appointments"] != 1 {
		t.Errorf("unexpected counts %v", res.Manifest.Tables)
	}
	if n, ok := res.Manifest.Tables["allowed_emails"]; !ok || n != 0 {
		t.Errorf("missing table should be listed with zero rows, got %v", res.Manifest.Tables)
	}

	if _, ok := bucket.objects[res.Prefix+"/manifest.json"]; !ok {
		t.Error("manifest not uploaded")
	}
	if _, ok := bucket.objects[res.Prefix+"/patients.json"]; !ok {
		t.Error("patients dump not uploaded")
	}
	if _, ok := bucket.objects[res.Prefix+"/allowed_emails.json"]; ok {
		t.Error("failed table should be skipped")
	}

	var m Manifest
	if err := json.Unmarshal(bucket.objects[res.Prefix+"/manifest.json"], &m); err != nil {
		t.Fatalf("manifest is not JSON: %v", err)
	}
	if m.CreatedAt != "2025-08-21T13:45:07.123Z" {
		t.Errorf("unexpected createdAt %q", m.CreatedAt)
	}
}

func TestRunner_UploadFailure(t *testing.T) {
	dumper := &fakeDumper{rows: map[string]string{"patients": `[]`}}
	r := NewRunner(dumper, &fakeBucket{failOn: "backups/2025-08-21T13-45-07.123Z/patients.json"}, []string{"patients"}, zap.NewNop())
	r.Now = fixedNow
	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("expected upload failure to abort the run")
	}
}

func TestAuthorized(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/backup", nil)
	if !Authorized("", false, req) {
		t.Error("no secret outside production should be allowed")
	}
	if Authorized("", true, req) {
		t.Error("no secret in production should be refused")
	}
	if Authorized("s3cret", false, req) {
		t.Error("missing header should be refused")
	}

	req.Header.Set("Authorization", "Bearer s3cret")
	if !Authorized("s3cret", true, req) {
		t.Error("bearer secret should be accepted")
	}

	req = httptest.NewRequest("GET", "/api/backup", nil)
	req.Header.Set("X-Cron-Secret", "s3cret")
	if !Authorized("s3cret", true, req) {
		t.Error("x-cron-secret should be accepted")
	}
	for _, bad := range []string{"wrong", "s3creT", "s3cre", "s3crets"} {
		req.Header.Set("X-Cron-Secret", bad)
		if Authorized("s3cret", true, req) {
			t.Errorf("%q should be refused", bad)
		}
	}
}
