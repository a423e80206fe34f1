package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tainamorais/clinica-agenda/internal/access"
	"github.com/tainamorais/clinica-agenda/internal/backup"
	"github.com/tainamorais/clinica-agenda/internal/config"
	"github.com/tainamorais/clinica-agenda/internal/slots"
	"github.com/tainamorais/clinica-agenda/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memStore is an in-memory store.Store with the same conflict rules as Postgres.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	patients  map[int64]store.Patient
	appts     map[int64]store.Appointment
	blocks    map[int64]store.Block
	overrides map[string]bool
	emails    map[string]string
	pingErr   error
}

func newMemStore() *memStore {
	return &memStore{
		patients:  map[int64]store.Patient{},
		appts:     map[int64]store.Appointment{},
		blocks:    map[int64]store.Block{},
		overrides: map[string]bool{},
		emails:    map[string]string{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) Ping(ctx context.Context) error { return m.pingErr }

func (m *memStore) cpfTaken(cpf string, except int64) bool {
	if cpf == "" {
		return false
	}
	for _, p := range m.patients {
		if p.CPF == cpf && p.ID != except {
			return true
		}
	}
	return false
}

func (m *memStore) CreatePatient(ctx context.Context, p *store.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cpfTaken(p.CPF, 0) {
		return store.ErrDuplicateCPF
	}
	p.ID = m.id()
	p.CreatedAt = time.Now()
	m.patients[p.ID] = *p
	return nil
}

func (m *memStore) GetPatient(ctx context.Context, id int64) (*store.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) UpdatePatient(ctx context.Context, p *store.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[p.ID]; !ok {
		return store.ErrNotFound
	}
	if m.cpfTaken(p.CPF, p.ID) {
		return store.ErrDuplicateCPF
	}
	m.patients[p.ID] = *p
	return nil
}

func (m *memStore) DeletePatient(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.patients, id)
	for aid, a := range m.appts {
		if a.PatientID == id {
			delete(m.appts, aid)
		}
	}
	return nil
}

func (m *memStore) ListPatients(ctx context.Context) ([]store.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.Patient{}
	for _, p := range m.patients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) conflict(a *store.Appointment) bool {
	var existing []slots.Booking
	for _, o := range m.appts {
		if o.Date == a.Date && o.ID != a.ID {
			existing = append(existing, slots.Booking{Start: o.Time, DurationMinutes: o.DurationMinutes})
		}
	}
	return slots.Conflicts(existing, slots.Booking{Start: a.Time, DurationMinutes: a.DurationMinutes})
}

func (m *memStore) CreateAppointment(ctx context.Context, a *store.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[a.PatientID]; !ok {
		return store.ErrPatientNotFound
	}
	if m.conflict(a) {
		return store.ErrSlotTaken
	}
	a.ID = m.id()
	a.BookedAt = time.Now()
	m.appts[a.ID] = *a
	return nil
}

func (m *memStore) UpdateAppointment(ctx context.Context, a *store.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appts[a.ID]; !ok {
		return store.ErrNotFound
	}
	if m.conflict(a) {
		return store.ErrSlotTaken
	}
	m.appts[a.ID] = *a
	return nil
}

func (m *memStore) DeleteAppointment(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appts[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.appts, id)
	return nil
}

func (m *memStore) GetAppointment(ctx context.Context, id int64) (*store.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (m *memStore) ListAppointments(ctx context.Context, f store.AppointmentFilter) ([]store.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.Appointment{}
	for _, a := range m.appts {
		if !f.Match(a) {
			continue
		}
		if p, ok := m.patients[a.PatientID]; ok {
			a.Patient = &p
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (m *memStore) SetPaid(ctx context.Context, id int64, paid bool) (*store.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	a.Paid = paid
	m.appts[id] = a
	return &a, nil
}

func (m *memStore) LastMedications(ctx context.Context, patientID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last store.Appointment
	for _, a := range m.appts {
		if a.PatientID != patientID {
			continue
		}
		if a.Date+a.Time > last.Date+last.Time {
			last = a
		}
	}
	return last.Medications, nil
}

func (m *memStore) CreateBlock(ctx context.Context, b *store.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = m.id()
	m.blocks[b.ID] = *b
	return nil
}

func (m *memStore) ListBlocks(ctx context.Context, from, to string) ([]store.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.Block{}
	for _, b := range m.blocks {
		if b.Date >= from && b.Date <= to {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) DeleteBlock(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blocks[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.blocks, id)
	return nil
}

func (m *memStore) WeekendOverrides(ctx context.Context, from, to string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for d, on := range m.overrides {
		if d >= from && d <= to {
			out[d] = on
		}
	}
	return out, nil
}

func (m *memStore) SetWeekendOverride(ctx context.Context, date string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[date] = enabled
	return nil
}

func (m *memStore) RoleForEmail(ctx context.Context, email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.emails[access.NormalizeEmail(email)]
	if !ok {
		return "", store.ErrNotFound
	}
	return r, nil
}

func (m *memStore) ListAllowedEmails(ctx context.Context) ([]store.AllowedEmail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.AllowedEmail{}
	for e, r := range m.emails {
		out = append(out, store.AllowedEmail{Email: e, Role: r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memStore) PutAllowedEmail(ctx context.Context, e *store.AllowedEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.emails[e.Email]; ok {
		return store.ErrDuplicate
	}
	m.emails[e.Email] = e.Role
	return nil
}

func (m *memStore) UpdateAllowedEmailRole(ctx context.Context, email, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.emails[email]; !ok {
		return store.ErrNotFound
	}
	m.emails[email] = role
	return nil
}

func (m *memStore) DeleteAllowedEmail(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.emails[email]; !ok {
		return store.ErrNotFound
	}
	delete(m.emails, email)
	return nil
}

type fakeBusy struct {
	blocks map[string][]slots.Block
	err    error
}

func (f *fakeBusy) BusyBlocks(ctx context.Context, date time.Time) ([]slots.Block, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.blocks[date.Format("2006-01-02")], nil
}

type fakeBackup struct {
	calls int
	err   error
}

func (f *fakeBackup) Run(ctx context.Context) (*backup.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &backup.Result{OK: true, Prefix: "backups/2025-08-19T03-00-00.000Z"}, nil
}

// Static tokens used by the tests, one per role.
var testTokens = []string{
	"tok-admin:admin@clinica.test",
	"tok-gestor:gestor@clinica.test",
	"tok-medico:medico@clinica.test",
	"tok-contador:contador@clinica.test",
	"tok-stranger:stranger@clinica.test",
}

func bearer(role string) string {
	return "Bearer tok-" + role
}

type testEnv struct {
	app    *App
	store  *memStore
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ms := newMemStore()
	for _, r := range access.Roles {
		ms.emails[string(r)+"@clinica.test"] = string(r)
	}
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.UTC
	}
	a := &App{
		Store:    ms,
		Logger:   zap.NewNop(),
		Location: loc,
		Now: func() time.Time {
			return time.Date(2025, 8, 19, 10, 0, 0, 0, loc)
		},
	}
	cfg := &config.Config{
		Env:            "test",
		StaticTokens:   testTokens,
		CORSOrigins:    []string{"http://localhost:3000"},
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	}
	return &testEnv{app: a, store: ms, router: a.Router(cfg)}
}

func (e *testEnv) do(method, path, role, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if role != "" {
		req.Header.Set("Authorization", bearer(role))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func doReq(e *testEnv, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) addPatient(t *testing.T, name string, fee float64) int64 {
	t.Helper()
	p := &store.Patient{Name: name, Phone: "21999990000", Fee: fee}
	if err := e.store.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	return p.ID
}

func (e *testEnv) addAppointment(t *testing.T, pid int64, date, hhmm string, dur int, paid bool) int64 {
	t.Helper()
	a := &store.Appointment{PatientID: pid, Date: date, Time: hhmm, DurationMinutes: dur, Kind: store.KindFirst, Paid: paid}
	if err := e.store.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("seed appointment: %v", err)
	}
	return a.ID
}
