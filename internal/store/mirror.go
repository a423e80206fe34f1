package store

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"
)

// Mirror is a local copy of the scheduling data that serves reads while the
// primary is unreachable.
type Mirror interface {
	PutPatient(ctx context.Context, p Patient) error
	DeletePatient(ctx context.Context, id int64) error
	Patients(ctx context.Context) ([]Patient, error)

	PutAppointment(ctx context.Context, a Appointment) error
	DeleteAppointment(ctx context.Context, id int64) error
	Appointments(ctx context.Context) ([]Appointment, error)

	PutBlock(ctx context.Context, b Block) error
	DeleteBlock(ctx context.Context, id int64) error
	Blocks(ctx context.Context) ([]Block, error)

	PutWeekendOverride(ctx context.Context, date string, enabled bool) error
	WeekendOverrides(ctx context.Context) (map[string]bool, error)

	// Replace swaps the whole mirror content for snap.
	Replace(ctx context.Context, snap Snapshot) error
}

// Snapshot is the full set of rows the mirror holds.
type Snapshot struct {
	Patients         []Patient
	Appointments     []Appointment
	Blocks           []Block
	WeekendOverrides map[string]bool
}

// Mirrored wraps a primary Store. Successful writes are copied to the mirror;
// reads fall back to the mirror when the primary fails. Writes never succeed
// against the mirror alone, and access control is always resolved by the primary.
type Mirrored struct {
	Store
	mirror Mirror
	logger *zap.Logger
}

func NewMirrored(primary Store, mirror Mirror, logger *zap.Logger) *Mirrored {
	return &Mirrored{Store: primary, mirror: mirror, logger: logger}
}

// Sync rebuilds the mirror from the primary's patients, appointments, blocks
// and weekend overrides. Rows the primary no longer has are dropped.
func (s *Mirrored) Sync(ctx context.Context) error {
	var snap Snapshot
	var err error
	if snap.Patients, err = s.Store.ListPatients(ctx); err != nil {
		return err
	}
	if snap.Appointments, err = s.Store.ListAppointments(ctx, AppointmentFilter{}); err != nil {
		return err
	}
	if snap.Blocks, err = s.Store.ListBlocks(ctx, "0001-01-01", "9999-12-31"); err != nil {
		return err
	}
	if snap.WeekendOverrides, err = s.Store.WeekendOverrides(ctx, "0001-01-01", "9999-12-31"); err != nil {
		return err
	}
	if err := s.mirror.Replace(ctx, snap); err != nil {
		return err
	}
	s.logger.Info("mirror synced",
		zap.Int("patients", len(snap.Patients)),
		zap.Int("appointments", len(snap.Appointments)),
		zap.Int("blocks", len(snap.Blocks)))
	return nil
}

func (s *Mirrored) mirrorErr(op string, err error) {
	if err != nil {
		s.logger.Warn("mirror write failed", zap.String("op", op), zap.Error(err))
	}
}

func (s *Mirrored) fallback(op string, err error) {
	s.logger.Warn("primary read failed, serving from mirror", zap.String("op", op), zap.Error(err))
}

// usable reports whether a primary error should be answered from the mirror.
// Domain errors such as ErrNotFound are real answers.
func usable(err error) bool {
	return err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, context.Canceled)
}

// ---- patients ----

func (s *Mirrored) CreatePatient(ctx context.Context, p *Patient) error {
	if err := s.Store.CreatePatient(ctx, p); err != nil {
		return err
	}
	s.mirrorErr("create patient", s.mirror.PutPatient(ctx, *p))
	return nil
}

func (s *Mirrored) UpdatePatient(ctx context.Context, p *Patient) error {
	if err := s.Store.UpdatePatient(ctx, p); err != nil {
		return err
	}
	s.mirrorErr("update patient", s.mirror.PutPatient(ctx, *p))
	return nil
}

func (s *Mirrored) DeletePatient(ctx context.Context, id int64) error {
	if err := s.Store.DeletePatient(ctx, id); err != nil {
		return err
	}
	s.mirrorErr("delete patient", s.mirror.DeletePatient(ctx, id))
	if appts, err := s.mirror.Appointments(ctx); err == nil {
		for _, a := range appts {
			if a.PatientID == id {
				s.mirrorErr("delete appointment", s.mirror.DeleteAppointment(ctx, a.ID))
			}
		}
	}
	return nil
}

func (s *Mirrored) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	p, err := s.Store.GetPatient(ctx, id)
	if !usable(err) {
		return p, err
	}
	s.fallback("get patient", err)
	patients, merr := s.mirror.Patients(ctx)
	if merr != nil {
		return nil, err
	}
	for i := range patients {
		if patients[i].ID == id {
			return &patients[i], nil
		}
	}
	return nil, ErrNotFound
}

func (s *Mirrored) ListPatients(ctx context.Context) ([]Patient, error) {
	out, err := s.Store.ListPatients(ctx)
	if !usable(err) {
		return out, err
	}
	s.fallback("list patients", err)
	patients, merr := s.mirror.Patients(ctx)
	if merr != nil {
		return nil, err
	}
	sort.SliceStable(patients, func(i, j int) bool {
		if patients[i].Name != patients[j].Name {
			return patients[i].Name < patients[j].Name
		}
		return patients[i].ID < patients[j].ID
	})
	return patients, nil
}

// ---- appointments ----

func (s *Mirrored) CreateAppointment(ctx context.Context, a *Appointment) error {
	if err := s.Store.CreateAppointment(ctx, a); err != nil {
		return err
	}
	s.mirrorErr("create appointment", s.mirror.PutAppointment(ctx, *a))
	return nil
}

func (s *Mirrored) UpdateAppointment(ctx context.Context, a *Appointment) error {
	if err := s.Store.UpdateAppointment(ctx, a); err != nil {
		return err
	}
	s.mirrorErr("update appointment", s.mirror.PutAppointment(ctx, *a))
	return nil
}

func (s *Mirrored) DeleteAppointment(ctx context.Context, id int64) error {
	if err := s.Store.DeleteAppointment(ctx, id); err != nil {
		return err
	}
	s.mirrorErr("delete appointment", s.mirror.DeleteAppointment(ctx, id))
	return nil
}

func (s *Mirrored) SetPaid(ctx context.Context, id int64, paid bool) (*Appointment, error) {
	a, err := s.Store.SetPaid(ctx, id, paid)
	if err != nil {
		return nil, err
	}
	s.mirrorErr("set paid", s.mirror.PutAppointment(ctx, *a))
	return a, nil
}

func (s *Mirrored) GetAppointment(ctx context.Context, id int64) (*Appointment, error) {
	a, err := s.Store.GetAppointment(ctx, id)
	if !usable(err) {
		return a, err
	}
	s.fallback("get appointment", err)
	appts, merr := s.mirror.Appointments(ctx)
	if merr != nil {
		return nil, err
	}
	for i := range appts {
		if appts[i].ID == id {
			appts[i].Patient = nil
			return &appts[i], nil
		}
	}
	return nil, ErrNotFound
}

func (s *Mirrored) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	out, err := s.Store.ListAppointments(ctx, f)
	if !usable(err) {
		return out, err
	}
	s.fallback("list appointments", err)
	appts, merr := s.mirror.Appointments(ctx)
	if merr != nil {
		return nil, err
	}
	patients, merr := s.mirror.Patients(ctx)
	if merr != nil {
		return nil, err
	}
	return filterAppointments(appts, patients, f), nil
}

// filterAppointments applies f to mirrored rows, attaches patients and orders
// the result like the primary does. Appointments of unknown patients are dropped.
func filterAppointments(appts []Appointment, patients []Patient, f AppointmentFilter) []Appointment {
	byID := make(map[int64]*Patient, len(patients))
	for i := range patients {
		byID[patients[i].ID] = &patients[i]
	}
	out := []Appointment{}
	for _, a := range appts {
		p, ok := byID[a.PatientID]
		if !ok || !f.Match(a) {
			continue
		}
		a.Patient = p
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ---- blocks ----

func (s *Mirrored) CreateBlock(ctx context.Context, b *Block) error {
	if err := s.Store.CreateBlock(ctx, b); err != nil {
		return err
	}
	s.mirrorErr("create block", s.mirror.PutBlock(ctx, *b))
	return nil
}

func (s *Mirrored) DeleteBlock(ctx context.Context, id int64) error {
	if err := s.Store.DeleteBlock(ctx, id); err != nil {
		return err
	}
	s.mirrorErr("delete block", s.mirror.DeleteBlock(ctx, id))
	return nil
}

func (s *Mirrored) ListBlocks(ctx context.Context, from, to string) ([]Block, error) {
	out, err := s.Store.ListBlocks(ctx, from, to)
	if !usable(err) {
		return out, err
	}
	s.fallback("list blocks", err)
	blocks, merr := s.mirror.Blocks(ctx)
	if merr != nil {
		return nil, err
	}
	res := []Block{}
	for _, b := range blocks {
		if b.Date >= from && b.Date <= to {
			res = append(res, b)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Date != res[j].Date {
			return res[i].Date < res[j].Date
		}
		if res[i].Start != res[j].Start {
			return res[i].Start < res[j].Start
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (s *Mirrored) SetWeekendOverride(ctx context.Context, date string, enabled bool) error {
	if err := s.Store.SetWeekendOverride(ctx, date, enabled); err != nil {
		return err
	}
	s.mirrorErr("set weekend override", s.mirror.PutWeekendOverride(ctx, date, enabled))
	return nil
}

func (s *Mirrored) WeekendOverrides(ctx context.Context, from, to string) (map[string]bool, error) {
	out, err := s.Store.WeekendOverrides(ctx, from, to)
	if !usable(err) {
		return out, err
	}
	s.fallback("weekend overrides", err)
	all, merr := s.mirror.WeekendOverrides(ctx)
	if merr != nil {
		return nil, err
	}
	res := map[string]bool{}
	for d, on := range all {
		if d >= from && d <= to {
			res[d] = on
		}
	}
	return res, nil
}
