package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrSlotTaken       = errors.New("time slot already taken")
	ErrDuplicateCPF    = errors.New("a patient with this CPF already exists")
	ErrDuplicate       = errors.New("already exists")
	ErrPatientNotFound = errors.New("patient not found")
)

// Store is the clinic repository. Every method is safe for concurrent use.
type Store interface {
	Ping(ctx context.Context) error

	CreatePatient(ctx context.Context, p *Patient) error
	GetPatient(ctx context.Context, id int64) (*Patient, error)
	UpdatePatient(ctx context.Context, p *Patient) error
	DeletePatient(ctx context.Context, id int64) error
	ListPatients(ctx context.Context) ([]Patient, error)

	// CreateAppointment and UpdateAppointment fail with ErrSlotTaken when the
	// appointment overlaps another one on the same date.
	CreateAppointment(ctx context.Context, a *Appointment) error
	UpdateAppointment(ctx context.Context, a *Appointment) error
	DeleteAppointment(ctx context.Context, id int64) error
	GetAppointment(ctx context.Context, id int64) (*Appointment, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error)
	SetPaid(ctx context.Context, id int64, paid bool) (*Appointment, error)
	LastMedications(ctx context.Context, patientID int64) (string, error)

	CreateBlock(ctx context.Context, b *Block) error
	ListBlocks(ctx context.Context, from, to string) ([]Block, error)
	DeleteBlock(ctx context.Context, id int64) error
	WeekendOverrides(ctx context.Context, from, to string) (map[string]bool, error)
	SetWeekendOverride(ctx context.Context, date string, enabled bool) error

	RoleForEmail(ctx context.Context, email string) (string, error)
	ListAllowedEmails(ctx context.Context) ([]AllowedEmail, error)
	PutAllowedEmail(ctx context.Context, e *AllowedEmail) error
	UpdateAllowedEmailRole(ctx context.Context, email, role string) error
	DeleteAllowedEmail(ctx context.Context, email string) error
}
