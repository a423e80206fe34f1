package store

import "time"

// Modality values shared by patients and appointments.
const (
	ModalityPresencialB  = "presencial_b"
	ModalityPresencialZS = "presencial_zs"
	ModalityOnline       = "online"
)

// Appointment kinds.
const (
	KindFirst  = "primeira"
	KindReturn = "retorno"
)

type Patient struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	SocialName          string    `json:"social_name,omitempty"`
	Phone               string    `json:"phone"`
	Address             string    `json:"address,omitempty"`
	BirthDate           string    `json:"birth_date,omitempty"`
	CPF                 string    `json:"cpf,omitempty"`
	Fee                 float64   `json:"fee"`
	PreferredModality   string    `json:"preferred_modality,omitempty"`
	Birthplace          string    `json:"birthplace,omitempty"`
	Sex                 string    `json:"sex,omitempty"`
	MaritalStatus       string    `json:"marital_status,omitempty"`
	Religion            string    `json:"religion,omitempty"`
	Race                string    `json:"race,omitempty"`
	Schooling           string    `json:"schooling,omitempty"`
	Profession          string    `json:"profession,omitempty"`
	ReferredBy          string    `json:"referred_by,omitempty"`
	HasRepresentative   bool      `json:"has_representative"`
	RepresentativeName  string    `json:"representative_name,omitempty"`
	RepresentativePhone string    `json:"representative_phone,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

type Appointment struct {
	ID              int64     `json:"id"`
	PatientID       int64     `json:"patient_id"`
	Patient         *Patient  `json:"patient,omitempty"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DurationMinutes int       `json:"duration_minutes"`
	Kind            string    `json:"kind"`
	Paid            bool      `json:"paid"`
	PayerName       string    `json:"payer_name,omitempty"`
	InvoiceIssued   bool      `json:"invoice_issued"`
	Notes           string    `json:"notes,omitempty"`
	Medications     string    `json:"medications,omitempty"`
	Summary         string    `json:"summary,omitempty"`
	Modality        string    `json:"modality,omitempty"`
	BookedAt        time.Time `json:"booked_at"`
}

// Block is a manual schedule exclusion. Start and End are both empty for a
// whole-day block.
type Block struct {
	ID        int64     `json:"id"`
	Date      string    `json:"date"`
	Start     string    `json:"start,omitempty"`
	End       string    `json:"end,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type AllowedEmail struct {
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// AppointmentFilter narrows ListAppointments. Empty fields do not filter.
type AppointmentFilter struct {
	From      string
	To        string
	PatientID int64
	Paid      *bool
}

func (f AppointmentFilter) Match(a Appointment) bool {
	if f.From != "" && a.Date < f.From {
		return false
	}
	if f.To != "" && a.Date > f.To {
		return false
	}
	if f.PatientID != 0 && a.PatientID != f.PatientID {
		return false
	}
	if f.Paid != nil && a.Paid != *f.Paid {
		return false
	}
	return true
}
