package app

import (
	"strings"

	"github.com/tainamorais/clinica-agenda/internal/dates"
	"github.com/tainamorais/clinica-agenda/internal/slots"
	"github.com/tainamorais/clinica-agenda/internal/store"
)

type patientReq struct {
	Name                string  `json:"name"`
	SocialName          string  `json:"social_name"`
	Phone               string  `json:"phone"`
	Address             string  `json:"address"`
	BirthDate           string  `json:"birth_date"`
	CPF                 string  `json:"cpf"`
	Fee                 float64 `json:"fee"`
	PreferredModality   string  `json:"preferred_modality"`
	Birthplace          string  `json:"birthplace"`
	Sex                 string  `json:"sex"`
	MaritalStatus       string  `json:"marital_status"`
	Religion            string  `json:"religion"`
	Race                string  `json:"race"`
	Schooling           string  `json:"schooling"`
	Profession          string  `json:"profession"`
	ReferredBy          string  `json:"referred_by"`
	HasRepresentative   bool    `json:"has_representative"`
	RepresentativeName  string  `json:"representative_name"`
	RepresentativePhone string  `json:"representative_phone"`
}

func validModality(m string) bool {
	switch m {
	case "", store.ModalityPresencialB, store.ModalityPresencialZS, store.ModalityOnline:
		return true
	}
	return false
}

func (r patientReq) toPatient() (*store.Patient, error) {
	p := &store.Patient{
		Name:                strings.TrimSpace(r.Name),
		SocialName:          strings.TrimSpace(r.SocialName),
		Phone:               strings.TrimSpace(r.Phone),
		Address:             strings.TrimSpace(r.Address),
		BirthDate:           strings.TrimSpace(r.BirthDate),
		CPF:                 strings.TrimSpace(r.CPF),
		Fee:                 r.Fee,
		PreferredModality:   r.PreferredModality,
		Birthplace:          strings.TrimSpace(r.Birthplace),
		Sex:                 r.Sex,
		MaritalStatus:       r.MaritalStatus,
		Religion:            strings.TrimSpace(r.Religion),
		Race:                r.Race,
		Schooling:           r.Schooling,
		Profession:          strings.TrimSpace(r.Profession),
		ReferredBy:          strings.TrimSpace(r.ReferredBy),
		HasRepresentative:   r.HasRepresentative,
		RepresentativeName:  strings.TrimSpace(r.RepresentativeName),
		RepresentativePhone: strings.TrimSpace(r.RepresentativePhone),
	}
	if p.Name == "" || p.Phone == "" {
		return nil, invalid("name and phone are required")
	}
	if p.Fee <= 0 {
		return nil, invalid("fee must be greater than zero")
	}
	if p.BirthDate != "" {
		if _, err := dates.Parse(p.BirthDate, nil); err != nil {
			return nil, invalid(err.Error())
		}
	}
	if !validModality(p.PreferredModality) {
		return nil, invalid("invalid preferred_modality")
	}
	if !p.HasRepresentative {
		p.RepresentativeName, p.RepresentativePhone = "", ""
	}
	return p, nil
}

type appointmentReq struct {
	PatientID       int64  `json:"patient_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	Kind            string `json:"kind"`
	Paid            bool   `json:"paid"`
	PayerName       string `json:"payer_name"`
	InvoiceIssued   bool   `json:"invoice_issued"`
	Notes           string `json:"notes"`
	Medications     string `json:"medications"`
	Summary         string `json:"summary"`
	Modality        string `json:"modality"`
}

func (r appointmentReq) toAppointment() (*store.Appointment, error) {
	if r.PatientID <= 0 {
		return nil, invalid("patient_id is required")
	}
	if _, err := dates.Parse(r.Date, nil); err != nil {
		return nil, invalid(err.Error())
	}
	start, err := slots.ParseHHMM(r.Time)
	if err != nil {
		return nil, invalid("invalid time, expected HH:MM")
	}
	d := r.DurationMinutes
	if d == 0 {
		d = slots.DefaultDuration
	}
	if !slots.ValidDuration(d) {
		return nil, invalid("duration_minutes must be 30, 60 or 120")
	}
	if start+d > 24*60 {
		return nil, invalid("appointment must end by midnight")
	}
	kind := r.Kind
	if kind == "" {
		kind = store.KindFirst
	}
	if kind != store.KindFirst && kind != store.KindReturn {
		return nil, invalid("kind must be primeira or retorno")
	}
	if !validModality(r.Modality) {
		return nil, invalid("invalid modality")
	}
	return &store.Appointment{
		PatientID:       r.PatientID,
		Date:            r.Date,
		Time:            slots.FormatHHMM(start),
		DurationMinutes: d,
		Kind:            kind,
		Paid:            r.Paid,
		PayerName:       strings.TrimSpace(r.PayerName),
		InvoiceIssued:   r.InvoiceIssued,
		Notes:           r.Notes,
		Medications:     r.Medications,
		Summary:         r.Summary,
		Modality:        r.Modality,
	}, nil
}

type blockReq struct {
	Date   string `json:"date"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Reason string `json:"reason"`
}

func (r blockReq) toBlock() (*store.Block, error) {
	if _, err := dates.Parse(r.Date, nil); err != nil {
		return nil, invalid(err.Error())
	}
	b := &store.Block{Date: r.Date, Reason: strings.TrimSpace(r.Reason)}
	if r.Start == "" && r.End == "" {
		return b, nil
	}
	if r.Start == "" || r.End == "" {
		return nil, invalid("start and end must both be set for a partial block, or both empty for a whole day")
	}
	start, err := slots.ParseHHMM(r.Start)
	if err != nil {
		return nil, invalid("invalid start, expected HH:MM")
	}
	end, err := slots.ParseHHMM(r.End)
	if err != nil {
		return nil, invalid("invalid end, expected HH:MM")
	}
	if start >= end {
		return nil, invalid("start must be before end")
	}
	b.Start, b.End = slots.FormatHHMM(start), slots.FormatHHMM(end)
	return b, nil
}

type weekendReq struct {
	Enabled bool `json:"enabled"`
}

type paidReq struct {
	Paid *bool `json:"paid" binding:"required"`
}

type allowedEmailReq struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

type roleReq struct {
	Role string `json:"role" binding:"required"`
}
