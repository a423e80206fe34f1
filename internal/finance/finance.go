package finance

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/tainamorais/clinica-agenda/internal/store"
)

// Status filter names used by the finance screen.
const (
	StatusAll     = "todas"
	StatusPaid    = "pagas"
	StatusPending = "pendentes"
)

// ParseStatus maps a status filter to the paid flag it selects. nil means all.
func ParseStatus(s string) (*bool, error) {
	switch s {
	case "", StatusAll:
		return nil, nil
	case StatusPaid:
		v := true
		return &v, nil
	case StatusPending:
		v := false
		return &v, nil
	}
	return nil, fmt.Errorf("invalid status %q, expected %s, %s or %s", s, StatusAll, StatusPaid, StatusPending)
}

type Totals struct {
	Expected     float64 `json:"expected"`
	Received     float64 `json:"received"`
	Pending      float64 `json:"pending"`
	Count        int     `json:"count"`
	PaidCount    int     `json:"paid_count"`
	PendingCount int     `json:"pending_count"`
}

type PatientTotals struct {
	PatientID   int64  `json:"patient_id"`
	PatientName string `json:"patient_name"`
	Phone       string `json:"phone,omitempty"`
	Totals
}

type Report struct {
	From         string              `json:"from"`
	To           string              `json:"to"`
	Status       string              `json:"status"`
	Totals       Totals              `json:"totals"`
	PerPatient   []PatientTotals     `json:"per_patient"`
	Appointments []store.Appointment `json:"appointments"`
}

func (t *Totals) add(fee float64, paid bool) {
	t.Expected += fee
	t.Count++
	if paid {
		t.Received += fee
		t.PaidCount++
	} else {
		t.Pending += fee
		t.PendingCount++
	}
}

func (t *Totals) round() {
	t.Expected = round2(t.Expected)
	t.Received = round2(t.Received)
	t.Pending = round2(t.Pending)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Summarize totals the appointments using each patient's consultation fee.
// Appointments without a loaded patient count with a zero fee.
func Summarize(appts []store.Appointment) (Totals, []PatientTotals) {
	var total Totals
	byPatient := map[int64]*PatientTotals{}
	var order []int64

	for _, a := range appts {
		var fee float64
		name, phone := "", ""
		if a.Patient != nil {
			fee = a.Patient.Fee
			name = a.Patient.Name
			phone = a.Patient.Phone
		}
		total.add(fee, a.Paid)

		pt, ok := byPatient[a.PatientID]
		if !ok {
			pt = &PatientTotals{PatientID: a.PatientID, PatientName: name, Phone: phone}
			byPatient[a.PatientID] = pt
			order = append(order, a.PatientID)
		}
		pt.add(fee, a.Paid)
	}

	per := make([]PatientTotals, 0, len(order))
	for _, pid := range order {
		pt := byPatient[pid]
		pt.round()
		per = append(per, *pt)
	}
	col := collate.New(language.BrazilianPortuguese, collate.IgnoreCase)
	sort.SliceStable(per, func(i, j int) bool {
		return col.CompareString(per[i].PatientName, per[j].PatientName) < 0
	})
	total.round()
	return total, per
}

// Build assembles the finance report for a period.
func Build(from, to, status string, appts []store.Appointment) Report {
	if status == "" {
		status = StatusAll
	}
	totals, per := Summarize(appts)
	return Report{
		From:         from,
		To:           to,
		Status:       status,
		Totals:       totals,
		PerPatient:   per,
		Appointments: appts,
	}
}
