package app

import (
	"net/http"
	"testing"

	"github.com/tainamorais/clinica-agenda/internal/store"
)

func TestMatchPatient(t *testing.T) {
	p := store.Patient{Name: "José Conceição", SocialName: "Zé", Phone: "(21) 99876-5432", CPF: "123.456.789-09"}
	tests := []struct {
		q    string
		want bool
	}{
		{"", true},
		{"jose", true},
		{"CONCEICAO", true},
		{"ze", true},
		{"98765", true},
		{"456789", true},
		{"maria", false},
		{"111", false},
	}
	for _, tt := range tests {
		if got := matchPatient(p, tt.q); got != tt.want {
			t.Errorf("matchPatient(%q) = %v, want %v", tt.q, got, tt.want)
		}
	}
}

func TestCreatePatient(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/patients", "gestor",
		`{"name":" Ana Lima ","phone":"21999990000","fee":250,"cpf":"11122233344","representative_name":"x"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}
	got := decode[store.Patient](t, w.Body.Bytes())
	if got.ID == 0 || got.Name != "Ana Lima" || got.RepresentativeName != "" {
		t.Fatalf("got %+v", got)
	}

	w = env.do(http.MethodPost, "/api/patients", "gestor",
		`{"name":"Outra","phone":"21999990001","fee":250,"cpf":"11122233344"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate cpf: status = %d, want 409", w.Code)
	}
}

func TestCreatePatient_Validation(t *testing.T) {
	env := newTestEnv(t)
	bodies := []string{
		`{"phone":"1","fee":100}`,
		`{"name":"A","fee":100}`,
		`{"name":"A","phone":"1","fee":0}`,
		`{"name":"A","phone":"1","fee":100,"birth_date":"31/12/1990"}`,
		`{"name":"A","phone":"1","fee":100,"preferred_modality":"telepatia"}`,
	}
	for _, b := range bodies {
		if w := env.do(http.MethodPost, "/api/patients", "admin", b); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", b, w.Code)
		}
	}
}

func TestPatientPermissions(t *testing.T) {
	env := newTestEnv(t)
	pid := env.addPatient(t, "Ana", 200)
	body := `{"name":"Ana Souza","phone":"21999990000","fee":220}`

	if w := env.do(http.MethodPost, "/api/patients", "medico", body); w.Code != http.StatusForbidden {
		t.Errorf("medico create: status = %d, want 403", w.Code)
	}
	if w := env.do(http.MethodPut, "/api/patients/"+itoa(pid), "medico", body); w.Code != http.StatusOK {
		t.Errorf("medico edit: status = %d, want 200", w.Code)
	}
	if w := env.do(http.MethodPut, "/api/patients/"+itoa(pid), "contador", body); w.Code != http.StatusForbidden {
		t.Errorf("contador edit: status = %d, want 403", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/patients", "contador", ""); w.Code != http.StatusOK {
		t.Errorf("contador list: status = %d, want 200", w.Code)
	}
}

func TestListPatients_Search(t *testing.T) {
	env := newTestEnv(t)
	env.addPatient(t, "Júlia Araújo", 200)
	env.addPatient(t, "Marcos", 200)

	w := env.do(http.MethodGet, "/api/patients?q=julia", "medico", "")
	got := decode[[]store.Patient](t, w.Body.Bytes())
	if len(got) != 1 || got[0].Name != "Júlia Araújo" {
		t.Fatalf("got %+v", got)
	}
}

func TestPatientHistory(t *testing.T) {
	env := newTestEnv(t)
	p := &store.Patient{Name: "Ana", Phone: "1", Fee: 200, BirthDate: "1990-08-20"}
	if err := env.store.CreatePatient(t.Context(), p); err != nil {
		t.Fatal(err)
	}
	env.addAppointment(t, p.ID, "2025-08-01", "10:00", 60, true)
	env.addAppointment(t, p.ID, "2025-08-15", "10:00", 60, false)

	w := env.do(http.MethodGet, "/api/patients/"+itoa(p.ID)+"/history", "medico", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode[struct {
		Age          int                 `json:"age"`
		BirthDateBR  string              `json:"birth_date_br"`
		Appointments []store.Appointment `json:"appointments"`
	}](t, w.Body.Bytes())

	// the day before the birthday
	if got.Age != 34 || got.BirthDateBR != "20/08/1990" {
		t.Fatalf("age/birth = %d %q", got.Age, got.BirthDateBR)
	}
	if len(got.Appointments) != 2 || got.Appointments[0].Date != "2025-08-15" {
		t.Fatalf("history should be newest first: %+v", got.Appointments)
	}

	if w := env.do(http.MethodGet, "/api/patients/999/history", "medico", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown patient: status = %d, want 404", w.Code)
	}
}

func TestLastMedications(t *testing.T) {
	env := newTestEnv(t)
	pid := env.addPatient(t, "Ana", 200)
	last := func() string {
		t.Helper()
		w := env.do(http.MethodGet, "/api/patients/"+itoa(pid)+"/last-medications", "gestor", "")
		return decode[struct {
			Medications string `json:"medications"`
		}](t, w.Body.Bytes()).Medications
	}
	add := func(date, meds string) {
		t.Helper()
		a := store.Appointment{PatientID: pid, Date: date, Time: "10:00", DurationMinutes: 60, Medications: meds}
		if err := env.store.CreateAppointment(t.Context(), &a); err != nil {
			t.Fatal(err)
		}
	}

	add("2025-08-01", "sertralina 50mg")
	add("2025-08-10", "sertralina 100mg")
	if got := last(); got != "sertralina 100mg" {
		t.Fatalf("medications = %q", got)
	}

	// only the latest appointment counts, even when it has none
	add("2025-08-15", "")
	if got := last(); got != "" {
		t.Fatalf("medications = %q, want empty", got)
	}
}
