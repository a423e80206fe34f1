package access

import (
	"errors"
	"testing"
)

func TestRoleMatrix(t *testing.T) {
	cases := []struct {
		role Role
		cap  Capability
		want bool
	}{
		{RoleAdmin, UsersManage, true},
		{RoleAdmin, AppointmentsWrite, true},
		{RoleGestor, UsersManage, false},
		{RoleGestor, AppointmentsWrite, true},
		{RoleGestor, BlocksWrite, true},
		{RoleGestor, PaymentsWrite, true},
		{RoleMedico, AgendaRead, true},
		{RoleMedico, PatientsEdit, true},
		{RoleMedico, PatientsCreate, false},
		{RoleMedico, AppointmentsWrite, false},
		{RoleMedico, BlocksWrite, false},
		{RoleMedico, UsersManage, false},
		{RoleContador, FinanceRead, true},
		{RoleContador, DataExport, true},
		{RoleContador, PatientsEdit, false},
		{RoleContador, PatientsCreate, false},
		{RoleContador, AppointmentsWrite, false},
		{RoleContador, PaymentsWrite, false},
		{Role("visitante"), AgendaRead, false},
	}
	for _, tc := range cases {
		if got := tc.role.Can(tc.cap); got != tc.want {
			t.Errorf("%s.Can(%s) = %v, want %v", tc.role, tc.cap, got, tc.want)
		}
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Gestor ")
	if err != nil || r != RoleGestor {
		t.Errorf("got %q %v", r, err)
	}
	if _, err := ParseRole("owner"); !errors.Is(err, ErrUnknownRole) {
		t.Errorf("expected ErrUnknownRole, got %v", err)
	}
}

func TestRequire(t *testing.T) {
	if err := RoleContador.Require(PatientsCreate); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if err := RoleAdmin.Require(UsersManage); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCapabilities(t *testing.T) {
	if n := len(RoleAdmin.Capabilities()); n != len(allCapabilities) {
		t.Errorf("admin should hold all %d capabilities, got %d", len(allCapabilities), n)
	}
	if n := len(RoleGestor.Capabilities()); n != len(allCapabilities)-1 {
		t.Errorf("gestor should miss exactly one capability, got %d", n)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Dra.Ana@Clinica.COM "); got != "dra.ana@clinica.com" {
		t.Errorf("got %q", got)
	}
}
