package access

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownRole = errors.New("unknown role")
	ErrForbidden   = errors.New("forbidden")
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleGestor   Role = "gestor"
	RoleMedico   Role = "medico"
	RoleContador Role = "contador"
)

// Roles lists every role in decreasing order of privilege.
var Roles = []Role{RoleAdmin, RoleGestor, RoleMedico, RoleContador}

type Capability string

const (
	AgendaRead        Capability = "agenda:read"
	AppointmentsWrite Capability = "appointments:write"
	PatientsRead      Capability = "patients:read"
	PatientsCreate    Capability = "patients:create"
	PatientsEdit      Capability = "patients:edit"
	BlocksWrite       Capability = "blocks:write"
	FinanceRead       Capability = "finance:read"
	PaymentsWrite     Capability = "payments:write"
	UsersManage       Capability = "users:manage"
	DataExport        Capability = "data:export"
)

var allCapabilities = []Capability{
	AgendaRead, AppointmentsWrite, PatientsRead, PatientsCreate, PatientsEdit,
	BlocksWrite, FinanceRead, PaymentsWrite, UsersManage, DataExport,
}

var grants = map[Role]map[Capability]bool{
	RoleAdmin:  set(allCapabilities...),
	RoleGestor: set(without(allCapabilities, UsersManage)...),
	// medico reads the agenda and may only edit patient records
	RoleMedico: set(AgendaRead, PatientsRead, PatientsEdit, FinanceRead),
	// contador is read-only
	RoleContador: set(AgendaRead, PatientsRead, FinanceRead, DataExport),
}

func set(caps ...Capability) map[Capability]bool {
	m := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		m[c] = true
	}
	return m
}

func without(caps []Capability, drop Capability) []Capability {
	out := make([]Capability, 0, len(caps))
	for _, c := range caps {
		if c != drop {
			out = append(out, c)
		}
	}
	return out
}

// ParseRole accepts role names case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := grants[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Can reports whether the role holds the capability.
func (r Role) Can(c Capability) bool {
	return grants[r][c]
}

// Capabilities returns the role's capabilities in a stable order.
func (r Role) Capabilities() []Capability {
	var out []Capability
	for _, c := range allCapabilities {
		if r.Can(c) {
			out = append(out, c)
		}
	}
	return out
}

// Require returns ErrForbidden when the role lacks the capability.
func (r Role) Require(c Capability) error {
	if !r.Can(c) {
		return fmt.Errorf("%w: role %s lacks %s", ErrForbidden, r, c)
	}
	return nil
}

// NormalizeEmail lower-cases and trims an address for allow-list lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
