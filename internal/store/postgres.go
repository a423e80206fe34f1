package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tainamorais/clinica-agenda/internal/access"
	"github.com/tainamorais/clinica-agenda/internal/slots"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Postgres is the primary Store backed by a pgx pool.
type Postgres struct {
	DB *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{DB: pool}
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// ---- patients ----

func patientColumnsAs(alias string) string {
	return fmt.Sprintf(`%[1]sid, %[1]sname, %[1]ssocial_name, %[1]sphone, %[1]saddress,
	COALESCE(to_char(%[1]sbirth_date, 'YYYY-MM-DD'), ''), %[1]scpf, %[1]sfee, %[1]spreferred_modality,
	%[1]sbirthplace, %[1]ssex, %[1]smarital_status, %[1]sreligion, %[1]srace, %[1]sschooling,
	%[1]sprofession, %[1]sreferred_by, %[1]shas_representative, %[1]srepresentative_name,
	%[1]srepresentative_phone, %[1]screated_at`, alias)
}

var patientColumns = patientColumnsAs("")

func scanPatient(row pgx.Row, p *Patient) error {
	return row.Scan(&p.ID, &p.Name, &p.SocialName, &p.Phone, &p.Address,
		&p.BirthDate, &p.CPF, &p.Fee, &p.PreferredModality,
		&p.Birthplace, &p.Sex, &p.MaritalStatus, &p.Religion, &p.Race, &p.Schooling,
		&p.Profession, &p.ReferredBy,
		&p.HasRepresentative, &p.RepresentativeName, &p.RepresentativePhone, &p.CreatedAt)
}

func patientArgs(p *Patient) []any {
	return []any{p.Name, p.SocialName, p.Phone, p.Address, p.BirthDate, p.CPF, p.Fee,
		p.PreferredModality, p.Birthplace, p.Sex, p.MaritalStatus, p.Religion, p.Race,
		p.Schooling, p.Profession, p.ReferredBy,
		p.HasRepresentative, p.RepresentativeName, p.RepresentativePhone}
}

// cpfTaken reports whether another patient already uses cpf. Empty CPFs never clash.
func (s *Postgres) cpfTaken(ctx context.Context, cpf string, exceptID int64) (bool, error) {
	if strings.TrimSpace(cpf) == "" {
		return false, nil
	}
	var id int64
	err := s.DB.QueryRow(ctx, `SELECT id FROM patients WHERE cpf=$1 AND id<>$2 LIMIT 1`, cpf, exceptID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Postgres) CreatePatient(ctx context.Context, p *Patient) error {
	taken, err := s.cpfTaken(ctx, p.CPF, 0)
	if err != nil {
		return fmt.Errorf("check cpf: %w", err)
	}
	if taken {
		return ErrDuplicateCPF
	}

	q := `INSERT INTO patients
	      (name, social_name, phone, address, birth_date, cpf, fee, preferred_modality,
	       birthplace, sex, marital_status, religion, race, schooling, profession, referred_by,
	       has_representative, representative_name, representative_phone)
	      VALUES ($1,$2,$3,$4,NULLIF($5,'')::date,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	      RETURNING id, created_at`
	err = s.DB.QueryRow(ctx, q, patientArgs(p)...).Scan(&p.ID, &p.CreatedAt)
	if pgCode(err) == pgUniqueViolation {
		return ErrDuplicateCPF
	}
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (s *Postgres) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	var p Patient
	err := scanPatient(s.DB.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id=$1`, id), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient %d: %w", id, err)
	}
	return &p, nil
}

func (s *Postgres) UpdatePatient(ctx context.Context, p *Patient) error {
	taken, err := s.cpfTaken(ctx, p.CPF, p.ID)
	if err != nil {
		return fmt.Errorf("check cpf: %w", err)
	}
	if taken {
		return ErrDuplicateCPF
	}

	q := `UPDATE patients SET
	        name=$1, social_name=$2, phone=$3, address=$4, birth_date=NULLIF($5,'')::date,
	        cpf=$6, fee=$7, preferred_modality=$8, birthplace=$9, sex=$10, marital_status=$11,
	        religion=$12, race=$13, schooling=$14, profession=$15, referred_by=$16,
	        has_representative=$17, representative_name=$18, representative_phone=$19
	      WHERE id=$20
	      RETURNING created_at`
	args := append(patientArgs(p), p.ID)
	err = s.DB.QueryRow(ctx, q, args...).Scan(&p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if pgCode(err) == pgUniqueViolation {
		return ErrDuplicateCPF
	}
	if err != nil {
		return fmt.Errorf("update patient %d: %w", p.ID, err)
	}
	return nil
}

func (s *Postgres) DeletePatient(ctx context.Context, id int64) error {
	res, err := s.DB.Exec(ctx, `DELETE FROM patients WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete patient %d: %w", id, err)
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+patientColumns+` FROM patients ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	out := []Patient{}
	for rows.Next() {
		var p Patient
		if err := scanPatient(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ---- appointments ----

const appointmentColumns = `a.id, a.patient_id, to_char(a.date, 'YYYY-MM-DD'), to_char(a.start_time, 'HH24:MI'),
	a.duration_minutes, a.kind, a.paid, a.payer_name, a.invoice_issued, a.notes, a.medications,
	a.summary, a.modality, a.booked_at`

func scanAppointment(row pgx.Row, a *Appointment, extra ...any) error {
	dest := []any{&a.ID, &a.PatientID, &a.Date, &a.Time, &a.DurationMinutes, &a.Kind, &a.Paid,
		&a.PayerName, &a.InvoiceIssued, &a.Notes, &a.Medications, &a.Summary, &a.Modality, &a.BookedAt}
	return row.Scan(append(dest, extra...)...)
}

// checkSlot serialises bookings per date with a transaction-scoped advisory
// lock, then rejects a candidate that overlaps any other appointment that day.
func checkSlot(ctx context.Context, tx pgx.Tx, a *Appointment) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, a.Date); err != nil {
		return fmt.Errorf("lock date %s: %w", a.Date, err)
	}

	q := `SELECT to_char(start_time, 'HH24:MI'), duration_minutes
	      FROM appointments WHERE date=$1 AND id<>$2 FOR UPDATE`
	rows, err := tx.Query(ctx, q, a.Date, a.ID)
	if err != nil {
		return fmt.Errorf("load bookings for %s: %w", a.Date, err)
	}
	defer rows.Close()

	var existing []slots.Booking
	for rows.Next() {
		var b slots.Booking
		if err := rows.Scan(&b.Start, &b.DurationMinutes); err != nil {
			return err
		}
		existing = append(existing, b)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if slots.Conflicts(existing, slots.Booking{Start: a.Time, DurationMinutes: a.DurationMinutes}) {
		return ErrSlotTaken
	}
	return nil
}

func (s *Postgres) CreateAppointment(ctx context.Context, a *Appointment) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := checkSlot(ctx, tx, a); err != nil {
		return err
	}

	q := `INSERT INTO appointments
	      (patient_id, date, start_time, duration_minutes, kind, paid, payer_name, invoice_issued,
	       notes, medications, summary, modality)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	      RETURNING id, booked_at`
	err = tx.QueryRow(ctx, q, a.PatientID, a.Date, a.Time, a.DurationMinutes, a.Kind, a.Paid,
		a.PayerName, a.InvoiceIssued, a.Notes, a.Medications, a.Summary, a.Modality,
	).Scan(&a.ID, &a.BookedAt)
	if pgCode(err) == pgForeignKeyViolation {
		return ErrPatientNotFound
	}
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Postgres) UpdateAppointment(ctx context.Context, a *Appointment) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := checkSlot(ctx, tx, a); err != nil {
		return err
	}

	q := `UPDATE appointments SET
	        patient_id=$1, date=$2, start_time=$3, duration_minutes=$4, kind=$5, paid=$6,
	        payer_name=$7, invoice_issued=$8, notes=$9, medications=$10, summary=$11, modality=$12
	      WHERE id=$13
	      RETURNING booked_at`
	err = tx.QueryRow(ctx, q, a.PatientID, a.Date, a.Time, a.DurationMinutes, a.Kind, a.Paid,
		a.PayerName, a.InvoiceIssued, a.Notes, a.Medications, a.Summary, a.Modality, a.ID,
	).Scan(&a.BookedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if pgCode(err) == pgForeignKeyViolation {
		return ErrPatientNotFound
	}
	if err != nil {
		return fmt.Errorf("update appointment %d: %w", a.ID, err)
	}
	return tx.Commit(ctx)
}

func (s *Postgres) DeleteAppointment(ctx context.Context, id int64) error {
	res, err := s.DB.Exec(ctx, `DELETE FROM appointments WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment %d: %w", id, err)
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) GetAppointment(ctx context.Context, id int64) (*Appointment, error) {
	var a Appointment
	err := scanAppointment(s.DB.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments a WHERE a.id=$1`, id), &a)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment %d: %w", id, err)
	}
	return &a, nil
}

// ListAppointments returns matching appointments with their patient, ordered by
// date and start time.
func (s *Postgres) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.From != "" {
		add("a.date >= $%d", f.From)
	}
	if f.To != "" {
		add("a.date <= $%d", f.To)
	}
	if f.PatientID != 0 {
		add("a.patient_id = $%d", f.PatientID)
	}
	if f.Paid != nil {
		add("a.paid = $%d", *f.Paid)
	}

	q := `SELECT ` + appointmentColumns + `, ` + patientColumnsAs("p.") + `
	      FROM appointments a JOIN patients p ON p.id = a.patient_id`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY a.date, a.start_time, a.id`

	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	out := []Appointment{}
	for rows.Next() {
		var (
			a Appointment
			p Patient
		)
		err := scanAppointment(rows, &a, &p.ID, &p.Name, &p.SocialName, &p.Phone, &p.Address,
			&p.BirthDate, &p.CPF, &p.Fee, &p.PreferredModality,
			&p.Birthplace, &p.Sex, &p.MaritalStatus, &p.Religion, &p.Race, &p.Schooling,
			&p.Profession, &p.ReferredBy,
			&p.HasRepresentative, &p.RepresentativeName, &p.RepresentativePhone, &p.CreatedAt)
		if err != nil {
			return nil, err
		}
		a.Patient = &p
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Postgres) SetPaid(ctx context.Context, id int64, paid bool) (*Appointment, error) {
	var a Appointment
	q := `UPDATE appointments a SET paid=$1 WHERE a.id=$2 RETURNING ` + appointmentColumns
	err := scanAppointment(s.DB.QueryRow(ctx, q, paid, id), &a)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("set paid %d: %w", id, err)
	}
	return &a, nil
}

// LastMedications returns the medications noted on the patient's most recent
// appointment, which is "" when that appointment has none.
func (s *Postgres) LastMedications(ctx context.Context, patientID int64) (string, error) {
	var meds string
	q := `SELECT medications FROM appointments
	      WHERE patient_id=$1
	      ORDER BY date DESC, start_time DESC LIMIT 1`
	err := s.DB.QueryRow(ctx, q, patientID).Scan(&meds)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("last medications: %w", err)
	}
	return meds, nil
}

// ---- blocks ----

func (s *Postgres) CreateBlock(ctx context.Context, b *Block) error {
	q := `INSERT INTO schedule_blocks (date, start_time, end_time, reason)
	      VALUES ($1, NULLIF($2,'')::time, NULLIF($3,'')::time, $4)
	      RETURNING id, created_at`
	if err := s.DB.QueryRow(ctx, q, b.Date, b.Start, b.End, b.Reason).Scan(&b.ID, &b.CreatedAt); err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

func (s *Postgres) ListBlocks(ctx context.Context, from, to string) ([]Block, error) {
	q := `SELECT id, to_char(date, 'YYYY-MM-DD'),
	             COALESCE(to_char(start_time, 'HH24:MI'), ''), COALESCE(to_char(end_time, 'HH24:MI'), ''),
	             reason, created_at
	      FROM schedule_blocks WHERE date BETWEEN $1 AND $2
	      ORDER BY date, start_time NULLS FIRST, id`
	rows, err := s.DB.Query(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	out := []Block{}
	for rows.Next() {
		var b Block
		if err := rows.Scan(&b.ID, &b.Date, &b.Start, &b.End, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Postgres) DeleteBlock(ctx context.Context, id int64) error {
	res, err := s.DB.Exec(ctx, `DELETE FROM schedule_blocks WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete block %d: %w", id, err)
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) WeekendOverrides(ctx context.Context, from, to string) (map[string]bool, error) {
	q := `SELECT to_char(date, 'YYYY-MM-DD'), enabled FROM weekend_overrides WHERE date BETWEEN $1 AND $2`
	rows, err := s.DB.Query(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("list weekend overrides: %w", err)
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var (
			d  string
			on bool
		)
		if err := rows.Scan(&d, &on); err != nil {
			return nil, err
		}
		out[d] = on
	}
	return out, rows.Err()
}

func (s *Postgres) SetWeekendOverride(ctx context.Context, date string, enabled bool) error {
	q := `INSERT INTO weekend_overrides (date, enabled) VALUES ($1, $2)
	      ON CONFLICT (date) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = now()`
	if _, err := s.DB.Exec(ctx, q, date, enabled); err != nil {
		return fmt.Errorf("set weekend override %s: %w", date, err)
	}
	return nil
}

// ---- allowed emails ----

func (s *Postgres) RoleForEmail(ctx context.Context, email string) (string, error) {
	var role string
	err := s.DB.QueryRow(ctx, `SELECT role FROM allowed_emails WHERE email=$1`, access.NormalizeEmail(email)).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup role: %w", err)
	}
	return role, nil
}

func (s *Postgres) ListAllowedEmails(ctx context.Context) ([]AllowedEmail, error) {
	rows, err := s.DB.Query(ctx, `SELECT email, role, created_at FROM allowed_emails ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list allowed emails: %w", err)
	}
	defer rows.Close()

	out := []AllowedEmail{}
	for rows.Next() {
		var e AllowedEmail
		if err := rows.Scan(&e.Email, &e.Role, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Postgres) PutAllowedEmail(ctx context.Context, e *AllowedEmail) error {
	e.Email = access.NormalizeEmail(e.Email)
	err := s.DB.QueryRow(ctx,
		`INSERT INTO allowed_emails (email, role) VALUES ($1, $2) RETURNING created_at`,
		e.Email, e.Role).Scan(&e.CreatedAt)
	if pgCode(err) == pgUniqueViolation {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert allowed email: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateAllowedEmailRole(ctx context.Context, email, role string) error {
	res, err := s.DB.Exec(ctx, `UPDATE allowed_emails SET role=$1 WHERE email=$2`, role, access.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) DeleteAllowedEmail(ctx context.Context, email string) error {
	res, err := s.DB.Exec(ctx, `DELETE FROM allowed_emails WHERE email=$1`, access.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("delete allowed email: %w", err)
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- dumps ----

// DumpTables lists the tables included in backups and exports.
var DumpTables = []string{"patients", "appointments", "allowed_emails", "schedule_blocks", "weekend_overrides"}

// DumpTable returns every row of table as a JSON array and the row count.
func (s *Postgres) DumpTable(ctx context.Context, table string) (json.RawMessage, int, error) {
	known := false
	for _, t := range DumpTables {
		if t == table {
			known = true
			break
		}
	}
	if !known {
		return nil, 0, fmt.Errorf("dump %q: unknown table", table)
	}

	q := fmt.Sprintf(`SELECT COALESCE(json_agg(row_to_json(t)), '[]'::json), count(*) FROM %s t`,
		pgx.Identifier{table}.Sanitize())
	var (
		raw []byte
		n   int
	)
	if err := s.DB.QueryRow(ctx, q).Scan(&raw, &n); err != nil {
		return nil, 0, fmt.Errorf("dump %s: %w", table, err)
	}
	return json.RawMessage(raw), n, nil
}
