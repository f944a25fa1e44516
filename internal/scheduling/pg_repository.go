package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs. pgx.Tx satisfies it
// too, which is what makes WithTx work.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Helpers

const patientColumns = `id, first_name, last_name, second_last_name, birth_date, sex, blood_type,
		       phone, email, address, allergies, chronic_conditions, active, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&p.SecondLastName,
		&p.BirthDate,
		&p.Sex,
		&p.BloodType,
		&p.Phone,
		&p.Email,
		&p.Address,
		&p.Allergies,
		&p.ChronicConditions,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

const practitionerColumns = `id, first_name, last_name, second_last_name, specialty, sub_specialty,
		       license_number, specialty_license, years_experience, slot_minutes,
		       consultation_fee, active, accepts_new_patients, created_at, updated_at`

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var p Practitioner

	err := row.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&p.SecondLastName,
		&p.Specialty,
		&p.SubSpecialty,
		&p.LicenseNumber,
		&p.SpecialtyLicense,
		&p.YearsExperience,
		&p.SlotMinutes,
		&p.ConsultationFee,
		&p.Active,
		&p.AcceptsNewPatients,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, err
	}

	return &p, nil
}

const appointmentColumns = `id, practitioner_id, patient_id, visit_date, start_minutes, duration_minutes,
		       reason, initial_symptoms, office, status, confirmed_by_patient, confirmed_at,
		       cancelled_at, cancellation_reason, reminder_sent, reminder_at, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var startMinutes int

	err := row.Scan(
		&a.ID,
		&a.PractitionerID,
		&a.PatientID,
		&a.Date,
		&startMinutes,
		&a.DurationMinutes,
		&a.Reason,
		&a.InitialSymptoms,
		&a.Office,
		&a.Status,
		&a.ConfirmedByPatient,
		&a.ConfirmedAt,
		&a.CancelledAt,
		&a.CancellationReason,
		&a.ReminderSent,
		&a.ReminderAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Start = TimeOfDay(startMinutes)
	a.Date = CivilDate(a.Date)
	return &a, nil
}

// Patients

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetPatientByEmail(ctx context.Context, email string) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE email = $1
	`, email)
	return scanPatient(row)
}

func (r *PgRepository) InsertPatient(ctx context.Context, p *Patient) (*Patient, error) {
	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO patients (id, first_name, last_name, second_last_name, birth_date, sex,
		                      blood_type, phone, email, address, allergies, chronic_conditions,
		                      active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE, now(), now())
		RETURNING `+patientColumns+`
	`, id, p.FirstName, p.LastName, p.SecondLastName, p.BirthDate, p.Sex,
		p.BloodType, p.Phone, p.Email, p.Address, p.Allergies, p.ChronicConditions)

	created, err := scanPatient(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicatePatient
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) UpdatePatientPhone(ctx context.Context, id uuid.UUID, phone string) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE patients
		SET phone = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+patientColumns+`
	`, id, phone)

	return scanPatient(row)
}

// Practitioners

func (r *PgRepository) GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+practitionerColumns+`
		FROM practitioners
		WHERE id = $1
	`, id)
	return scanPractitioner(row)
}

func (r *PgRepository) ListActivePractitioners(ctx context.Context, specialtyContains string) ([]Practitioner, error) {
	query := `
		SELECT ` + practitionerColumns + `
		FROM practitioners
		WHERE active
	`
	args := []any{}
	if specialtyContains != "" {
		query += ` AND specialty ILIKE '%' || $1 || '%'`
		args = append(args, specialtyContains)
	}
	query += ` ORDER BY last_name, first_name`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPractitioners(rows)
}

func (r *PgRepository) ListAcceptingPractitioners(ctx context.Context) ([]Practitioner, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+practitionerColumns+`
		FROM practitioners
		WHERE active AND accepts_new_patients
		ORDER BY last_name, first_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPractitioners(rows)
}

func collectPractitioners(rows pgx.Rows) ([]Practitioner, error) {
	var result []Practitioner
	for rows.Next() {
		p, err := scanPractitioner(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Weekly availability

func (r *PgRepository) ListWeeklyAvailability(ctx context.Context, practitionerID uuid.UUID) ([]WeeklyAvailability, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, practitioner_id, weekday, start_minutes, end_minutes, active
		FROM weekly_availability
		WHERE practitioner_id = $1
		ORDER BY weekday, start_minutes
	`, practitionerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WeeklyAvailability
	for rows.Next() {
		var w WeeklyAvailability
		var start, end int
		if err := rows.Scan(&w.ID, &w.PractitionerID, &w.Weekday, &start, &end, &w.Active); err != nil {
			return nil, err
		}
		w.Start = TimeOfDay(start)
		w.End = TimeOfDay(end)
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Appointments

func (r *PgRepository) HasScheduledAppointment(ctx context.Context, practitionerID uuid.UUID, date time.Time, start TimeOfDay) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE practitioner_id = $1
			  AND visit_date = $2
			  AND start_minutes = $3
			  AND status = 'SCHEDULED'
		)
	`, practitionerID, CivilDate(date), int(start)).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgRepository) InsertAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (id, practitioner_id, patient_id, visit_date, start_minutes,
		                          duration_minutes, reason, initial_symptoms, office, status,
		                          created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, a.PractitionerID, a.PatientID, CivilDate(a.Date), int(a.Start),
		a.DurationMinutes, a.Reason, a.InitialSymptoms, a.Office, a.Status)

	created, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

const detailQuery = `
		SELECT a.id, a.practitioner_id, a.patient_id, a.visit_date, a.start_minutes,
		       a.duration_minutes, a.reason, a.initial_symptoms, a.office, a.status,
		       a.confirmed_by_patient, a.confirmed_at, a.cancelled_at, a.cancellation_reason,
		       a.reminder_sent, a.reminder_at, a.created_at, a.updated_at,
		       p.id, p.first_name, p.last_name, p.second_last_name, p.birth_date, p.sex,
		       p.blood_type, p.phone, p.email, p.address, p.allergies, p.chronic_conditions,
		       p.active, p.created_at, p.updated_at,
		       m.id, m.first_name, m.last_name, m.second_last_name, m.specialty, m.sub_specialty,
		       m.license_number, m.specialty_license, m.years_experience, m.slot_minutes,
		       m.consultation_fee, m.active, m.accepts_new_patients, m.created_at, m.updated_at
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN practitioners m ON m.id = a.practitioner_id`

func scanAppointmentDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	var patient Patient
	var practitioner Practitioner
	var startMinutes int

	err := row.Scan(
		&d.ID, &d.PractitionerID, &d.PatientID, &d.Date, &startMinutes,
		&d.DurationMinutes, &d.Reason, &d.InitialSymptoms, &d.Office, &d.Status,
		&d.ConfirmedByPatient, &d.ConfirmedAt, &d.CancelledAt, &d.CancellationReason,
		&d.ReminderSent, &d.ReminderAt, &d.CreatedAt, &d.UpdatedAt,
		&patient.ID, &patient.FirstName, &patient.LastName, &patient.SecondLastName,
		&patient.BirthDate, &patient.Sex, &patient.BloodType, &patient.Phone, &patient.Email,
		&patient.Address, &patient.Allergies, &patient.ChronicConditions, &patient.Active,
		&patient.CreatedAt, &patient.UpdatedAt,
		&practitioner.ID, &practitioner.FirstName, &practitioner.LastName,
		&practitioner.SecondLastName, &practitioner.Specialty, &practitioner.SubSpecialty,
		&practitioner.LicenseNumber, &practitioner.SpecialtyLicense, &practitioner.YearsExperience,
		&practitioner.SlotMinutes, &practitioner.ConsultationFee, &practitioner.Active,
		&practitioner.AcceptsNewPatients, &practitioner.CreatedAt, &practitioner.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	d.Start = TimeOfDay(startMinutes)
	d.Date = CivilDate(d.Date)
	d.Patient = &patient
	d.Practitioner = &practitioner
	return &d, nil
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	row := r.db.QueryRow(ctx, detailQuery+`
		WHERE a.id = $1
	`, id)
	return scanAppointmentDetail(row)
}

func (r *PgRepository) ListUpcomingAppointments(ctx context.Context, f UpcomingFilter) ([]AppointmentDetail, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	query := detailQuery + `
		WHERE a.status = 'SCHEDULED'
		  AND a.visit_date >= $1`
	args := []any{CivilDate(f.From)}

	if f.PractitionerID != uuid.Nil {
		args = append(args, f.PractitionerID)
		query += fmt.Sprintf(` AND a.practitioner_id = $%d`, len(args))
	}
	if f.PatientID != uuid.Nil {
		args = append(args, f.PatientID)
		query += fmt.Sprintf(` AND a.patient_id = $%d`, len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(`
		ORDER BY a.visit_date, a.start_minutes
		LIMIT $%d`, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		d, err := scanAppointmentDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) ListPastScheduled(ctx context.Context, before time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'SCHEDULED'
		  AND visit_date < $1
		ORDER BY visit_date, start_minutes
	`, CivilDate(before))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) MarkCancelled(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'CANCELLED',
		    cancelled_at = $2,
		    cancellation_reason = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'SCHEDULED'
		RETURNING `+appointmentColumns+`
	`, id, at, reason)

	return scanAppointment(row)
}

func (r *PgRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&PgRepository{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
