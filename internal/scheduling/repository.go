package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPractitionerNotFound = errors.New("practitioner not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")

	// ErrSlotConflict is the storage-level uniqueness violation for a
	// (practitioner, date, time) slot. Callers remap it to SlotUnavailableError.
	ErrSlotConflict = errors.New("slot already has a scheduled appointment")

	// ErrDuplicatePatient is the storage-level uniqueness violation on the
	// patient email. The directory retries the lookup and reuses the row that
	// won the race.
	ErrDuplicatePatient = errors.New("patient email already registered")

	ErrSlotBeingBooked = errors.New("slot is currently being booked, please retry")
)

// SlotUnavailableError carries the human-readable reason the availability
// check produced, so callers can surface it unchanged.
type SlotUnavailableError struct {
	Reason string
}

func (e *SlotUnavailableError) Error() string {
	return fmt.Sprintf("slot unavailable: %s", e.Reason)
}

// ValidationError rejects malformed input before any write happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CancellationNotAllowedError explains why a cancellation was refused.
type CancellationNotAllowedError struct {
	Reason string
}

func (e *CancellationNotAllowedError) Error() string {
	return fmt.Sprintf("cannot cancel: %s", e.Reason)
}

// UpcomingFilter narrows the upcoming-appointments listing. Zero-value UUIDs
// mean no filter on that dimension.
type UpcomingFilter struct {
	PractitionerID uuid.UUID
	PatientID      uuid.UUID
	From           time.Time
	Limit          int
}

// Repository contains all DB interactions needed by the services.
type Repository interface {
	// Patients
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPatientByEmail(ctx context.Context, email string) (*Patient, error)
	InsertPatient(ctx context.Context, p *Patient) (*Patient, error)
	UpdatePatientPhone(ctx context.Context, id uuid.UUID, phone string) (*Patient, error)

	// Practitioners
	GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)
	// ListActivePractitioners returns active practitioners, optionally
	// filtered by a case-insensitive specialty substring.
	ListActivePractitioners(ctx context.Context, specialtyContains string) ([]Practitioner, error)
	// ListAcceptingPractitioners returns active practitioners that accept
	// new patients, for intake-driven specialty matching.
	ListAcceptingPractitioners(ctx context.Context) ([]Practitioner, error)

	// Weekly availability template
	ListWeeklyAvailability(ctx context.Context, practitionerID uuid.UUID) ([]WeeklyAvailability, error)

	// Appointments
	HasScheduledAppointment(ctx context.Context, practitionerID uuid.UUID, date time.Time, start TimeOfDay) (bool, error)
	InsertAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	ListUpcomingAppointments(ctx context.Context, f UpcomingFilter) ([]AppointmentDetail, error)
	// ListPastScheduled returns SCHEDULED appointments dated strictly
	// before the given civil date.
	ListPastScheduled(ctx context.Context, before time.Time) ([]Appointment, error)
	// UpdateAppointmentStatus is a compare-and-swap on status.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	// MarkCancelled flips a SCHEDULED appointment to CANCELLED, stamping
	// the cancellation time and reason.
	MarkCancelled(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*Appointment, error)

	// WithTx runs fn against a transaction-scoped repository. All writes
	// inside fn commit or roll back as one unit.
	WithTx(ctx context.Context, fn func(Repository) error) error
}
