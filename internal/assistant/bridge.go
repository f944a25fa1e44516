package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medagenda/clinic-scheduling/internal/scheduling"
	"github.com/medagenda/clinic-scheduling/pkg/logging"
)

var (
	// ErrNoPractitioner means no active, accepting practitioner matched the
	// requested specialty, even after diacritic folding.
	ErrNoPractitioner = errors.New("no practitioner for specialty")
	// ErrNoOpenSlots means the forward search found nothing bookable within
	// the intake horizon.
	ErrNoOpenSlots = errors.New("no slots found in horizon")
)

// Booker is the slice of the scheduling service the bridge drives.
type Booker interface {
	BookAppointment(ctx context.Context, patient scheduling.PatientInput, req scheduling.AppointmentRequest) (*scheduling.BookingResult, error)
	FindOpenSlots(ctx context.Context, practitionerID uuid.UUID, fromDate time.Time, want, horizonDays int) ([]scheduling.OpenSlot, error)
}

// PractitionerSource lists the practitioners open to intake bookings.
type PractitionerSource interface {
	ListAcceptingPractitioners(ctx context.Context) ([]scheduling.Practitioner, error)
}

// Intake is the patient bundle collected by the conversational flow. It is
// deliberately looser than the API's booking request: no birth date (age
// only), no sex, a single last-names field.
type Intake struct {
	FirstName string
	LastNames string
	Age       int
	Email     string
	Phone     string
	Specialty string
	Symptoms  string
}

// IntakeBookingResult is what the assistant reads back to the patient.
type IntakeBookingResult struct {
	AppointmentID  uuid.UUID
	Practitioner   string
	Specialty      string
	Date           time.Time
	Start          scheduling.TimeOfDay
	Office         string
	PatientCreated bool
	Message        string
}

// BridgeOptions tunes the intake booking flow.
type BridgeOptions struct {
	HorizonDays int              // forward search window, default 10
	Now         func() time.Time // test hook
	Logger      *logging.Logger
}

// Bridge turns a completed intake conversation into a real booking.
type Bridge struct {
	booker        Booker
	practitioners PractitionerSource
	horizonDays   int
	now           func() time.Time
	logger        *logging.Logger
}

func NewBridge(booker Booker, practitioners PractitionerSource, opts BridgeOptions) *Bridge {
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Bridge{
		booker:        booker,
		practitioners: practitioners,
		horizonDays:   opts.HorizonDays,
		now:           opts.Now,
		logger:        opts.Logger,
	}
}

func (in *Intake) validate() error {
	if strings.TrimSpace(in.FirstName) == "" {
		return &scheduling.ValidationError{Field: "first_name", Reason: "required"}
	}
	if strings.TrimSpace(in.LastNames) == "" {
		return &scheduling.ValidationError{Field: "last_names", Reason: "required"}
	}
	if in.Age < 1 || in.Age > 120 {
		return &scheduling.ValidationError{Field: "age", Reason: "must be between 1 and 120"}
	}
	if strings.TrimSpace(in.Email) == "" {
		return &scheduling.ValidationError{Field: "email", Reason: "required"}
	}
	if strings.TrimSpace(in.Phone) == "" {
		return &scheduling.ValidationError{Field: "phone", Reason: "required"}
	}
	if strings.TrimSpace(in.Specialty) == "" {
		return &scheduling.ValidationError{Field: "specialty", Reason: "required"}
	}
	return nil
}

// splitLastNames maps the intake's single last-names field onto the patient
// record's two: first word is the paternal surname, the rest the maternal.
func splitLastNames(s string) (last, second string) {
	parts := strings.Fields(s)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// resolvePractitioner picks the first active accepting practitioner whose
// specialty matches, exact first, then diacritic-folded.
func (b *Bridge) resolvePractitioner(ctx context.Context, specialty string) (*scheduling.Practitioner, error) {
	candidates, err := b.practitioners.ListAcceptingPractitioners(ctx)
	if err != nil {
		return nil, fmt.Errorf("list practitioners: %w", err)
	}

	want := strings.TrimSpace(specialty)
	for i := range candidates {
		if candidates[i].Specialty == want {
			return &candidates[i], nil
		}
	}

	folded := FoldSpecialty(want)
	for i := range candidates {
		if FoldSpecialty(candidates[i].Specialty) == folded {
			return &candidates[i], nil
		}
	}

	return nil, ErrNoPractitioner
}

// BookFromIntake resolves a practitioner for the requested specialty, finds
// the earliest open slot starting tomorrow and books it. The birth date is
// approximated from the stated age; the conversation never asks for the exact
// date.
func (b *Bridge) BookFromIntake(ctx context.Context, in Intake) (*IntakeBookingResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	practitioner, err := b.resolvePractitioner(ctx, in.Specialty)
	if err != nil {
		return nil, err
	}

	tomorrow := scheduling.CivilDate(b.now()).AddDate(0, 0, 1)
	slots, err := b.booker.FindOpenSlots(ctx, practitioner.ID, tomorrow, 1, b.horizonDays)
	if err != nil {
		return nil, fmt.Errorf("find open slots: %w", err)
	}
	if len(slots) == 0 {
		return nil, ErrNoOpenSlots
	}
	slot := slots[0]

	last, second := splitLastNames(in.LastNames)
	patient := scheduling.PatientInput{
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       last,
		SecondLastName: second,
		// Approximation: the flow collects age, not the birth date.
		BirthDate: scheduling.CivilDate(b.now().AddDate(0, 0, -in.Age*365)),
		Sex:       "O",
		Phone:     strings.TrimSpace(in.Phone),
		Email:     in.Email,
	}

	result, err := b.booker.BookAppointment(ctx, patient, scheduling.AppointmentRequest{
		PractitionerID:  practitioner.ID,
		Date:            slot.Date,
		Start:           slot.Start,
		Reason:          fmt.Sprintf("Consulta por síntomas. Especialidad: %s", practitioner.Specialty),
		InitialSymptoms: strings.TrimSpace(in.Symptoms),
	})
	if err != nil {
		return nil, err
	}

	appt := result.Appointment
	b.logger.Info("intake booking created",
		"appointment_id", appt.ID,
		"practitioner_id", practitioner.ID,
		"specialty", practitioner.Specialty,
		"date", appt.Date.Format("2006-01-02"),
		"time", appt.Start.String(),
	)

	return &IntakeBookingResult{
		AppointmentID:  appt.ID,
		Practitioner:   practitioner.DisplayName(),
		Specialty:      practitioner.Specialty,
		Date:           appt.Date,
		Start:          appt.Start,
		Office:         appt.Office,
		PatientCreated: result.PatientCreated,
		Message:        result.Message,
	}, nil
}
