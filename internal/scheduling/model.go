package scheduling

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "SCHEDULED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusExpired   AppointmentStatus = "EXPIRED"
)

// TimeOfDay is a clock time expressed as minutes since midnight, so slot
// comparisons and the half-hour grid stay plain integer arithmetic.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM" (and tolerates a trailing ":SS").
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}

	var hour, minute int
	if _, err := fmt.Sscanf(parts[0]+":"+parts[1], "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}

	return NewTimeOfDay(hour, minute), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// At anchors the time of day to a calendar date in the given location.
func (t TimeOfDay) At(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

// CivilDate strips the clock component, normalising to midnight UTC so date
// equality and ordering are unambiguous.
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekdayIndex maps a date to the 0=Monday..6=Sunday convention used by the
// weekly availability template.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// IsWeekend reports whether the clinic is closed for that date. Saturday and
// Sunday are skipped by slot search regardless of the availability template.
func IsWeekend(t time.Time) bool {
	return WeekdayIndex(t) >= 5
}

type Patient struct {
	ID                uuid.UUID
	FirstName         string
	LastName          string
	SecondLastName    string
	BirthDate         time.Time
	Sex               string // M, F, O
	BloodType         string
	Phone             string
	Email             string
	Address           string
	Allergies         string
	ChronicConditions string
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (p *Patient) FullName() string {
	if p.SecondLastName != "" {
		return fmt.Sprintf("%s %s %s", p.FirstName, p.LastName, p.SecondLastName)
	}
	return fmt.Sprintf("%s %s", p.FirstName, p.LastName)
}

type Practitioner struct {
	ID                 uuid.UUID
	FirstName          string
	LastName           string
	SecondLastName     string
	Specialty          string
	SubSpecialty       string
	LicenseNumber      string
	SpecialtyLicense   string
	YearsExperience    int
	SlotMinutes        int // standard visit length, 15..120
	ConsultationFee    decimal.Decimal
	Active             bool
	AcceptsNewPatients bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (p *Practitioner) DisplayName() string {
	if p.SecondLastName != "" {
		return fmt.Sprintf("Dr(a). %s %s %s", p.FirstName, p.LastName, p.SecondLastName)
	}
	return fmt.Sprintf("Dr(a). %s %s", p.FirstName, p.LastName)
}

// WeeklyAvailability is one recurring open window per weekday. It is the
// authoritative template of a practitioner's hours, although slot search
// currently runs on the fixed grid instead of consulting it.
type WeeklyAvailability struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	Weekday        int // 0 = Monday .. 6 = Sunday
	Start          TimeOfDay
	End            TimeOfDay
	Active         bool
}

type Appointment struct {
	ID                 uuid.UUID
	PractitionerID     uuid.UUID
	PatientID          uuid.UUID
	Date               time.Time // civil date, midnight UTC
	Start              TimeOfDay
	DurationMinutes    int
	Reason             string
	InitialSymptoms    string
	Office             string
	Status             AppointmentStatus
	ConfirmedByPatient bool
	ConfirmedAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason string
	ReminderSent       bool
	ReminderAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StartsAt is the appointment's wall-clock start in the clinic timezone.
func (a *Appointment) StartsAt(loc *time.Location) time.Time {
	return a.Start.At(a.Date, loc)
}

type AppointmentDetail struct {
	Appointment
	Patient      *Patient
	Practitioner *Practitioner
}

// OpenSlot is one bookable (date, time) candidate returned by slot search.
type OpenSlot struct {
	Date  time.Time
	Start TimeOfDay
}
