package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/medagenda/clinic-scheduling/internal/scheduling"
)

type PatientPayload struct {
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	SecondLastName    string `json:"second_last_name,omitempty"`
	BirthDate         string `json:"birth_date"` // YYYY-MM-DD
	Sex               string `json:"sex"`
	BloodType         string `json:"blood_type,omitempty"`
	Phone             string `json:"phone"`
	Email             string `json:"email"`
	Address           string `json:"address,omitempty"`
	Allergies         string `json:"allergies,omitempty"`
	ChronicConditions string `json:"chronic_conditions,omitempty"`
}

type CreateAppointmentRequest struct {
	Patient         PatientPayload `json:"patient"`
	PractitionerID  string         `json:"practitioner_id"`
	Date            string         `json:"date"` // YYYY-MM-DD
	Time            string         `json:"time"` // HH:MM
	Reason          string         `json:"reason"`
	InitialSymptoms string         `json:"initial_symptoms,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason,omitempty"`
}

type IntakeBookingRequest struct {
	// SessionID ties the booking to an intake conversation; fields the
	// conversation already collected fill any blanks below, and the session
	// is ended once the booking succeeds.
	SessionID string `json:"session_id,omitempty"`

	FirstName string `json:"first_name"`
	LastNames string `json:"last_names"`
	Age       int    `json:"age"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Specialty string `json:"specialty"`
	Symptoms  string `json:"symptoms,omitempty"`
}

// UpdateSessionRequest carries one intake turn's worth of collected fields.
// Only supplied fields overwrite the stored session.
type UpdateSessionRequest struct {
	Intent             string `json:"intent,omitempty"`
	SuggestedSpecialty string `json:"suggested_specialty,omitempty"`
	Symptoms           string `json:"symptoms,omitempty"`
	FirstName          string `json:"first_name,omitempty"`
	LastNames          string `json:"last_names,omitempty"`
	Age                int    `json:"age,omitempty"`
	Email              string `json:"email,omitempty"`
	Phone              string `json:"phone,omitempty"`
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	PractitionerID  uuid.UUID  `json:"practitioner_id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	Date            string     `json:"date"`
	Time            string     `json:"time"`
	DurationMinutes int        `json:"duration_minutes"`
	Reason          string     `json:"reason"`
	Office          string     `json:"office"`
	Status          string     `json:"status"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
}

type BookingResponse struct {
	Appointment    AppointmentResponse `json:"appointment"`
	PatientCreated bool                `json:"patient_created"`
	Message        string              `json:"message"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	Patient      PersonResponse       `json:"patient"`
	Practitioner PractitionerResponse `json:"practitioner"`
}

type PersonResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone string    `json:"phone"`
}

type PractitionerResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Specialty       string    `json:"specialty"`
	SubSpecialty    string    `json:"sub_specialty,omitempty"`
	SlotMinutes     int       `json:"slot_minutes"`
	ConsultationFee string    `json:"consultation_fee"`
	AcceptsNew      bool      `json:"accepts_new_patients"`
}

type OpenSlotResponse struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type WeeklyAvailabilityResponse struct {
	Weekday int    `json:"weekday"` // 0 = Monday
	Start   string `json:"start"`
	End     string `json:"end"`
	Active  bool   `json:"active"`
}

type IntakeBookingResponse struct {
	AppointmentID  uuid.UUID `json:"appointment_id"`
	Practitioner   string    `json:"practitioner"`
	Specialty      string    `json:"specialty"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	Office         string    `json:"office"`
	PatientCreated bool      `json:"patient_created"`
	Message        string    `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		PractitionerID:  a.PractitionerID,
		PatientID:       a.PatientID,
		Date:            a.Date.Format("2006-01-02"),
		Time:            a.Start.String(),
		DurationMinutes: a.DurationMinutes,
		Reason:          a.Reason,
		Office:          a.Office,
		Status:          string(a.Status),
		CancelledAt:     a.CancelledAt,
	}
}

func toDetailResponse(d *scheduling.AppointmentDetail) AppointmentDetailResponse {
	return AppointmentDetailResponse{
		AppointmentResponse: toAppointmentResponse(&d.Appointment),
		Patient: PersonResponse{
			ID:    d.Patient.ID,
			Name:  d.Patient.FullName(),
			Email: d.Patient.Email,
			Phone: d.Patient.Phone,
		},
		Practitioner: toPractitionerResponse(d.Practitioner),
	}
}

func toPractitionerResponse(p *scheduling.Practitioner) PractitionerResponse {
	return PractitionerResponse{
		ID:              p.ID,
		Name:            p.DisplayName(),
		Specialty:       p.Specialty,
		SubSpecialty:    p.SubSpecialty,
		SlotMinutes:     p.SlotMinutes,
		ConsultationFee: p.ConsultationFee.StringFixed(2),
		AcceptsNew:      p.AcceptsNewPatients,
	}
}
