package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medagenda/clinic-scheduling/internal/assistant"
	redisclient "github.com/medagenda/clinic-scheduling/internal/redis"
	"github.com/medagenda/clinic-scheduling/internal/scheduling"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func createAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		practitionerID, err := uuid.Parse(req.PractitionerID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
			return
		}
		date, err := parseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		start, err := scheduling.ParseTimeOfDay(req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", "time must be HH:MM")
			return
		}

		patient := scheduling.PatientInput{
			FirstName:         req.Patient.FirstName,
			LastName:          req.Patient.LastName,
			SecondLastName:    req.Patient.SecondLastName,
			Sex:               req.Patient.Sex,
			BloodType:         req.Patient.BloodType,
			Phone:             req.Patient.Phone,
			Email:             req.Patient.Email,
			Address:           req.Patient.Address,
			Allergies:         req.Patient.Allergies,
			ChronicConditions: req.Patient.ChronicConditions,
		}
		if req.Patient.BirthDate != "" {
			birthDate, err := parseDate(req.Patient.BirthDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_birth_date", "birth_date must be YYYY-MM-DD")
				return
			}
			patient.BirthDate = birthDate
		}

		result, err := svc.BookAppointment(r.Context(), patient, scheduling.AppointmentRequest{
			PractitionerID:  practitionerID,
			Date:            date,
			Start:           start,
			Reason:          req.Reason,
			InitialSymptoms: req.InitialSymptoms,
		})
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, BookingResponse{
			Appointment:    toAppointmentResponse(result.Appointment),
			PatientCreated: result.PatientCreated,
			Message:        result.Message,
		})
	}
}

func cancelAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req CancelAppointmentRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
				return
			}
		}

		appt, err := svc.CancelAppointment(r.Context(), id, req.Reason)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		detail, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toDetailResponse(detail))
	}
}

func listAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter scheduling.UpcomingFilter

		if v := r.URL.Query().Get("practitioner_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
				return
			}
			filter.PractitionerID = id
		}
		if v := r.URL.Query().Get("patient_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			filter.PatientID = id
		}
		if v := r.URL.Query().Get("limit"); v != "" {
			limit, err := strconv.Atoi(v)
			if err != nil || limit < 1 {
				writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
				return
			}
			filter.Limit = limit
		}

		appointments, err := svc.ListUpcoming(r.Context(), filter)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		out := make([]AppointmentDetailResponse, 0, len(appointments))
		for i := range appointments {
			out = append(out, toDetailResponse(&appointments[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func listPractitionersHandler(directory *scheduling.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		specialty := r.URL.Query().Get("specialty")

		practitioners, err := directory.ListActivePractitioners(r.Context(), specialty)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		out := make([]PractitionerResponse, 0, len(practitioners))
		for i := range practitioners {
			out = append(out, toPractitionerResponse(&practitioners[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// defaultSearchStart is today on the clinic calendar, as a civil date. Near
// midnight the server-local date can differ from the clinic's by a day.
func defaultSearchStart(loc *time.Location, now time.Time) time.Time {
	return scheduling.CivilDate(now.In(loc))
}

func openSlotsHandler(svc *scheduling.Service, loc *time.Location, horizonDays int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "id must be a valid UUID")
			return
		}

		from := defaultSearchStart(loc, time.Now())
		if v := r.URL.Query().Get("from"); v != "" {
			from, err = parseDate(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
				return
			}
		}

		count := 5
		if v := r.URL.Query().Get("count"); v != "" {
			count, err = strconv.Atoi(v)
			if err != nil || count < 1 || count > 50 {
				writeError(w, http.StatusBadRequest, "invalid_count", "count must be between 1 and 50")
				return
			}
		}

		slots, err := svc.FindOpenSlots(r.Context(), id, from, count, horizonDays)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		out := make([]OpenSlotResponse, 0, len(slots))
		for _, s := range slots {
			out = append(out, OpenSlotResponse{
				Date: s.Date.Format("2006-01-02"),
				Time: s.Start.String(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func weeklyScheduleHandler(directory *scheduling.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "id must be a valid UUID")
			return
		}

		windows, err := directory.ListWeeklyAvailability(r.Context(), id)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		out := make([]WeeklyAvailabilityResponse, 0, len(windows))
		for _, win := range windows {
			out = append(out, WeeklyAvailabilityResponse{
				Weekday: win.Weekday,
				Start:   win.Start.String(),
				End:     win.End.String(),
				Active:  win.Active,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func startSessionHandler(store *assistant.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := store.Start(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, session)
	}
}

func getSessionHandler(store *assistant.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_session_id", "id must be a valid UUID")
			return
		}

		session, err := store.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		if session == nil {
			writeError(w, http.StatusNotFound, "session_not_found", "session missing or expired, start a new one")
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

func updateSessionHandler(store *assistant.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_session_id", "id must be a valid UUID")
			return
		}

		var req UpdateSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		session, err := store.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		if session == nil {
			writeError(w, http.StatusNotFound, "session_not_found", "session missing or expired, start a new one")
			return
		}

		if req.Intent != "" {
			session.Intent = req.Intent
		}
		if req.SuggestedSpecialty != "" {
			session.SuggestedSpecialty = req.SuggestedSpecialty
		}
		if req.Symptoms != "" {
			session.Symptoms = req.Symptoms
		}
		if req.FirstName != "" {
			session.FirstName = req.FirstName
		}
		if req.LastNames != "" {
			session.LastNames = req.LastNames
		}
		if req.Age != 0 {
			session.Age = req.Age
		}
		if req.Email != "" {
			session.Email = req.Email
		}
		if req.Phone != "" {
			session.Phone = req.Phone
		}

		if err := store.Save(r.Context(), session); err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

func endSessionHandler(store *assistant.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_session_id", "id must be a valid UUID")
			return
		}
		if err := store.End(r.Context(), id); err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func intakeBookingHandler(bridge *assistant.Bridge, sessions *assistant.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req IntakeBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var session *assistant.Session
		if sessions != nil && req.SessionID != "" {
			sid, err := uuid.Parse(req.SessionID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_session_id", "session_id must be a valid UUID")
				return
			}
			// An expired session is not an error; the request stands alone.
			session, err = sessions.Get(r.Context(), sid)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
				return
			}
		}

		intake := assistant.Intake{
			FirstName: req.FirstName,
			LastNames: req.LastNames,
			Age:       req.Age,
			Email:     req.Email,
			Phone:     req.Phone,
			Specialty: req.Specialty,
			Symptoms:  req.Symptoms,
		}
		if session != nil {
			session.FillIntake(&intake)
		}

		result, err := bridge.BookFromIntake(r.Context(), intake)
		if err != nil {
			handleIntakeError(w, err)
			return
		}

		if session != nil {
			// Best effort; the booking already exists.
			_ = sessions.End(r.Context(), session.ID)
		}

		writeJSON(w, http.StatusCreated, IntakeBookingResponse{
			AppointmentID:  result.AppointmentID,
			Practitioner:   result.Practitioner,
			Specialty:      result.Specialty,
			Date:           result.Date.Format("2006-01-02"),
			Time:           result.Start.String(),
			Office:         result.Office,
			PatientCreated: result.PatientCreated,
			Message:        result.Message,
		})
	}
}

func handleSchedulingError(w http.ResponseWriter, err error) {
	var invalid *scheduling.ValidationError
	var unavailable *scheduling.SlotUnavailableError
	var notAllowed *scheduling.CancellationNotAllowedError

	switch {
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, "validation_failed", invalid.Error())
	case errors.As(err, &unavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", unavailable.Reason)
	case errors.As(err, &notAllowed):
		writeError(w, http.StatusConflict, "cancellation_not_allowed", notAllowed.Reason)
	case errors.Is(err, scheduling.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, scheduling.ErrPractitionerNotFound):
		writeError(w, http.StatusNotFound, "practitioner_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleIntakeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assistant.ErrNoPractitioner):
		writeError(w, http.StatusNotFound, "no_practitioner_for_specialty", err.Error())
	case errors.Is(err, assistant.ErrNoOpenSlots):
		writeError(w, http.StatusConflict, "no_open_slots", err.Error())
	default:
		handleSchedulingError(w, err)
	}
}
