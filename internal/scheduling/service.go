package scheduling

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medagenda/clinic-scheduling/internal/config"
	redisclient "github.com/medagenda/clinic-scheduling/internal/redis"
	"github.com/medagenda/clinic-scheduling/pkg/logging"
)

// Metrics receives booking and reconciliation outcome counts. Implemented by
// observability/metrics; nil disables instrumentation.
type Metrics interface {
	BookingAttempt(result string)
	AppointmentCancelled()
	Reconciled(status AppointmentStatus, n int)
}

// ConfirmationSender delivers the booking confirmation to the patient. The
// send is best-effort: delivery failure never fails the booking.
type ConfirmationSender interface {
	SendAppointmentConfirmation(ctx context.Context, detail *AppointmentDetail) error
}

// AppointmentRequest is the booking half of a create-appointment call.
type AppointmentRequest struct {
	PractitionerID  uuid.UUID
	Date            time.Time
	Start           TimeOfDay
	Reason          string
	InitialSymptoms string
}

// BookingResult is the outcome of a successful booking.
type BookingResult struct {
	Appointment    *Appointment
	PatientCreated bool
	Message        string
}

// ReconcileStats reports how many past appointments each terminal state was
// assigned to.
type ReconcileStats struct {
	Total     int
	Completed int
	Expired   int
	Cancelled int
}

// Options carries booking policy and optional collaborators.
type Options struct {
	Location     *time.Location
	CancelCutoff time.Duration
	Weights      config.ReconcileWeights

	Now     func() time.Time // test hook, defaults to time.Now
	RandInt func(n int) int  // test hook, defaults to math/rand

	Metrics  Metrics
	Notifier ConfirmationSender
	Logger   *logging.Logger
}

// Service owns the booking transaction and appointment lifecycle.
type Service struct {
	repo      Repository
	locker    redisclient.Locker
	directory *Directory
	resolver  *Resolver

	loc          *time.Location
	cancelCutoff time.Duration
	weights      config.ReconcileWeights
	now          func() time.Time
	randInt      func(n int) int

	metrics  Metrics
	notifier ConfirmationSender
	logger   *logging.Logger
}

func NewService(repo Repository, locker redisclient.Locker, directory *Directory, resolver *Resolver, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.CancelCutoff <= 0 {
		opts.CancelCutoff = 2 * time.Hour
	}
	if opts.Weights.Total() <= 0 {
		opts.Weights = config.ReconcileWeights{Completed: 70, Expired: 25, Cancelled: 5}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RandInt == nil {
		opts.RandInt = rand.Intn
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}

	return &Service{
		repo:         repo,
		locker:       locker,
		directory:    directory,
		resolver:     resolver,
		loc:          opts.Location,
		cancelCutoff: opts.CancelCutoff,
		weights:      opts.Weights,
		now:          opts.Now,
		randInt:      opts.RandInt,
		metrics:      opts.Metrics,
		notifier:     opts.Notifier,
		logger:       opts.Logger,
	}
}

func slotKey(practitionerID uuid.UUID, date time.Time, start TimeOfDay) string {
	return fmt.Sprintf("%s:%s:%d", practitionerID, CivilDate(date).Format("2006-01-02"), int(start))
}

// officeLabel assigns the room deterministically from the practitioner id.
// Real room assignment does not exist yet.
func officeLabel(practitionerID uuid.UUID) string {
	return fmt.Sprintf("Consultorio %s", practitionerID.String()[:8])
}

// BookAppointment is the single atomic booking operation: availability check,
// patient upsert and appointment insert run inside one transaction guarded by
// the per-slot lock. A concurrent writer that slips past the check fails on
// the storage uniqueness constraint and is reported as slot-unavailable.
func (s *Service) BookAppointment(ctx context.Context, patient PatientInput, req AppointmentRequest) (*BookingResult, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, &ValidationError{Field: "reason", Reason: "required"}
	}

	// Pre-check outside the lock so obviously bad requests fail cheap.
	ok, reason, err := s.resolver.IsSlotAvailable(ctx, req.PractitionerID, req.Date, req.Start)
	if err != nil {
		s.countBooking("error")
		return nil, err
	}
	if !ok {
		s.countBooking("unavailable")
		return nil, &SlotUnavailableError{Reason: reason}
	}

	var result *BookingResult

	err = s.locker.WithSlotLock(ctx, slotKey(req.PractitionerID, req.Date, req.Start), func(lockCtx context.Context) error {
		return s.repo.WithTx(lockCtx, func(txRepo Repository) error {
			today := CivilDate(s.now().In(s.loc))

			practitioner, ok, reason, err := checkSlot(lockCtx, txRepo, req.PractitionerID, req.Date, req.Start, today)
			if err != nil {
				return err
			}
			if !ok {
				return &SlotUnavailableError{Reason: reason}
			}

			created, wasCreated, err := NewDirectory(txRepo).UpsertPatient(lockCtx, patient)
			if err != nil {
				return err
			}

			appt, err := txRepo.InsertAppointment(lockCtx, &Appointment{
				PractitionerID:  practitioner.ID,
				PatientID:       created.ID,
				Date:            CivilDate(req.Date),
				Start:           req.Start,
				DurationMinutes: practitioner.SlotMinutes,
				Reason:          req.Reason,
				InitialSymptoms: req.InitialSymptoms,
				Office:          officeLabel(practitioner.ID),
				Status:          StatusScheduled,
			})
			if err != nil {
				return err
			}

			message := "cita creada exitosamente"
			if wasCreated {
				message += " (nuevo paciente registrado)"
			} else {
				message += " (paciente existente)"
			}

			result = &BookingResult{
				Appointment:    appt,
				PatientCreated: wasCreated,
				Message:        message,
			}
			return nil
		})
	})

	if err != nil {
		switch {
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			s.countBooking("contended")
			return nil, ErrSlotBeingBooked
		case errors.Is(err, ErrSlotConflict):
			// Concurrent writer won the slot between check and insert.
			s.countBooking("conflict")
			return nil, &SlotUnavailableError{Reason: ReasonSlotAlreadyTaken}
		default:
			var unavailable *SlotUnavailableError
			if errors.As(err, &unavailable) {
				s.countBooking("unavailable")
				return nil, err
			}
			var invalid *ValidationError
			if errors.As(err, &invalid) {
				s.countBooking("invalid")
				return nil, err
			}
			s.countBooking("error")
			return nil, err
		}
	}

	s.countBooking("success")
	s.logger.Info("appointment booked",
		"appointment_id", result.Appointment.ID,
		"practitioner_id", req.PractitionerID,
		"date", CivilDate(req.Date).Format("2006-01-02"),
		"time", req.Start.String(),
		"new_patient", result.PatientCreated,
	)

	s.sendConfirmation(ctx, result.Appointment.ID)

	return result, nil
}

func (s *Service) sendConfirmation(ctx context.Context, appointmentID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	detail, err := s.repo.GetAppointmentDetail(ctx, appointmentID)
	if err != nil {
		s.logger.Error("load appointment for confirmation failed", "error", err, "appointment_id", appointmentID)
		return
	}
	if err := s.notifier.SendAppointmentConfirmation(ctx, detail); err != nil {
		s.logger.Error("confirmation send failed", "error", err, "appointment_id", appointmentID)
	}
}

// CancelAppointment moves a SCHEDULED appointment to CANCELLED. Only allowed
// while the visit is more than the cutoff (default 2h) away, compared in the
// clinic timezone.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.Status != StatusScheduled {
		return nil, &CancellationNotAllowedError{
			Reason: fmt.Sprintf("appointment is %s", strings.ToLower(string(appt.Status))),
		}
	}

	now := s.now().In(s.loc)
	startsAt := appt.StartsAt(s.loc)
	if startsAt.Sub(now) <= s.cancelCutoff {
		return nil, &CancellationNotAllowedError{
			Reason: fmt.Sprintf("appointment starts within %s", s.cancelCutoff),
		}
	}

	cancelled, err := s.repo.MarkCancelled(ctx, id, reason, now)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Status changed underneath us between the load and the update.
			return nil, &CancellationNotAllowedError{Reason: "appointment is no longer scheduled"}
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AppointmentCancelled()
	}
	s.logger.Info("appointment cancelled", "appointment_id", id, "reason", reason)

	return cancelled, nil
}

// pickOutcome draws a terminal state using the configured weights.
func (s *Service) pickOutcome() AppointmentStatus {
	n := s.randInt(s.weights.Total())
	switch {
	case n < s.weights.Completed:
		return StatusCompleted
	case n < s.weights.Completed+s.weights.Expired:
		return StatusExpired
	default:
		return StatusCancelled
	}
}

// ReconcilePastAppointments assigns a weighted-random terminal state to every
// SCHEDULED appointment dated before today. The randomness stands in for an
// unmodeled outcome-recording process; weights come from configuration. With
// dryRun set nothing is written and the stats report the would-be assignment.
func (s *Service) ReconcilePastAppointments(ctx context.Context, dryRun bool) (ReconcileStats, error) {
	today := CivilDate(s.now().In(s.loc))

	past, err := s.repo.ListPastScheduled(ctx, today)
	if err != nil {
		return ReconcileStats{}, fmt.Errorf("list past scheduled: %w", err)
	}

	stats := ReconcileStats{}
	for _, appt := range past {
		outcome := s.pickOutcome()

		if !dryRun {
			if _, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusScheduled, outcome); err != nil {
				if errors.Is(err, ErrAppointmentNotFound) {
					// Lost a race with a concurrent status change; skip.
					continue
				}
				return stats, fmt.Errorf("reconcile appointment %s: %w", appt.ID, err)
			}
		}

		stats.Total++
		switch outcome {
		case StatusCompleted:
			stats.Completed++
		case StatusExpired:
			stats.Expired++
		case StatusCancelled:
			stats.Cancelled++
		}

		if s.metrics != nil && !dryRun {
			s.metrics.Reconciled(outcome, 1)
		}
	}

	s.logger.Info("reconcile run complete",
		"dry_run", dryRun,
		"total", stats.Total,
		"completed", stats.Completed,
		"expired", stats.Expired,
		"cancelled", stats.Cancelled,
	)

	return stats, nil
}

// GetAppointment retrieves a fully hydrated appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// ListUpcoming returns SCHEDULED appointments from today forward, optionally
// filtered by practitioner and patient.
func (s *Service) ListUpcoming(ctx context.Context, f UpcomingFilter) ([]AppointmentDetail, error) {
	if f.From.IsZero() {
		f.From = CivilDate(s.now().In(s.loc))
	}
	appointments, err := s.repo.ListUpcomingAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list upcoming appointments: %w", err)
	}
	return appointments, nil
}

// FindOpenSlots exposes the resolver's forward search.
func (s *Service) FindOpenSlots(ctx context.Context, practitionerID uuid.UUID, fromDate time.Time, want, horizonDays int) ([]OpenSlot, error) {
	return s.resolver.FindOpenSlots(ctx, practitionerID, fromDate, want, horizonDays)
}

// IsSlotAvailable exposes the resolver's point check.
func (s *Service) IsSlotAvailable(ctx context.Context, practitionerID uuid.UUID, date time.Time, start TimeOfDay) (bool, string, error) {
	return s.resolver.IsSlotAvailable(ctx, practitionerID, date, start)
}

func (s *Service) countBooking(result string) {
	if s.metrics != nil {
		s.metrics.BookingAttempt(result)
	}
}
