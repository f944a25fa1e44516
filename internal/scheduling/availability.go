package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Slot availability reasons, surfaced verbatim to callers.
const (
	ReasonSlotAvailable    = "slot available"
	ReasonDateInPast       = "date must be in the future"
	ReasonNoPractitioner   = "practitioner unavailable"
	ReasonSlotAlreadyTaken = "slot already taken"
)

// SlotGrid is the fixed time-of-day grid candidate slots are drawn from.
// The weekly availability template exists in the schema but the reference
// search path does not consult it; the grid is the compatibility baseline.
type SlotGrid struct {
	Start       TimeOfDay
	End         TimeOfDay // exclusive
	StepMinutes int
}

// DefaultGrid is the half-hour 09:00-17:00 clinic day.
func DefaultGrid() SlotGrid {
	return SlotGrid{Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(17, 0), StepMinutes: 30}
}

// NewSlotGrid builds a grid from "HH:MM" bounds, as configured.
func NewSlotGrid(start, end string, stepMinutes int) (SlotGrid, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return SlotGrid{}, fmt.Errorf("grid start: %w", err)
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return SlotGrid{}, fmt.Errorf("grid end: %w", err)
	}
	if stepMinutes <= 0 || e <= s {
		return SlotGrid{}, errors.New("grid must have a positive step and end after start")
	}
	return SlotGrid{Start: s, End: e, StepMinutes: stepMinutes}, nil
}

// Times enumerates the grid in time-of-day order: 09:00, 09:30, ... 16:30.
func (g SlotGrid) Times() []TimeOfDay {
	if g.StepMinutes <= 0 || g.End <= g.Start {
		return nil
	}
	var times []TimeOfDay
	for t := g.Start; t < g.End; t += TimeOfDay(g.StepMinutes) {
		times = append(times, t)
	}
	return times
}

// Resolver decides whether a specific slot is bookable and enumerates open
// candidates over a bounded forward horizon.
type Resolver struct {
	repo Repository
	grid SlotGrid
	loc  *time.Location
	now  func() time.Time
}

func NewResolver(repo Repository, grid SlotGrid, loc *time.Location, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{repo: repo, grid: grid, loc: loc, now: now}
}

func (r *Resolver) today() time.Time {
	return CivilDate(r.now().In(r.loc))
}

// checkSlot runs the baseline availability policy against the given
// repository, so the booking transaction can re-run it inside its own tx.
func checkSlot(ctx context.Context, repo Repository, practitionerID uuid.UUID, date time.Time, start TimeOfDay, today time.Time) (*Practitioner, bool, string, error) {
	if CivilDate(date).Before(today) {
		return nil, false, ReasonDateInPast, nil
	}

	practitioner, err := repo.GetPractitionerByID(ctx, practitionerID)
	if err != nil {
		if errors.Is(err, ErrPractitionerNotFound) {
			return nil, false, ReasonNoPractitioner, nil
		}
		return nil, false, "", fmt.Errorf("load practitioner: %w", err)
	}
	if !practitioner.Active {
		return nil, false, ReasonNoPractitioner, nil
	}

	taken, err := repo.HasScheduledAppointment(ctx, practitionerID, date, start)
	if err != nil {
		return nil, false, "", fmt.Errorf("check scheduled appointment: %w", err)
	}
	if taken {
		return practitioner, false, ReasonSlotAlreadyTaken, nil
	}

	return practitioner, true, ReasonSlotAvailable, nil
}

// IsSlotAvailable reports whether (practitioner, date, time) is bookable and
// why not. Policy order: past date, practitioner active, collision.
func (r *Resolver) IsSlotAvailable(ctx context.Context, practitionerID uuid.UUID, date time.Time, start TimeOfDay) (bool, string, error) {
	_, ok, reason, err := checkSlot(ctx, r.repo, practitionerID, date, start, r.today())
	return ok, reason, err
}

// FindOpenSlots walks forward from fromDate collecting up to want open slots
// in (date, time) order. Weekend dates are closed and do not consume the
// horizon; the scan stops after horizonDays business dates. An empty result
// means no availability inside the horizon and is not an error.
func (r *Resolver) FindOpenSlots(ctx context.Context, practitionerID uuid.UUID, fromDate time.Time, want, horizonDays int) ([]OpenSlot, error) {
	if want <= 0 {
		return nil, nil
	}

	today := r.today()
	times := r.grid.Times()
	var open []OpenSlot

	date := CivilDate(fromDate)
	for examined := 0; examined < horizonDays; date = date.AddDate(0, 0, 1) {
		if IsWeekend(date) {
			continue
		}
		examined++

		for _, t := range times {
			_, ok, _, err := checkSlot(ctx, r.repo, practitionerID, date, t, today)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			open = append(open, OpenSlot{Date: date, Start: t})
			if len(open) >= want {
				return open, nil
			}
		}
	}

	return open, nil
}
