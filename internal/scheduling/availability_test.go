package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedNow is Monday 2026-08-31 10:00 UTC.
func fixedNow() time.Time {
	return time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
}

func newTestResolver(repo *fakeRepo) *Resolver {
	return NewResolver(repo, DefaultGrid(), time.UTC, fixedNow)
}

func TestIsSlotAvailablePastDate(t *testing.T) {
	repo := newFakeRepo()
	practitioner := repo.addPractitioner(&Practitioner{FirstName: "Carlos", LastName: "Ramírez", Active: true})
	resolver := newTestResolver(repo)

	yesterday := CivilDate(fixedNow()).AddDate(0, 0, -1)
	ok, reason, err := resolver.IsSlotAvailable(context.Background(), practitioner.ID, yesterday, NewTimeOfDay(9, 0))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, ReasonDateInPast, reason)
}

func TestIsSlotAvailableTodayIsNotPast(t *testing.T) {
	repo := newFakeRepo()
	practitioner := repo.addPractitioner(&Practitioner{FirstName: "Carlos", LastName: "Ramírez", Active: true})
	resolver := newTestResolver(repo)

	ok, reason, err := resolver.IsSlotAvailable(context.Background(), practitioner.ID, CivilDate(fixedNow()), NewTimeOfDay(16, 0))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ReasonSlotAvailable, reason)
}

func TestIsSlotAvailableUnknownPractitioner(t *testing.T) {
	resolver := newTestResolver(newFakeRepo())

	tomorrow := CivilDate(fixedNow()).AddDate(0, 0, 1)
	ok, reason, err := resolver.IsSlotAvailable(context.Background(), uuid.New(), tomorrow, NewTimeOfDay(9, 0))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, ReasonNoPractitioner, reason)
}

func TestIsSlotAvailableInactivePractitioner(t *testing.T) {
	repo := newFakeRepo()
	practitioner := repo.addPractitioner(&Practitioner{FirstName: "Carlos", LastName: "Ramírez", Active: false})
	resolver := newTestResolver(repo)

	tomorrow := CivilDate(fixedNow()).AddDate(0, 0, 1)
	ok, reason, err := resolver.IsSlotAvailable(context.Background(), practitioner.ID, tomorrow, NewTimeOfDay(9, 0))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, ReasonNoPractitioner, reason)
}

func TestIsSlotAvailableTakenSlot(t *testing.T) {
	repo := newFakeRepo()
	practitioner := repo.addPractitioner(&Practitioner{FirstName: "Carlos", LastName: "Ramírez", Active: true})
	resolver := newTestResolver(repo)
	ctx := context.Background()

	tomorrow := CivilDate(fixedNow()).AddDate(0, 0, 1)
	_, err := repo.InsertAppointment(ctx, &Appointment{
		PractitionerID: practitioner.ID,
		PatientID:      uuid.New(),
		Date:           tomorrow,
		Start:          NewTimeOfDay(9, 0),
		Reason:         "control",
		Status:         StatusScheduled,
	})
	require.NoError(t, err)

	ok, reason, err := resolver.IsSlotAvailable(ctx, practitioner.ID, tomorrow, NewTimeOfDay(9, 0))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, ReasonSlotAlreadyTaken, reason)
}

func TestIsSlotAvailableCancelledFreesSlot(t *testing.T) {
	repo := newFakeRepo()
	practitioner := repo.addPractitioner(&Practitioner{FirstName: "Carlos", LastName: "Ramírez", Active: true})
	resolver := newTestResolver(repo)
	ctx := context.Background()

	tomorrow := CivilDate(fixedNow()).AddDate(0, 0, 1)
	appt, err := repo.InsertAppointment(ctx, &Appointment{
		PractitionerID: practitioner.ID,
		PatientID:      uuid.New(),
		Date:           tomorrow,
		Start:          NewTimeOfDay(9, 0),
		Reason:         "control",
		Status:         StatusScheduled,
	})
	require.NoError(t, err)

	_, err = repo.MarkCancelled(ctx, appt.ID, "paciente canceló", fixedNow())
	require.NoError(t, err)

	ok, reason, err := resolver.IsSlotAvailable(ctx, practitioner.ID, tomorrow, NewTimeOfDay(9, 0))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ReasonSlotAvailable, reason)
}

func TestFindOpenSlotsOrdering(t *testing.T) {
	repo := newFakeRepo()
	practitioner := repo.addPractitioner(&Practitioner{FirstName: "Carlos", LastName: "Ramírez", Active: true})
	resolver := newTestResolver(repo)
	ctx := context.Background()

	tomorrow := CivilDate(fixedNow()).AddDate(0, 0, 1) // Tuesday
	_, err := repo.InsertAppointment(ctx, &Appointment{
		PractitionerID: practitioner.ID,
		PatientID:      uuid.New(),
		Date:           tomorrow,
		Start:          NewTimeOfDay(9, 0),
		Reason:         "control",
		Status:         StatusScheduled,
	})
	require.NoError(t, err)

	slots, err := resolver.FindOpenSlots(ctx, practitioner.ID, tomorrow, 3, 7)
	require.NoError(t, err)
	require.Len(t, slots, 3)

	// 09:00 is taken, so the first open slot is 09:30.
	assert.Equal(t, tomorrow, slots[0].Date)
	assert.Equal(t, NewTimeOfDay(9, 30), slots[0].Start)
	assert.Equal(t, NewTimeOfDay(10, 0), slots[1].Start)
	assert.Equal(t, NewTimeOfDay(10, 30), slots[2].Start)
}

func TestFindOpenSlotsSkipsWeekends(t *testing.T) {
	repo := newFakeRepo()
	practitioner := repo.addPractitioner(&Practitioner{FirstName: "Carlos", LastName: "Ramírez", Active: true})
	resolver := newTestResolver(repo)

	// Saturday 2026-09-05: search starting there must land on Monday.
	saturday := time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)
	slots, err := resolver.FindOpenSlots(context.Background(), practitioner.ID, saturday, 1, 7)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC), slots[0].Date)
	assert.Equal(t, NewTimeOfDay(9, 0), slots[0].Start)
}

func TestFindOpenSlotsHorizonTermination(t *testing.T) {
	repo := newFakeRepo()
	practitioner := repo.addPractitioner(&Practitioner{FirstName: "Carlos", LastName: "Ramírez", Active: true})
	// Every slot is taken: the search must exhaust the horizon and stop.
	repo.hasScheduledFn = func(uuid.UUID, time.Time, TimeOfDay) bool { return true }
	resolver := newTestResolver(repo)

	tomorrow := CivilDate(fixedNow()).AddDate(0, 0, 1)
	slots, err := resolver.FindOpenSlots(context.Background(), practitioner.ID, tomorrow, 5, 7)
	require.NoError(t, err)
	assert.Empty(t, slots, "an exhausted horizon is an empty result, not an error")
	assert.Len(t, repo.examinedDates, 7, "exactly 7 business dates examined")

	for d := range repo.examinedDates {
		parsed, err := time.Parse("2006-01-02", d)
		require.NoError(t, err)
		assert.False(t, IsWeekend(parsed), "weekend date %s must not be examined", d)
	}
}

func TestFindOpenSlotsZeroWant(t *testing.T) {
	repo := newFakeRepo()
	practitioner := repo.addPractitioner(&Practitioner{FirstName: "Carlos", LastName: "Ramírez", Active: true})
	resolver := newTestResolver(repo)

	slots, err := resolver.FindOpenSlots(context.Background(), practitioner.ID, fixedNow(), 0, 7)
	require.NoError(t, err)
	assert.Empty(t, slots)
}
