package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medagenda/clinic-scheduling/internal/scheduling"
)

type fakeBooker struct {
	slots       []scheduling.OpenSlot
	slotsErr    error
	bookErr     error
	lastPatient scheduling.PatientInput
	lastReq     scheduling.AppointmentRequest
	slotsFrom   time.Time
	horizonDays int
}

func (f *fakeBooker) BookAppointment(_ context.Context, patient scheduling.PatientInput, req scheduling.AppointmentRequest) (*scheduling.BookingResult, error) {
	f.lastPatient = patient
	f.lastReq = req
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return &scheduling.BookingResult{
		Appointment: &scheduling.Appointment{
			ID:             uuid.New(),
			PractitionerID: req.PractitionerID,
			Date:           scheduling.CivilDate(req.Date),
			Start:          req.Start,
			Reason:         req.Reason,
			Office:         "Consultorio test0001",
			Status:         scheduling.StatusScheduled,
		},
		PatientCreated: true,
		Message:        "cita creada exitosamente (nuevo paciente registrado)",
	}, nil
}

func (f *fakeBooker) FindOpenSlots(_ context.Context, _ uuid.UUID, fromDate time.Time, _ int, horizonDays int) ([]scheduling.OpenSlot, error) {
	f.slotsFrom = fromDate
	f.horizonDays = horizonDays
	return f.slots, f.slotsErr
}

type fakePractitioners struct {
	list []scheduling.Practitioner
}

func (f *fakePractitioners) ListAcceptingPractitioners(context.Context) ([]scheduling.Practitioner, error) {
	return f.list, nil
}

func cardiologist() scheduling.Practitioner {
	return scheduling.Practitioner{
		ID:                 uuid.New(),
		FirstName:          "Laura",
		LastName:           "Mendoza",
		Specialty:          "Cardiología",
		SlotMinutes:        30,
		Active:             true,
		AcceptsNewPatients: true,
	}
}

func validIntake() Intake {
	return Intake{
		FirstName: "Pedro",
		LastNames: "Sánchez López",
		Age:       42,
		Email:     "pedro@example.com",
		Phone:     "555-0200",
		Specialty: "cardiologia",
		Symptoms:  "dolor de pecho al caminar",
	}
}

func newTestBridge(booker *fakeBooker, practitioners ...scheduling.Practitioner) *Bridge {
	return NewBridge(booker, &fakePractitioners{list: practitioners}, BridgeOptions{
		HorizonDays: 10,
		Now:         func() time.Time { return time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC) },
	})
}

func TestBookFromIntakeFoldedSpecialtyMatch(t *testing.T) {
	doctor := cardiologist()
	booker := &fakeBooker{slots: []scheduling.OpenSlot{
		{Date: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), Start: scheduling.NewTimeOfDay(9, 0)},
	}}
	bridge := newTestBridge(booker, doctor)

	result, err := bridge.BookFromIntake(context.Background(), validIntake())
	require.NoError(t, err)

	assert.Equal(t, "Dr(a). Laura Mendoza", result.Practitioner)
	assert.Equal(t, "Cardiología", result.Specialty)
	assert.Equal(t, scheduling.NewTimeOfDay(9, 0), result.Start)
	assert.True(t, result.PatientCreated)

	// Search starts tomorrow over the intake horizon.
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), booker.slotsFrom)
	assert.Equal(t, 10, booker.horizonDays)

	assert.Equal(t, "Consulta por síntomas. Especialidad: Cardiología", booker.lastReq.Reason)
	assert.Equal(t, "dolor de pecho al caminar", booker.lastReq.InitialSymptoms)
}

func TestBookFromIntakePatientMapping(t *testing.T) {
	doctor := cardiologist()
	booker := &fakeBooker{slots: []scheduling.OpenSlot{
		{Date: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), Start: scheduling.NewTimeOfDay(9, 0)},
	}}
	bridge := newTestBridge(booker, doctor)

	_, err := bridge.BookFromIntake(context.Background(), validIntake())
	require.NoError(t, err)

	p := booker.lastPatient
	assert.Equal(t, "Pedro", p.FirstName)
	assert.Equal(t, "Sánchez", p.LastName)
	assert.Equal(t, "López", p.SecondLastName)
	assert.Equal(t, "O", p.Sex)

	// Age 42 approximated as now minus 42*365 days.
	want := scheduling.CivilDate(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -42*365))
	assert.True(t, p.BirthDate.Equal(want), "birth date %s != %s", p.BirthDate, want)
}

func TestBookFromIntakeExactMatchBeatsFolded(t *testing.T) {
	exact := cardiologist()
	lookalike := cardiologist()
	lookalike.Specialty = "cardiologia" // unaccented catalog entry
	booker := &fakeBooker{slots: []scheduling.OpenSlot{
		{Date: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), Start: scheduling.NewTimeOfDay(9, 0)},
	}}
	bridge := newTestBridge(booker, exact, lookalike)

	in := validIntake()
	in.Specialty = "cardiologia"
	result, err := bridge.BookFromIntake(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "cardiologia", result.Specialty)
}

func TestBookFromIntakeNoPractitioner(t *testing.T) {
	bridge := newTestBridge(&fakeBooker{}, cardiologist())

	in := validIntake()
	in.Specialty = "Neurocirugía"
	_, err := bridge.BookFromIntake(context.Background(), in)
	assert.ErrorIs(t, err, ErrNoPractitioner)
}

func TestBookFromIntakeNoSlots(t *testing.T) {
	bridge := newTestBridge(&fakeBooker{slots: nil}, cardiologist())

	_, err := bridge.BookFromIntake(context.Background(), validIntake())
	assert.ErrorIs(t, err, ErrNoOpenSlots)
}

func TestBookFromIntakeValidation(t *testing.T) {
	bridge := newTestBridge(&fakeBooker{}, cardiologist())

	cases := []struct {
		name   string
		mutate func(*Intake)
		field  string
	}{
		{"missing first name", func(in *Intake) { in.FirstName = " " }, "first_name"},
		{"missing last names", func(in *Intake) { in.LastNames = "" }, "last_names"},
		{"age zero", func(in *Intake) { in.Age = 0 }, "age"},
		{"age out of range", func(in *Intake) { in.Age = 121 }, "age"},
		{"missing email", func(in *Intake) { in.Email = "" }, "email"},
		{"missing phone", func(in *Intake) { in.Phone = "" }, "phone"},
		{"missing specialty", func(in *Intake) { in.Specialty = "" }, "specialty"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validIntake()
			tc.mutate(&in)
			_, err := bridge.BookFromIntake(context.Background(), in)
			var invalid *scheduling.ValidationError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tc.field, invalid.Field)
		})
	}
}

func TestBookFromIntakePropagatesBookingError(t *testing.T) {
	booker := &fakeBooker{
		slots: []scheduling.OpenSlot{
			{Date: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), Start: scheduling.NewTimeOfDay(9, 0)},
		},
		bookErr: &scheduling.SlotUnavailableError{Reason: scheduling.ReasonSlotAlreadyTaken},
	}
	bridge := newTestBridge(booker, cardiologist())

	_, err := bridge.BookFromIntake(context.Background(), validIntake())
	var unavailable *scheduling.SlotUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}
