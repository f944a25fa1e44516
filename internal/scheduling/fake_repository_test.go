package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeRepo is an in-memory Repository. Inserts enforce the same slot
// uniqueness the storage constraint provides, under one mutex, so concurrent
// booking tests exercise the real winner-takes-the-slot behavior.
type fakeRepo struct {
	mu            sync.Mutex
	patients      map[uuid.UUID]*Patient
	practitioners map[uuid.UUID]*Practitioner
	availability  map[uuid.UUID][]WeeklyAvailability
	appointments  map[uuid.UUID]*Appointment

	// hasScheduledFn overrides collision checks when set.
	hasScheduledFn func(practitionerID uuid.UUID, date time.Time, start TimeOfDay) bool
	// examinedDates records the distinct dates collision checks touched.
	examinedDates map[string]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		patients:      make(map[uuid.UUID]*Patient),
		practitioners: make(map[uuid.UUID]*Practitioner),
		availability:  make(map[uuid.UUID][]WeeklyAvailability),
		appointments:  make(map[uuid.UUID]*Appointment),
		examinedDates: make(map[string]bool),
	}
}

func (f *fakeRepo) addPractitioner(p *Practitioner) *Practitioner {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.SlotMinutes == 0 {
		p.SlotMinutes = 30
	}
	f.practitioners[p.ID] = p
	return p
}

func (f *fakeRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) GetPatientByEmail(_ context.Context, email string) (*Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.patients {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (f *fakeRepo) InsertPatient(_ context.Context, p *Patient) (*Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.patients {
		if existing.Email == p.Email {
			return nil, ErrDuplicatePatient
		}
	}
	cp := *p
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	cp.Active = true
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	f.patients[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeRepo) UpdatePatientPhone(_ context.Context, id uuid.UUID, phone string) (*Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	p.Phone = phone
	p.UpdatedAt = time.Now()
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) GetPractitionerByID(_ context.Context, id uuid.UUID) (*Practitioner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.practitioners[id]
	if !ok {
		return nil, ErrPractitionerNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) ListActivePractitioners(_ context.Context, _ string) ([]Practitioner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Practitioner
	for _, p := range f.practitioners {
		if p.Active {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return out, nil
}

func (f *fakeRepo) ListAcceptingPractitioners(_ context.Context) ([]Practitioner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Practitioner
	for _, p := range f.practitioners {
		if p.Active && p.AcceptsNewPatients {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return out, nil
}

func (f *fakeRepo) ListWeeklyAvailability(_ context.Context, practitionerID uuid.UUID) ([]WeeklyAvailability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]WeeklyAvailability(nil), f.availability[practitionerID]...), nil
}

func (f *fakeRepo) HasScheduledAppointment(_ context.Context, practitionerID uuid.UUID, date time.Time, start TimeOfDay) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.examinedDates[CivilDate(date).Format("2006-01-02")] = true
	if f.hasScheduledFn != nil {
		return f.hasScheduledFn(practitionerID, date, start), nil
	}
	for _, a := range f.appointments {
		if a.PractitionerID == practitionerID && a.Date.Equal(CivilDate(date)) && a.Start == start && a.Status == StatusScheduled {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) InsertAppointment(_ context.Context, a *Appointment) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.appointments {
		if existing.PractitionerID == a.PractitionerID &&
			existing.Date.Equal(CivilDate(a.Date)) &&
			existing.Start == a.Start &&
			existing.Status == StatusScheduled {
			return nil, ErrSlotConflict
		}
	}
	cp := *a
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	cp.Date = CivilDate(cp.Date)
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	f.appointments[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	a, err := f.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patient, err := f.GetPatientByID(ctx, a.PatientID)
	if err != nil {
		return nil, err
	}
	practitioner, err := f.GetPractitionerByID(ctx, a.PractitionerID)
	if err != nil {
		return nil, err
	}
	return &AppointmentDetail{Appointment: *a, Patient: patient, Practitioner: practitioner}, nil
}

func (f *fakeRepo) ListUpcomingAppointments(ctx context.Context, filter UpcomingFilter) ([]AppointmentDetail, error) {
	f.mu.Lock()
	var ids []uuid.UUID
	for id, a := range f.appointments {
		if a.Status != StatusScheduled || a.Date.Before(CivilDate(filter.From)) {
			continue
		}
		if filter.PractitionerID != uuid.Nil && a.PractitionerID != filter.PractitionerID {
			continue
		}
		if filter.PatientID != uuid.Nil && a.PatientID != filter.PatientID {
			continue
		}
		ids = append(ids, id)
	}
	f.mu.Unlock()

	var out []AppointmentDetail
	for _, id := range ids {
		d, err := f.GetAppointmentDetail(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Start < out[j].Start
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeRepo) ListPastScheduled(_ context.Context, before time.Time) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Appointment
	for _, a := range f.appointments {
		if a.Status == StatusScheduled && a.Date.Before(CivilDate(before)) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (f *fakeRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) MarkCancelled(_ context.Context, id uuid.UUID, reason string, at time.Time) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok || a.Status != StatusScheduled {
		return nil, ErrAppointmentNotFound
	}
	a.Status = StatusCancelled
	a.CancelledAt = &at
	a.CancellationReason = reason
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) WithTx(_ context.Context, fn func(Repository) error) error {
	return fn(f)
}

// passLocker runs every critical section immediately, leaving collision
// handling to the repository's uniqueness enforcement.
type passLocker struct{}

func (passLocker) WithSlotLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
