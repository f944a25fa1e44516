package scheduling

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PatientInput is the caller-supplied patient bundle. Email is the identity
// key: re-registration with a known email updates the phone instead of
// creating a duplicate.
type PatientInput struct {
	FirstName         string
	LastName          string
	SecondLastName    string
	BirthDate         time.Time
	Sex               string
	BloodType         string
	Phone             string
	Email             string
	Address           string
	Allergies         string
	ChronicConditions string
}

// NormalizeEmail applies the identity normalisation used everywhere the
// patient email is compared: trim then lowercase.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (in *PatientInput) validate() error {
	email := NormalizeEmail(in.Email)
	if email == "" {
		return &ValidationError{Field: "email", Reason: "required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return &ValidationError{Field: "email", Reason: "malformed address"}
	}
	if strings.TrimSpace(in.FirstName) == "" {
		return &ValidationError{Field: "first_name", Reason: "required"}
	}
	if strings.TrimSpace(in.LastName) == "" {
		return &ValidationError{Field: "last_name", Reason: "required"}
	}
	if strings.TrimSpace(in.Phone) == "" {
		return &ValidationError{Field: "phone", Reason: "required"}
	}
	if in.BirthDate.IsZero() {
		return &ValidationError{Field: "birth_date", Reason: "required"}
	}
	switch in.Sex {
	case "M", "F", "O":
	default:
		return &ValidationError{Field: "sex", Reason: "must be M, F or O"}
	}
	return nil
}

// Directory resolves patient and practitioner identities.
type Directory struct {
	repo Repository
}

func NewDirectory(repo Repository) *Directory {
	return &Directory{repo: repo}
}

// FindPatientByEmail looks a patient up by the normalised email.
func (d *Directory) FindPatientByEmail(ctx context.Context, email string) (*Patient, error) {
	return d.repo.GetPatientByEmail(ctx, NormalizeEmail(email))
}

// UpsertPatient creates a patient keyed by email, or updates the phone of the
// existing record. Idempotent under retry with identical input. Validation
// failures reject before any write. A concurrent insert with the same email
// between the lookup and the insert loses to the unique constraint; the loser
// retries the lookup and reuses the winner's row.
func (d *Directory) UpsertPatient(ctx context.Context, in PatientInput) (*Patient, bool, error) {
	if err := in.validate(); err != nil {
		return nil, false, err
	}

	email := NormalizeEmail(in.Email)

	existing, err := d.repo.GetPatientByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrPatientNotFound) {
		return nil, false, fmt.Errorf("look up patient: %w", err)
	}
	if existing != nil {
		updated, err := d.repo.UpdatePatientPhone(ctx, existing.ID, in.Phone)
		if err != nil {
			return nil, false, fmt.Errorf("update patient phone: %w", err)
		}
		return updated, false, nil
	}

	created, err := d.repo.InsertPatient(ctx, &Patient{
		FirstName:         strings.TrimSpace(in.FirstName),
		LastName:          strings.TrimSpace(in.LastName),
		SecondLastName:    strings.TrimSpace(in.SecondLastName),
		BirthDate:         CivilDate(in.BirthDate),
		Sex:               in.Sex,
		BloodType:         in.BloodType,
		Phone:             in.Phone,
		Email:             email,
		Address:           in.Address,
		Allergies:         in.Allergies,
		ChronicConditions: in.ChronicConditions,
	})
	if errors.Is(err, ErrDuplicatePatient) {
		winner, lookupErr := d.repo.GetPatientByEmail(ctx, email)
		if lookupErr != nil {
			return nil, false, fmt.Errorf("look up patient after duplicate insert: %w", lookupErr)
		}
		updated, updateErr := d.repo.UpdatePatientPhone(ctx, winner.ID, in.Phone)
		if updateErr != nil {
			return nil, false, fmt.Errorf("update patient phone: %w", updateErr)
		}
		return updated, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert patient: %w", err)
	}
	return created, true, nil
}

func (d *Directory) GetPractitioner(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	return d.repo.GetPractitionerByID(ctx, id)
}

func (d *Directory) ListActivePractitioners(ctx context.Context, specialtyContains string) ([]Practitioner, error) {
	return d.repo.ListActivePractitioners(ctx, specialtyContains)
}

// ListWeeklyAvailability returns the recurring availability template for a
// practitioner. The template is authoritative for a practitioner's hours,
// but slot search runs on the fixed grid; see the resolver.
func (d *Directory) ListWeeklyAvailability(ctx context.Context, practitionerID uuid.UUID) ([]WeeklyAvailability, error) {
	if _, err := d.repo.GetPractitionerByID(ctx, practitionerID); err != nil {
		return nil, err
	}
	return d.repo.ListWeeklyAvailability(ctx, practitionerID)
}
