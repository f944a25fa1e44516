package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medagenda/clinic-scheduling/internal/db"
)

var specialties = []string{
	"Medicina General",
	"Cardiología",
	"Dermatología",
	"Pediatría",
	"Traumatología",
	"Psicología",
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedPractitioners(context.Background(), pool, 24); err != nil {
		log.Fatalf("seed practitioners: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 500); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedPractitioners(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d practitioners", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		specialty := specialties[i%len(specialties)]
		fee := 400 + gofakeit.Number(0, 12)*50

		_, err := tx.Exec(ctx, `
			INSERT INTO practitioners (id, first_name, last_name, second_last_name, specialty,
			                           license_number, years_experience, slot_minutes,
			                           consultation_fee, active, accepts_new_patients,
			                           created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 30, $8, TRUE, TRUE, now(), now())
		`, id, gofakeit.FirstName(), gofakeit.LastName(), gofakeit.LastName(), specialty,
			fmt.Sprintf("CED-%07d", gofakeit.Number(1000000, 9999999)),
			gofakeit.Number(1, 35), fee)
		if err != nil {
			return err
		}

		// Monday to Friday, 09:00-17:00.
		for weekday := 0; weekday < 5; weekday++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO weekly_availability (id, practitioner_id, weekday, start_minutes, end_minutes, active)
				VALUES ($1, $2, $3, $4, $5, TRUE)
			`, uuid.New(), id, weekday, 9*60, 17*60)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("practitioners seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 100
	sexes := []string{"M", "F", "O"}

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			birth := gofakeit.DateRange(
				time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2008, 12, 31, 0, 0, 0, 0, time.UTC),
			)

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, first_name, last_name, second_last_name, birth_date,
				                      sex, phone, email, active, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, now(), now())
			`, uuid.New(), gofakeit.FirstName(), gofakeit.LastName(), gofakeit.LastName(),
				birth, sexes[gofakeit.Number(0, 2)], gofakeit.Phone(),
				fmt.Sprintf("seed-%d-%s", i, gofakeit.Email()))
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}
