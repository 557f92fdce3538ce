package main

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/care-scheduling/internal/db"
	"github.com/hackgods/care-scheduling/internal/logging"
	"github.com/hackgods/care-scheduling/internal/slot"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

type seedConfig struct {
	Doctors   int
	Patients  int
	Days      int
	FirstHour int
	LastHour  int
	Step      time.Duration
	Location  *time.Location
}

func main() {
	_ = godotenv.Load()
	log := logging.New(os.Getenv("LOG_LEVEL"))

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	loc, err := time.LoadLocation(getEnv("CLINIC_TIMEZONE", "UTC"))
	if err != nil {
		log.WithError(err).Fatal("invalid CLINIC_TIMEZONE")
	}

	cfg := seedConfig{
		Doctors:   getInt("SEED_DOCTORS", 20),
		Patients:  getInt("SEED_PATIENTS", 2000),
		Days:      getInt("SEED_DAYS", 5),
		FirstHour: 9,
		LastHour:  17,
		Step:      30 * time.Minute,
		Location:  loc,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.WithError(err).Fatal("connect postgres")
	}
	defer pool.Close()

	faker := gofakeit.New(uint64(time.Now().UnixNano()))
	runCtx := context.Background()

	doctors, err := seedDoctors(runCtx, pool, faker, cfg.Doctors, log)
	if err != nil {
		log.WithError(err).Fatal("seed doctors")
	}
	if err := seedPatients(runCtx, pool, faker, cfg.Patients, log); err != nil {
		log.WithError(err).Fatal("seed patients")
	}
	if err := seedSlots(runCtx, slot.NewPgStore(pool), doctors, cfg, log); err != nil {
		log.WithError(err).Fatal("seed slots")
	}

	log.Info("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, log logrus.FieldLogger) ([]uuid.UUID, error) {
	log.WithField("count", count).Info("seeding doctors")

	ids := make([]uuid.UUID, 0, count)
	err := db.InTx(ctx, pool, func(tx pgx.Tx) error {
		for i := 0; i < count; i++ {
			id := uuid.New()
			name := "Dr. " + faker.LastName()
			spec := specialties[faker.Number(0, len(specialties)-1)]

			_, err := tx.Exec(ctx, `
				INSERT INTO doctors (id, name, specialty, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, spec)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("doctors seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, log logrus.FieldLogger) error {
	log.WithField("count", count).Info("seeding patients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		err := db.InTx(ctx, pool, func(tx pgx.Tx) error {
			for i := offset; i < end; i++ {
				_, err := tx.Exec(ctx, `
					INSERT INTO patients (id, name, email, created_at, updated_at)
					VALUES ($1, $2, $3, now(), now())
				`, uuid.New(), faker.Name(), faker.Email())
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		log.WithFields(logrus.Fields{"seeded": end, "total": count}).Info("patients batch committed")
	}

	return nil
}

// seedSlots publishes cfg.Days days of working hours for each doctor, starting tomorrow.
func seedSlots(ctx context.Context, store slot.Store, doctors []uuid.UUID, cfg seedConfig, log logrus.FieldLogger) error {
	tomorrow := time.Now().In(cfg.Location).AddDate(0, 0, 1)
	instants := workingHours(tomorrow, cfg)

	total := 0
	for _, doctorID := range doctors {
		published, err := store.Publish(ctx, doctorID, instants)
		if err != nil {
			var invalid *slot.InvalidSlotError
			if errors.As(err, &invalid) {
				log.WithError(err).WithField("doctor_id", doctorID).Warn("slots rejected, skipping doctor")
				continue
			}
			return err
		}
		total += len(published)
	}

	log.WithFields(logrus.Fields{"doctors": len(doctors), "slots": total}).Info("slots seeded")
	return nil
}

func workingHours(from time.Time, cfg seedConfig) []time.Time {
	var out []time.Time
	for d := 0; d < cfg.Days; d++ {
		day := from.AddDate(0, 0, d)
		start := time.Date(day.Year(), day.Month(), day.Day(), cfg.FirstHour, 0, 0, 0, cfg.Location)
		end := time.Date(day.Year(), day.Month(), day.Day(), cfg.LastHour, 0, 0, 0, cfg.Location)
		for t := start; t.Before(end); t = t.Add(cfg.Step) {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
