package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tfwellfare/clinic-booking/internal/db"
)

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

	if err := seedWeeklyRules(context.Background(), pool); err != nil {
		log.Fatalf("seed weekly rules: %v", err)
	}
	if err := seedExceptions(context.Background(), pool); err != nil {
		log.Fatalf("seed exceptions: %v", err)
	}
	serviceIDs, err := seedServices(context.Background(), pool)
	if err != nil {
		log.Fatalf("seed services: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, serviceIDs, 40); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

// seedWeeklyRules opens Monday through Friday with a morning and an
// afternoon block, and Saturday mornings in-person only.
func seedWeeklyRules(ctx context.Context, pool *pgxpool.Pool) error {
	log.Println("seeding weekly rules")

	type block struct {
		day            int
		start, end     string
		virtual, inPer bool
	}

	var blocks []block
	for day := 0; day < 5; day++ {
		blocks = append(blocks,
			block{day, "09:00", "12:00", true, true},
			block{day, "13:00", "17:00", true, true},
		)
	}
	blocks = append(blocks, block{5, "09:00", "12:00", false, true})

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, b := range blocks {
		_, err := tx.Exec(ctx, `
			INSERT INTO weekly_rules (day_of_week, start_time, end_time, is_active, allows_virtual, allows_in_person, created_at, updated_at)
			VALUES ($1, $2::time, $3::time, true, $4, $5, now(), now())
		`, b.day, b.start, b.end, b.virtual, b.inPer)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("weekly rules seeded")
	return nil
}

func seedExceptions(ctx context.Context, pool *pgxpool.Pool) error {
	log.Println("seeding exception dates")

	today := time.Now().UTC().Truncate(24 * time.Hour)
	reasons := []string{"Public holiday", "Staff training", "Clinic maintenance"}

	for i, offset := range []int{10, 25, 45} {
		date := today.AddDate(0, 0, offset)
		_, err := pool.Exec(ctx, `
			INSERT INTO exception_dates (date, exception_type, reason, created_at, updated_at)
			VALUES ($1, 'blocked', $2, now(), now())
			ON CONFLICT (date) DO NOTHING
		`, date, reasons[i])
		if err != nil {
			return err
		}
	}

	log.Println("exception dates seeded")
	return nil
}

func seedServices(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	log.Println("seeding services")

	services := []struct {
		slug, title string
		duration    int
		priceCents  int
	}{
		{"initial-consultation", "Initial Consultation", 60, 15000},
		{"follow-up", "Follow-Up Visit", 30, 9000},
		{"discovery-call", "Discovery Call", 30, 0},
		{"wellness-review", "Wellness Review", 45, 12000},
	}

	ids := make([]uuid.UUID, 0, len(services))
	for _, s := range services {
		id := uuid.New()
		_, err := pool.Exec(ctx, `
			INSERT INTO services (id, slug, title, description, duration_minutes, price_cents, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, true, now(), now())
			ON CONFLICT (slug) DO NOTHING
		`, id, s.slug, s.title, gofakeit.Sentence(12), s.duration, s.priceCents)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	log.Println("services seeded")
	return ids, nil
}

func seedAppointments(ctx context.Context, pool *pgxpool.Pool, serviceIDs []uuid.UUID, count int) error {
	log.Printf("seeding %d appointments", count)

	const refAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	statuses := []string{"pending", "approved", "approved", "completed", "cancelled"}
	modalities := []string{"virtual", "in_person", "phone"}
	times := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "13:00", "13:30", "14:00"}
	today := time.Now().UTC().Truncate(24 * time.Hour)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	seen := make(map[string]bool)
	inserted := 0
	for inserted < count {
		date := today.AddDate(0, 0, gofakeit.Number(2, 50))
		// Skip weekends so seeded bookings land inside clinic hours.
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		slotTime := times[gofakeit.Number(0, len(times)-1)]
		status := statuses[gofakeit.Number(0, len(statuses)-1)]

		// Keep at most one occupying appointment per slot.
		slotKey := date.Format("2006-01-02") + slotTime
		if (status == "pending" || status == "approved") && seen[slotKey] {
			continue
		}
		if status == "pending" || status == "approved" {
			seen[slotKey] = true
		}

		ref := make([]byte, 8)
		for i := range ref {
			ref[i] = refAlphabet[gofakeit.Number(0, len(refAlphabet)-1)]
		}

		details, _ := json.Marshal(map[string]string{
			"name":  gofakeit.Name(),
			"email": gofakeit.Email(),
			"phone": gofakeit.Phone(),
		})

		var serviceID *uuid.UUID
		if gofakeit.Bool() && len(serviceIDs) > 0 {
			serviceID = &serviceIDs[gofakeit.Number(0, len(serviceIDs)-1)]
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO appointments
				(id, reference_id, status, service_id, scheduled_date, scheduled_time,
				 duration_minutes, timezone, modality, patient_type, patient_details,
				 reason, notes, meeting_link, confirmation_sent, reminder_sent,
				 created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6::time, 30, 'UTC', $7, 'new', $8, $9, '', '', false, false, now(), now())
		`, uuid.New(), "TFW-"+string(ref), status, serviceID, date, slotTime,
			modalities[gofakeit.Number(0, len(modalities)-1)], details, gofakeit.Sentence(8))
		if err != nil {
			return err
		}
		inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("appointments seeded")
	return nil
}
