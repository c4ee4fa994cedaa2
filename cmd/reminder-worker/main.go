package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/tfwellfare/clinic-booking/internal/appointment"
	"github.com/tfwellfare/clinic-booking/internal/availability"
	"github.com/tfwellfare/clinic-booking/internal/catalog"
	"github.com/tfwellfare/clinic-booking/internal/config"
	"github.com/tfwellfare/clinic-booking/internal/db"
	"github.com/tfwellfare/clinic-booking/internal/notify"
	redisclient "github.com/tfwellfare/clinic-booking/internal/redis"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("reminder-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running reminder worker in env=%s interval=%s lead=%s", cfg.Env, cfg.WorkerInterval, cfg.ReminderLead)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	apptRepo := appointment.NewPgRepository(pgPool)
	availStore := availability.NewPgStore(pgPool)
	catalogStore := catalog.NewPgStore(pgPool)
	engine := availability.NewEngine(availStore, apptRepo, cfg.Booking)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	svc := appointment.NewService(apptRepo, engine, catalogStore, locker, notify.NewLogNotifier(), cfg)

	// Run once at startup
	runOnce(rootCtx, svc)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := svc.SendDueReminders(runCtx); err != nil {
		log.Printf("reminder run error: %v", err)
		return
	}
	log.Printf("reminder run complete in %s", time.Since(start))
}
