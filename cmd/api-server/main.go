package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tfwellfare/clinic-booking/internal/api"
	"github.com/tfwellfare/clinic-booking/internal/appointment"
	"github.com/tfwellfare/clinic-booking/internal/availability"
	"github.com/tfwellfare/clinic-booking/internal/catalog"
	"github.com/tfwellfare/clinic-booking/internal/config"
	"github.com/tfwellfare/clinic-booking/internal/db"
	"github.com/tfwellfare/clinic-booking/internal/notify"
	redisclient "github.com/tfwellfare/clinic-booking/internal/redis"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s slot_duration=%dm horizon=[+%dd, +%dd]",
		cfg.Env, cfg.HTTPPort, cfg.Booking.SlotDurationMinutes,
		cfg.Booking.MinAdvanceDays, cfg.Booking.MaxAdvanceDays)

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

	// Connect Redis
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
	notifier := notify.NewLogNotifier()
	svc := appointment.NewService(apptRepo, engine, catalogStore, locker, notifier, cfg)

	router := api.NewRouter(api.RouterConfig{
		Appointments: svc,
		Engine:       engine,
		Availability: availStore,
		Catalog:      catalogStore,
		PgPool:       pgPool,
		Redis:        rdb,
		Env:          cfg.Env,
		Version:      version,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on :%s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()
	log.Println("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
}
