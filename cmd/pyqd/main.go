package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	api "github.com/mind-engage/mindengage-pyq/internal/api/http"
	"github.com/mind-engage/mindengage-pyq/internal/auth"
	"github.com/mind-engage/mindengage-pyq/internal/config"
	"github.com/mind-engage/mindengage-pyq/internal/db"
	"github.com/mind-engage/mindengage-pyq/internal/event"
	"github.com/mind-engage/mindengage-pyq/internal/exam"
	"github.com/mind-engage/mindengage-pyq/internal/grading"
	"github.com/mind-engage/mindengage-pyq/internal/metrics"
	"github.com/mind-engage/mindengage-pyq/internal/session"
	"github.com/mind-engage/mindengage-pyq/internal/storage"
	syncx "github.com/mind-engage/mindengage-pyq/internal/sync"
)

func main() {
	devToken := flag.String("dev-token", "", "print a bearer token for this subject and exit (offline mode only)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.FromEnv()

	var authSvc *auth.AuthService
	if cfg.AuthHMACSecret != "" {
		authSvc = auth.NewAuthService(cfg.AuthHMACSecret, cfg.AuthIssuer)
	}
	if *devToken != "" {
		if authSvc == nil || cfg.Mode != config.ModeOffline {
			log.Fatal("dev tokens need MODE=offline and AUTH_HMAC_SECRET")
		}
		tok, err := authSvc.IssueJWT(*devToken, 8*time.Hour)
		if err != nil {
			log.Fatalf("issue token: %v", err)
		}
		fmt.Println(tok)
		return
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	ctx, cancel := context.WithTimeout(baseCtx, 10*time.Second)
	defer cancel()
	driver, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		log.Fatal(err)
	}
	dbh, err := db.Open(ctx, driver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()
	events := syncx.NewEventRepo(cfg.SiteID)

	// --- Session recording ---
	var recOpts []session.Option
	if cfg.RabbitMQURI != "" {
		pub, err := event.NewEventPublisher(cfg.RabbitMQURI, cfg.RabbitMQExchange)
		if err != nil {
			log.Printf("rabbitmq unavailable, sessions will not be published: %v", err)
		} else {
			defer pub.Close()
			recOpts = append(recOpts, session.WithNotifier(pub))
		}
	}
	recorder := session.NewRecorder(session.NewSQLStore(dbh, events), recOpts...)

	bs, err := storage.NewFSStore(cfg.BankBasePath)
	if err != nil {
		log.Fatalf("bank store: %v", err)
	}
	grader := grading.NewDefaultGrader(
		grading.WithTolerance(cfg.NumericTolerance),
		grading.WithPartialMulti(cfg.PartialMulti),
	)

	attempts := api.AttemptDeps{
		Store:    exam.NewInMemoryStore(),
		Banks:    bs,
		Recorder: recorder,
		Grader:   grader,
		BaseCtx:  baseCtx,
	}
	go api.SweepAttempts(baseCtx, attempts, cfg.SweepInterval, cfg.AttemptIdleTTL)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Group(func(pr chi.Router) {
		if authSvc != nil {
			pr.Use(auth.JWTMiddleware(authSvc))
		} else {
			log.Printf("AUTH_HMAC_SECRET not set: attempts are anonymous")
		}
		pr.Route("/banks", func(br chi.Router) { api.MountBanks(br, bs) })
		pr.Route("/attempts", func(ar chi.Router) { api.MountAttempts(ar, attempts) })
		pr.Get("/sessions", api.ListSessionsHandler(recorder))
		pr.Get("/events", api.ListEventsHandler(events, dbh))
	})

	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-baseCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, driver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	// in-flight handlers first, then the session writes they queued
	<-drained
	recorder.Flush()
}
