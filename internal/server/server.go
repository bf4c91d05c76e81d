package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/placementhub/apiserver/config"
	"github.com/placementhub/apiserver/internal/db"
	"github.com/placementhub/apiserver/internal/handlers"
	"github.com/placementhub/apiserver/internal/mq"
	"github.com/placementhub/apiserver/internal/scheduler"
	"github.com/placementhub/apiserver/internal/services"
	"github.com/placementhub/apiserver/internal/storage"
	"github.com/placementhub/apiserver/internal/store"
	"github.com/placementhub/apiserver/internal/token"
	"github.com/rs/zerolog"
)

// Server wires the HTTP surface, the persistence layer, and the
// notification dispatcher together.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     mq.Backend
	dispatcher *scheduler.Scheduler
	log        zerolog.Logger

	cancelDispatch context.CancelFunc
}

// New constructs a Server from config. It opens the database, selects
// the object storage and broker backends, and registers all routes.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Server, error) {
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objects, err := newObjectStorage(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	broker, err := newBroker(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	studentRepo := store.NewStudentRepository(dbConn)
	internshipRepo := store.NewInternshipRepository(dbConn)
	applicationRepo := store.NewApplicationRepository(dbConn)
	notificationRepo := store.NewNotificationRepository(dbConn)

	tokens := token.NewService(cfg.JWT.Secret, cfg.JWT.TTL)
	dispatcher := scheduler.New(notificationRepo, broker, cfg.Scheduler.PollInterval, log)

	userService := services.NewUserService(userRepo, tokens)
	studentService := services.NewStudentService(studentRepo)
	internshipService := services.NewInternshipService(internshipRepo)
	applicationService := services.NewApplicationService(
		applicationRepo, internshipRepo, studentRepo, dispatcher, log)
	notificationService := services.NewNotificationService(notificationRepo, dispatcher)

	auth := handlers.RequireAuth(tokens)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", handlers.Healthz)
	router.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, userService, tokens)
		})
		api.Route("/students", func(r chi.Router) {
			handlers.StudentRouter(r, studentService, auth)
		})
		api.Route("/internships", func(r chi.Router) {
			handlers.InternshipRouter(r, internshipService, auth)
		})
		api.Route("/applications", func(r chi.Router) {
			handlers.ApplicationRouter(r, applicationService, auth)
		})
		api.Route("/notifications", func(r chi.Router) {
			handlers.NotificationRouter(r, notificationService, auth)
		})

		handlers.ResumeRouter(api, studentService, objects, auth)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		broker:     broker,
		dispatcher: dispatcher,
		log:        log,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the notification dispatcher and the HTTP server. It
// blocks until the HTTP server stops.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelDispatch = cancel
	go func() {
		if err := s.dispatcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error().Err(err).Msg("notification dispatcher exited")
		}
	}()

	s.log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown: stop accepting requests,
// stop the dispatcher, then release the database and broker.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	if s.cancelDispatch != nil {
		s.cancelDispatch()
	}
	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}

func newObjectStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Storage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(client), nil
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(client), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func newBroker(ctx context.Context, cfg config.MQConfig) (mq.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "rabbitmq":
		return mq.NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		return mq.NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}
