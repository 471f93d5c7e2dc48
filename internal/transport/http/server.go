package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"fitsched/internal/domain"
	"fitsched/internal/service/scheduling"
	"fitsched/internal/store"
)

const (
	idParam        = "id"
	startsAtParam  = "starts_at"
	endsAtParam    = "ends_at"
	userIDParam    = "user_id"
	trainerIDParam = "trainer_id"
	startTimeParam = "start_time"
	endTimeParam   = "end_time"

	dateFormat = "2006-01-02"
)

type schedulingService interface {
	CreateAppointment(ctx context.Context, in scheduling.BookingInput) (domain.Appointment, error)
	GetAppointment(ctx context.Context, id int64) (domain.Appointment, error)
	ListAppointments(ctx context.Context, filter store.AppointmentFilter) ([]domain.Appointment, error)
	ListTrainerAppointments(ctx context.Context, trainerID int64) ([]domain.Appointment, error)
	AvailableSlots(ctx context.Context, trainerID int64, startsAt, endsAt time.Time) ([]time.Time, error)
	RegisterUser(ctx context.Context, in scheduling.IdentityInput) (domain.User, bool, error)
	RegisterTrainer(ctx context.Context, in scheduling.IdentityInput) (domain.Trainer, bool, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetTrainer(ctx context.Context, id int64) (domain.Trainer, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	ListTrainers(ctx context.Context) ([]domain.Trainer, error)
}

// SchedulingServer exposes the booking API over HTTP. Wire timestamps are
// ISO-8601 with offset; date-only parameters are read in the calendar's zone.
type SchedulingServer struct {
	svc      schedulingService
	loc      *time.Location
	log      *slog.Logger
	validate *validator.Validate
	router   *mux.Router
}

func NewSchedulingServer(svc schedulingService, loc *time.Location, log *slog.Logger) *SchedulingServer {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	s := &SchedulingServer{
		svc:      svc,
		loc:      loc,
		log:      log.With(slog.String("component", "http.scheduling")),
		validate: validator.New(),
		router:   mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *SchedulingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *SchedulingServer) routes() {
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	s.router.HandleFunc("/users", s.handleRegisterUser).Methods(http.MethodPost)
	s.router.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	s.router.HandleFunc(fmt.Sprintf("/users/{%s}", idParam), s.handleGetUser).Methods(http.MethodGet)

	s.router.HandleFunc("/trainers", s.handleRegisterTrainer).Methods(http.MethodPost)
	s.router.HandleFunc("/trainers", s.handleListTrainers).Methods(http.MethodGet)
	s.router.HandleFunc(fmt.Sprintf("/trainers/{%s}", idParam), s.handleGetTrainer).Methods(http.MethodGet)
	s.router.HandleFunc(fmt.Sprintf("/trainers/{%s}/appointments", idParam), s.handleListTrainerAppointments).Methods(http.MethodGet)
	s.router.HandleFunc(fmt.Sprintf("/trainers/{%s}/appointments/available", idParam), s.handleAvailability).Methods(http.MethodGet)

	s.router.HandleFunc("/appointments", s.handleCreateAppointment).Methods(http.MethodPost)
	s.router.HandleFunc("/appointments", s.handleListAppointments).Methods(http.MethodGet)
	s.router.HandleFunc(fmt.Sprintf("/appointments/{%s}", idParam), s.handleGetAppointment).Methods(http.MethodGet)
}

func (s *SchedulingServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps service and store errors onto the HTTP surface: validation
// failures are 400, missing entities 404, booking conflicts and divergent
// duplicate ids 409, everything else 500.
func (s *SchedulingServer) writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	var vErr *scheduling.ValidationError
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", slog.Any("err", err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: vErr.Error()})
	case errors.Is(err, store.ErrNotFound):
		log.Info("not found", slog.Any("err", err))
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrConflict):
		log.Info("booking conflict")
		writeJSON(w, http.StatusConflict, errorResponse{Error: "time slot is already booked"})
	case errors.Is(err, store.ErrDuplicateID):
		log.Info("duplicate id")
		writeJSON(w, http.StatusConflict, errorResponse{Error: "id is already registered with different details"})
	default:
		log.Error("request failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *SchedulingServer) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.log.Warn("malformed request body", slog.Any("err", err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		s.log.Warn("invalid request body", slog.Any("err", err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}
	return true
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)[idParam]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
