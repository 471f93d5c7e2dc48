package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"fitsched/internal/domain"
	"fitsched/internal/service/scheduling"
	"fitsched/internal/store"
)

type identityRequest struct {
	ID    int64  `json:"id" validate:"gte=0"`
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

type identityResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type appointmentRequest struct {
	ID        int64     `json:"id" validate:"gte=0"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
	UserID    int64     `json:"user_id" validate:"required,gt=0"`
	TrainerID int64     `json:"trainer_id" validate:"required,gt=0"`
}

type appointmentResponse struct {
	ID        int64     `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	UserID    int64     `json:"user_id"`
	TrainerID int64     `json:"trainer_id"`
}

func toAppointmentResponse(a domain.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:        a.ID,
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
		UserID:    a.UserID,
		TrainerID: a.TrainerID,
	}
}

func registrationStatus(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}

func (s *SchedulingServer) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("handler", "RegisterUser"))

	var req identityRequest
	if !s.decode(w, r, &req) {
		return
	}

	user, created, err := s.svc.RegisterUser(r.Context(), scheduling.IdentityInput{
		ID:    req.ID,
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		s.writeError(w, log, err)
		return
	}

	if created {
		log.Info("user registered", slog.Int64("user_id", user.ID))
	}
	writeJSON(w, registrationStatus(created), identityResponse{ID: user.ID, Name: user.Name, Email: user.Email})
}

func (s *SchedulingServer) handleRegisterTrainer(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("handler", "RegisterTrainer"))

	var req identityRequest
	if !s.decode(w, r, &req) {
		return
	}

	trainer, created, err := s.svc.RegisterTrainer(r.Context(), scheduling.IdentityInput{
		ID:    req.ID,
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		s.writeError(w, log, err)
		return
	}

	if created {
		log.Info("trainer registered", slog.Int64("trainer_id", trainer.ID))
	}
	writeJSON(w, registrationStatus(created), identityResponse{ID: trainer.ID, Name: trainer.Name, Email: trainer.Email})
}

func (s *SchedulingServer) handleGetUser(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("handler", "GetUser"))

	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	user, err := s.svc.GetUser(r.Context(), id)
	if err != nil {
		s.writeError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, identityResponse{ID: user.ID, Name: user.Name, Email: user.Email})
}

func (s *SchedulingServer) handleGetTrainer(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("handler", "GetTrainer"))

	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	trainer, err := s.svc.GetTrainer(r.Context(), id)
	if err != nil {
		s.writeError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, identityResponse{ID: trainer.ID, Name: trainer.Name, Email: trainer.Email})
}

func (s *SchedulingServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("handler", "ListUsers"))

	users, err := s.svc.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, log, err)
		return
	}

	out := make([]identityResponse, 0, len(users))
	for _, u := range users {
		out = append(out, identityResponse{ID: u.ID, Name: u.Name, Email: u.Email})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *SchedulingServer) handleListTrainers(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("handler", "ListTrainers"))

	trainers, err := s.svc.ListTrainers(r.Context())
	if err != nil {
		s.writeError(w, log, err)
		return
	}

	out := make([]identityResponse, 0, len(trainers))
	for _, t := range trainers {
		out = append(out, identityResponse{ID: t.ID, Name: t.Name, Email: t.Email})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *SchedulingServer) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("handler", "CreateAppointment"))

	var req appointmentRequest
	if !s.decode(w, r, &req) {
		return
	}

	appt, err := s.svc.CreateAppointment(r.Context(), scheduling.BookingInput{
		ID:        req.ID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		UserID:    req.UserID,
		TrainerID: req.TrainerID,
	})
	if err != nil {
		s.writeError(w, log, err)
		return
	}

	log.Info("appointment booked",
		slog.Int64("appointment_id", appt.ID),
		slog.Int64("trainer_id", appt.TrainerID),
		slog.Time("start_time", appt.StartTime),
	)
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (s *SchedulingServer) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("handler", "GetAppointment"))

	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	appt, err := s.svc.GetAppointment(r.Context(), id)
	if err != nil {
		s.writeError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (s *SchedulingServer) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("handler", "ListAppointments"))

	var filter store.AppointmentFilter
	var ok bool
	if filter.UserID, ok = s.optionalIDParam(w, r, userIDParam); !ok {
		return
	}
	if filter.TrainerID, ok = s.optionalIDParam(w, r, trainerIDParam); !ok {
		return
	}
	if filter.From, ok = s.optionalTimeParam(w, r, startTimeParam); !ok {
		return
	}
	if filter.Until, ok = s.optionalTimeParam(w, r, endTimeParam); !ok {
		return
	}

	appts, err := s.svc.ListAppointments(r.Context(), filter)
	if err != nil {
		s.writeError(w, log, err)
		return
	}

	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *SchedulingServer) handleListTrainerAppointments(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("handler", "ListTrainerAppointments"))

	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	appts, err := s.svc.ListTrainerAppointments(r.Context(), id)
	if err != nil {
		s.writeError(w, log, err)
		return
	}

	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

type availabilityResponse struct {
	Available []string `json:"available"`
}

func (s *SchedulingServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("handler", "Availability"))

	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	startsAt, ok := s.dateParam(w, r, startsAtParam)
	if !ok {
		return
	}
	endsAt, ok := s.dateParam(w, r, endsAtParam)
	if !ok {
		return
	}

	slots, err := s.svc.AvailableSlots(r.Context(), id, startsAt, endsAt)
	if err != nil {
		s.writeError(w, log, err)
		return
	}

	available := make([]string, 0, len(slots))
	for _, slot := range slots {
		available = append(available, slot.Format(time.RFC3339))
	}
	writeJSON(w, http.StatusOK, availabilityResponse{Available: available})
}

// dateParam reads a required date-only query parameter as midnight in the
// calendar's zone.
func (s *SchedulingServer) dateParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: name + " is required"})
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(dateFormat, raw, s.loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: name + " must be a date in the form " + dateFormat})
		return time.Time{}, false
	}
	return t, true
}

// optionalIDParam reads a query parameter as an id, returning zero when the
// parameter is absent.
func (s *SchedulingServer) optionalIDParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

// optionalTimeParam reads a query parameter as an RFC 3339 timestamp,
// returning the zero time when the parameter is absent.
func (s *SchedulingServer) optionalTimeParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: name + " must be an RFC 3339 timestamp"})
		return time.Time{}, false
	}
	return t, true
}
