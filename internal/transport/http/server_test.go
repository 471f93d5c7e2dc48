package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fitsched/internal/domain"
	"fitsched/internal/service/scheduling"
	"fitsched/internal/store"
)

type fakeSchedulingService struct {
	createAppointmentFn       func(ctx context.Context, in scheduling.BookingInput) (domain.Appointment, error)
	getAppointmentFn          func(ctx context.Context, id int64) (domain.Appointment, error)
	listAppointmentsFn        func(ctx context.Context, filter store.AppointmentFilter) ([]domain.Appointment, error)
	listTrainerAppointmentsFn func(ctx context.Context, trainerID int64) ([]domain.Appointment, error)
	availableSlotsFn          func(ctx context.Context, trainerID int64, startsAt, endsAt time.Time) ([]time.Time, error)
	registerUserFn            func(ctx context.Context, in scheduling.IdentityInput) (domain.User, bool, error)
	registerTrainerFn         func(ctx context.Context, in scheduling.IdentityInput) (domain.Trainer, bool, error)
	getUserFn                 func(ctx context.Context, id int64) (domain.User, error)
	getTrainerFn              func(ctx context.Context, id int64) (domain.Trainer, error)
	listUsersFn               func(ctx context.Context) ([]domain.User, error)
	listTrainersFn            func(ctx context.Context) ([]domain.Trainer, error)
}

func (f *fakeSchedulingService) CreateAppointment(ctx context.Context, in scheduling.BookingInput) (domain.Appointment, error) {
	if f.createAppointmentFn == nil {
		panic("CreateAppointment not configured")
	}
	return f.createAppointmentFn(ctx, in)
}

func (f *fakeSchedulingService) GetAppointment(ctx context.Context, id int64) (domain.Appointment, error) {
	if f.getAppointmentFn == nil {
		panic("GetAppointment not configured")
	}
	return f.getAppointmentFn(ctx, id)
}

func (f *fakeSchedulingService) ListAppointments(ctx context.Context, filter store.AppointmentFilter) ([]domain.Appointment, error) {
	if f.listAppointmentsFn == nil {
		panic("ListAppointments not configured")
	}
	return f.listAppointmentsFn(ctx, filter)
}

func (f *fakeSchedulingService) ListTrainerAppointments(ctx context.Context, trainerID int64) ([]domain.Appointment, error) {
	if f.listTrainerAppointmentsFn == nil {
		panic("ListTrainerAppointments not configured")
	}
	return f.listTrainerAppointmentsFn(ctx, trainerID)
}

func (f *fakeSchedulingService) AvailableSlots(ctx context.Context, trainerID int64, startsAt, endsAt time.Time) ([]time.Time, error) {
	if f.availableSlotsFn == nil {
		panic("AvailableSlots not configured")
	}
	return f.availableSlotsFn(ctx, trainerID, startsAt, endsAt)
}

func (f *fakeSchedulingService) RegisterUser(ctx context.Context, in scheduling.IdentityInput) (domain.User, bool, error) {
	if f.registerUserFn == nil {
		panic("RegisterUser not configured")
	}
	return f.registerUserFn(ctx, in)
}

func (f *fakeSchedulingService) RegisterTrainer(ctx context.Context, in scheduling.IdentityInput) (domain.Trainer, bool, error) {
	if f.registerTrainerFn == nil {
		panic("RegisterTrainer not configured")
	}
	return f.registerTrainerFn(ctx, in)
}

func (f *fakeSchedulingService) GetUser(ctx context.Context, id int64) (domain.User, error) {
	if f.getUserFn == nil {
		panic("GetUser not configured")
	}
	return f.getUserFn(ctx, id)
}

func (f *fakeSchedulingService) GetTrainer(ctx context.Context, id int64) (domain.Trainer, error) {
	if f.getTrainerFn == nil {
		panic("GetTrainer not configured")
	}
	return f.getTrainerFn(ctx, id)
}

func (f *fakeSchedulingService) ListUsers(ctx context.Context) ([]domain.User, error) {
	if f.listUsersFn == nil {
		panic("ListUsers not configured")
	}
	return f.listUsersFn(ctx)
}

func (f *fakeSchedulingService) ListTrainers(ctx context.Context) ([]domain.Trainer, error) {
	if f.listTrainersFn == nil {
		panic("ListTrainers not configured")
	}
	return f.listTrainersFn(ctx)
}

func testServer(t *testing.T, svc schedulingService) *SchedulingServer {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}
	return NewSchedulingServer(svc, loc, nil)
}

func TestRegisterUser_StatusReflectsCreation(t *testing.T) {
	var created bool
	srv := testServer(t, &fakeSchedulingService{
		registerUserFn: func(ctx context.Context, in scheduling.IdentityInput) (domain.User, bool, error) {
			return domain.User{ID: 1, Name: in.Name, Email: in.Email}, created, nil
		},
	})

	body := `{"id": 1, "name": "User 1", "email": "user_1@email.com"}`

	created = true
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	var got identityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != 1 || got.Name != "User 1" {
		t.Fatalf("response = %+v", got)
	}

	// Posting the same record again is an idempotent success.
	created = false
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("re-post status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRegisterUser_RejectsBadBodies(t *testing.T) {
	srv := testServer(t, &fakeSchedulingService{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"name": `},
		{"missing email", `{"id": 1, "name": "User 1"}`},
		{"invalid email", `{"id": 1, "name": "User 1", "email": "nope"}`},
		{"negative id", `{"id": -2, "name": "User 1", "email": "user_1@email.com"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(tc.body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestRegisterTrainer_DivergentDuplicateIsConflict(t *testing.T) {
	srv := testServer(t, &fakeSchedulingService{
		registerTrainerFn: func(ctx context.Context, in scheduling.IdentityInput) (domain.Trainer, bool, error) {
			return domain.Trainer{}, false, store.ErrDuplicateID
		},
	})

	rec := httptest.NewRecorder()
	body := `{"id": 1, "name": "Other Name", "email": "trainer_1@email.com"}`
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trainers", strings.NewReader(body)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestCreateAppointment_Created(t *testing.T) {
	var gotInput scheduling.BookingInput
	srv := testServer(t, &fakeSchedulingService{
		createAppointmentFn: func(ctx context.Context, in scheduling.BookingInput) (domain.Appointment, error) {
			gotInput = in
			return domain.Appointment{
				ID:        7,
				StartTime: in.StartTime.UTC(),
				EndTime:   in.EndTime.UTC(),
				UserID:    in.UserID,
				TrainerID: in.TrainerID,
			}, nil
		},
	})

	body := `{
		"start_time": "2019-01-24T09:00:00-08:00",
		"end_time": "2019-01-24T09:30:00-08:00",
		"user_id": 1,
		"trainer_id": 2
	}`
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var got appointmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != 7 {
		t.Fatalf("id = %d, want 7", got.ID)
	}
	wantStart := time.Date(2019, 1, 24, 17, 0, 0, 0, time.UTC)
	if !gotInput.StartTime.Equal(wantStart) {
		t.Fatalf("start = %v, want %v", gotInput.StartTime, wantStart)
	}
}

func TestCreateAppointment_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"conflict", store.ErrConflict, http.StatusConflict},
		{"unknown entity", store.ErrNotFound, http.StatusNotFound},
		{"internal", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := testServer(t, &fakeSchedulingService{
				createAppointmentFn: func(ctx context.Context, in scheduling.BookingInput) (domain.Appointment, error) {
					return domain.Appointment{}, tc.err
				},
			})

			body := `{
				"start_time": "2019-01-24T09:00:00-08:00",
				"end_time": "2019-01-24T09:30:00-08:00",
				"user_id": 1,
				"trainer_id": 2
			}`
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(body)))
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Error == "" {
				t.Fatalf("expected error message in body")
			}
		})
	}
}

func TestGetAppointment(t *testing.T) {
	srv := testServer(t, &fakeSchedulingService{
		getAppointmentFn: func(ctx context.Context, id int64) (domain.Appointment, error) {
			if id != 7 {
				return domain.Appointment{}, store.ErrNotFound
			}
			return domain.Appointment{ID: 7, UserID: 1, TrainerID: 2}, nil
		},
	})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/appointments/7", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/appointments/9999", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/appointments/abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestListTrainerAppointments_EmptyIsJSONArray(t *testing.T) {
	srv := testServer(t, &fakeSchedulingService{
		listTrainerAppointmentsFn: func(ctx context.Context, trainerID int64) ([]domain.Appointment, error) {
			return nil, nil
		},
	})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trainers/2/appointments", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("body = %q, want %q", got, "[]")
	}
}

func TestListUsers(t *testing.T) {
	srv := testServer(t, &fakeSchedulingService{
		listUsersFn: func(ctx context.Context) ([]domain.User, error) {
			return []domain.User{
				{ID: 1, Name: "User 1", Email: "user_1@email.com"},
				{ID: 2, Name: "User 2", Email: "user_2@email.com"},
			}, nil
		},
	})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got []identityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 2 || got[0].ID != 1 || got[1].Email != "user_2@email.com" {
		t.Fatalf("response = %+v", got)
	}
}

func TestListTrainers_EmptyIsJSONArray(t *testing.T) {
	srv := testServer(t, &fakeSchedulingService{
		listTrainersFn: func(ctx context.Context) ([]domain.Trainer, error) {
			return nil, nil
		},
	})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trainers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("body = %q, want %q", got, "[]")
	}
}

func TestListAppointments_FilterFromQuery(t *testing.T) {
	var gotFilter store.AppointmentFilter
	srv := testServer(t, &fakeSchedulingService{
		listAppointmentsFn: func(ctx context.Context, filter store.AppointmentFilter) ([]domain.Appointment, error) {
			gotFilter = filter
			return []domain.Appointment{{ID: 7, UserID: 1, TrainerID: 2}}, nil
		},
	})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/appointments?trainer_id=2&start_time=2019-01-24T00:00:00Z&end_time=2019-01-26T00:00:00Z", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if gotFilter.TrainerID != 2 || gotFilter.UserID != 0 {
		t.Fatalf("filter ids = %+v", gotFilter)
	}
	if want := time.Date(2019, 1, 24, 0, 0, 0, 0, time.UTC); !gotFilter.From.Equal(want) {
		t.Fatalf("from = %v, want %v", gotFilter.From, want)
	}
	if want := time.Date(2019, 1, 26, 0, 0, 0, 0, time.UTC); !gotFilter.Until.Equal(want) {
		t.Fatalf("until = %v, want %v", gotFilter.Until, want)
	}

	var got []appointmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].ID != 7 {
		t.Fatalf("response = %+v", got)
	}
}

func TestListAppointments_RejectsBadFilters(t *testing.T) {
	srv := testServer(t, &fakeSchedulingService{})

	paths := []string{
		"/appointments?user_id=abc",
		"/appointments?trainer_id=0",
		"/appointments?start_time=2019-01-24",
	}
	for _, p := range paths {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want %d", p, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestAvailability(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}

	var gotStartsAt, gotEndsAt time.Time
	slot := time.Date(2019, 1, 24, 8, 0, 0, 0, loc)
	srv := testServer(t, &fakeSchedulingService{
		availableSlotsFn: func(ctx context.Context, trainerID int64, startsAt, endsAt time.Time) ([]time.Time, error) {
			gotStartsAt, gotEndsAt = startsAt, endsAt
			return []time.Time{slot, slot.Add(30 * time.Minute)}, nil
		},
	})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/trainers/2/appointments/available?starts_at=2019-01-24&ends_at=2019-01-25", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp availabilityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	want := []string{"2019-01-24T08:00:00-08:00", "2019-01-24T08:30:00-08:00"}
	if len(resp.Available) != len(want) {
		t.Fatalf("available = %v, want %v", resp.Available, want)
	}
	for i := range want {
		if resp.Available[i] != want[i] {
			t.Fatalf("available[%d] = %q, want %q", i, resp.Available[i], want[i])
		}
	}

	// Date-only parameters are read as midnight in the calendar's zone.
	if want := time.Date(2019, 1, 24, 0, 0, 0, 0, loc); !gotStartsAt.Equal(want) {
		t.Fatalf("starts_at = %v, want %v", gotStartsAt, want)
	}
	if want := time.Date(2019, 1, 25, 0, 0, 0, 0, loc); !gotEndsAt.Equal(want) {
		t.Fatalf("ends_at = %v, want %v", gotEndsAt, want)
	}
}

func TestAvailability_RejectsBadParams(t *testing.T) {
	srv := testServer(t, &fakeSchedulingService{})

	paths := []string{
		"/trainers/2/appointments/available",
		"/trainers/2/appointments/available?starts_at=2019-01-24",
		"/trainers/2/appointments/available?starts_at=Jan-24&ends_at=2019-01-25",
	}
	for _, p := range paths {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want %d", p, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestHealthz(t *testing.T) {
	srv := testServer(t, &fakeSchedulingService{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "OK" {
		t.Fatalf("body = %q, want %q", rec.Body.String(), "OK")
	}
}

func TestWithRequestID(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RequestIDFromContext(r.Context()) == "" {
			t.Fatalf("request id missing from context")
		}
	})

	rec := httptest.NewRecorder()
	WithRequestID(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("response missing %s header", RequestIDHeader)
	}

	// A client-supplied id is kept.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "client-id")
	rec = httptest.NewRecorder()
	WithRequestID(inner).ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "client-id" {
		t.Fatalf("request id = %q, want %q", got, "client-id")
	}
}

func TestWithAccessLog_DefaultsToOK(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	// A handler that neither writes a body nor calls WriteHeader.
	h := WithAccessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var entry struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log entry: %v", err)
	}
	if entry.Status != http.StatusOK {
		t.Fatalf("logged status = %d, want %d", entry.Status, http.StatusOK)
	}
}

func TestChain_AppliesInOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), tag("outer"), tag("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got, want := strings.Join(order, ","), "outer,inner,handler"; got != want {
		t.Fatalf("order = %q, want %q", got, want)
	}
}
