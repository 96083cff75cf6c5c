package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sapliy/reminder-engine/internal/lifecycle"
	"github.com/sapliy/reminder-engine/internal/notification"
	"github.com/sapliy/reminder-engine/internal/preferences"
	"github.com/sapliy/reminder-engine/internal/reminder"
	"github.com/sapliy/reminder-engine/pkg/jsonutil"
	"github.com/sapliy/reminder-engine/pkg/observability"
)

// Engine is satisfied by *lifecycle.Controller.
type Engine interface {
	Snapshot() lifecycle.Snapshot
	Resync(ctx context.Context)
	RequestPermission(ctx context.Context) notification.PermissionStatus
	UpdatePreferences(ctx context.Context, patch preferences.Patch) (reminder.Preferences, error)
	PreferencesChanged(ctx context.Context, prefs reminder.Preferences)
}

// PreferenceReader is satisfied by *preferences.Store.
type PreferenceReader interface {
	Load(ctx context.Context) (reminder.Preferences, error)
	Refresh(ctx context.Context) (reminder.Preferences, error)
}

// Scheduler is satisfied by *notification.Dispatcher.
type Scheduler interface {
	Pending(ctx context.Context) ([]reminder.Descriptor, error)
	ScheduleAdHoc(ctx context.Context, title, body string, at time.Time, payload map[string]string) (reminder.Descriptor, error)
}

// ActionPerformer is satisfied by *notification.LocalFacility.
type ActionPerformer interface {
	Perform(ctx context.Context, data notification.ActionData)
}

// DeliveryLog is satisfied by *notification.Repository.
type DeliveryLog interface {
	Recent(ctx context.Context, limit int) ([]*notification.Delivery, error)
	GetByID(ctx context.Context, id string) (*notification.Delivery, error)
}

type Server struct {
	engine     Engine
	prefs      PreferenceReader
	scheduler  Scheduler
	actions    ActionPerformer
	deliveries DeliveryLog
	listeners  *notification.Listeners
	logger     *observability.Logger
	now        func() time.Time
	upgrader   websocket.Upgrader
	checks     map[string]func() bool
}

func NewServer(engine Engine, prefs PreferenceReader, scheduler Scheduler, actions ActionPerformer, deliveries DeliveryLog, listeners *notification.Listeners, logger *observability.Logger) *Server {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Server{
		engine:     engine,
		prefs:      prefs,
		scheduler:  scheduler,
		actions:    actions,
		deliveries: deliveries,
		listeners:  listeners,
		logger:     logger,
		now:        time.Now,
		checks:     make(map[string]func() bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.Health).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/state", s.GetState).Methods("GET")
	api.HandleFunc("/resync", s.Resync).Methods("POST")
	api.HandleFunc("/permission", s.RequestPermission).Methods("POST")
	api.HandleFunc("/preferences", s.GetPreferences).Methods("GET")
	api.HandleFunc("/preferences", s.UpdatePreferences).Methods("PUT")
	api.HandleFunc("/preferences/refresh", s.RefreshPreferences).Methods("POST")
	api.HandleFunc("/pending", s.ListPending).Methods("GET")
	api.HandleFunc("/adhoc", s.ScheduleAdHoc).Methods("POST")
	api.HandleFunc("/compile", s.Compile).Methods("POST")
	api.HandleFunc("/notifications/{id}/actions/{actionId}", s.PerformAction).Methods("POST")
	api.HandleFunc("/deliveries", s.ListDeliveries).Methods("GET")
	api.HandleFunc("/deliveries/{deliveryId}", s.GetDelivery).Methods("GET")
	api.HandleFunc("/events/ws", s.EventsWebSocket).Methods("GET")

	return r
}

// AddHealthCheck reports a dependency on /health. A failing check turns the
// response into a 503.
func (s *Server) AddHealthCheck(name string, check func() bool) {
	s.checks[name] = check
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	resp := map[string]string{
		"status":  "active",
		"service": "reminder-engine",
		"state":   string(snap.State),
	}
	code := http.StatusOK
	for name, check := range s.checks {
		if check() {
			resp[name] = "up"
			continue
		}
		resp[name] = "down"
		resp["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}
	jsonutil.WriteJSON(w, code, resp)
}

func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	jsonutil.WriteJSON(w, http.StatusOK, s.engine.Snapshot())
}

// Resync runs to completion even if the client goes away mid-pass.
func (s *Server) Resync(w http.ResponseWriter, r *http.Request) {
	s.engine.Resync(context.WithoutCancel(r.Context()))
	jsonutil.WriteJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) RequestPermission(w http.ResponseWriter, r *http.Request) {
	status := s.engine.RequestPermission(context.WithoutCancel(r.Context()))
	jsonutil.WriteJSON(w, http.StatusOK, map[string]any{
		"permission": status,
		"state":      s.engine.Snapshot().State,
	})
}

func (s *Server) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.prefs.Load(r.Context())
	if err != nil {
		s.logger.WithContext(r.Context()).Error("Failed to load preferences", "error", err)
		jsonutil.WriteError(w, http.StatusBadGateway, "preferences unavailable")
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, prefs)
}

// RefreshPreferences drops the session cache, refetches the document and
// reconciles against it.
func (s *Server) RefreshPreferences(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	prefs, err := s.prefs.Refresh(ctx)
	if err != nil {
		s.logger.WithContext(ctx).Error("Failed to refresh preferences", "error", err)
		jsonutil.WriteError(w, http.StatusBadGateway, "preferences unavailable")
		return
	}
	s.engine.PreferencesChanged(ctx, prefs)
	jsonutil.WriteJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var patch preferences.Patch
	if err := jsonutil.ReadJSON(w, r, &patch); err != nil {
		jsonutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(patch) == 0 {
		jsonutil.WriteError(w, http.StatusBadRequest, "empty preference update")
		return
	}

	prefs, err := s.engine.UpdatePreferences(context.WithoutCancel(r.Context()), patch)
	if err != nil {
		var apiErr *preferences.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			jsonutil.WriteError(w, apiErr.StatusCode, apiErr.Message)
			return
		}
		jsonutil.WriteError(w, http.StatusBadGateway, "preference update failed")
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, prefs)
}

func (s *Server) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := s.scheduler.Pending(r.Context())
	if errors.Is(err, notification.ErrPermissionNotGranted) {
		jsonutil.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		jsonutil.WriteError(w, http.StatusInternalServerError, "failed to list pending notifications")
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]any{
		"notifications": pending,
		"count":         len(pending),
	})
}

func (s *Server) ScheduleAdHoc(w http.ResponseWriter, r *http.Request) {
	var req notification.AdHocRequest
	if err := jsonutil.ReadJSON(w, r, &req); err != nil {
		jsonutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title == "" {
		jsonutil.WriteError(w, http.StatusBadRequest, "title is required")
		return
	}
	if !req.TriggerAt.After(s.now()) {
		jsonutil.WriteError(w, http.StatusBadRequest, "trigger_at must be in the future")
		return
	}

	desc, err := s.scheduler.ScheduleAdHoc(r.Context(), req.Title, req.Body, req.TriggerAt, req.Payload)
	if errors.Is(err, notification.ErrPermissionNotGranted) {
		jsonutil.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.WithContext(r.Context()).Error("Failed to schedule ad-hoc notification", "error", err)
		jsonutil.WriteError(w, http.StatusInternalServerError, "failed to schedule notification")
		return
	}
	jsonutil.WriteJSON(w, http.StatusCreated, desc)
}

// Compile is a dry run: it reports what a document would schedule without
// touching the facility.
func (s *Server) Compile(w http.ResponseWriter, r *http.Request) {
	var prefs reminder.Preferences
	if err := jsonutil.ReadJSON(w, r, &prefs); err != nil {
		jsonutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	now := s.now()
	if raw := r.URL.Query().Get("now"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			jsonutil.WriteError(w, http.StatusBadRequest, "now must be RFC 3339")
			return
		}
		now = parsed
	}
	jsonutil.WriteJSON(w, http.StatusOK, reminder.Compile(prefs, now))
}

func (s *Server) PerformAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		jsonutil.WriteError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	var payload map[string]string
	if r.ContentLength > 0 {
		if err := jsonutil.ReadJSON(w, r, &payload); err != nil {
			jsonutil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	s.actions.Perform(r.Context(), notification.ActionData{
		NotificationID: id,
		ActionID:       vars["actionId"],
		Payload:        payload,
	})
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	if s.deliveries == nil {
		jsonutil.WriteError(w, http.StatusNotImplemented, "delivery log is not configured")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	deliveries, err := s.deliveries.Recent(r.Context(), limit)
	if err != nil {
		s.logger.WithContext(r.Context()).Error("Failed to read delivery log", "error", err)
		jsonutil.WriteError(w, http.StatusInternalServerError, "failed to read delivery log")
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]any{
		"deliveries": deliveries,
		"limit":      limit,
	})
}

func (s *Server) GetDelivery(w http.ResponseWriter, r *http.Request) {
	if s.deliveries == nil {
		jsonutil.WriteError(w, http.StatusNotImplemented, "delivery log is not configured")
		return
	}
	d, err := s.deliveries.GetByID(r.Context(), mux.Vars(r)["deliveryId"])
	if err != nil {
		s.logger.WithContext(r.Context()).Error("Failed to read delivery", "error", err)
		jsonutil.WriteError(w, http.StatusInternalServerError, "failed to read delivery")
		return
	}
	if d == nil {
		jsonutil.WriteError(w, http.StatusNotFound, "delivery not found")
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, d)
}
