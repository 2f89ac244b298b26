package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/devghori1264/aerophoenix/vmfacade/internal/factory"
	"github.com/devghori1264/aerophoenix/vmfacade/internal/models"
	"github.com/devghori1264/aerophoenix/vmfacade/internal/server"
	"github.com/devghori1264/aerophoenix/vmfacade/internal/storage"
)

// Service is the subset of *server.Server the HTTP layer calls.
type Service interface {
	Provision(ctx context.Context, req models.CreateRequest) (*models.VM, error)
	Get(ctx context.Context, id string) (*models.VM, error)
	List(ctx context.Context) ([]*models.VM, error)
	Update(ctx context.Context, id string, changes models.UpdateRequest) (*models.VM, error)
	Action(ctx context.Context, id string, req models.ActionRequest) (*models.VM, error)
}

type Handler struct {
	srv    Service
	logger *zap.Logger
}

// ProviderInfo describes one provider's parameter vocabulary.
type ProviderInfo struct {
	Provider     models.Provider `json:"provider"`
	RequiredKeys []string        `json:"required_keys"`
	UpdateKeys   []string        `json:"update_keys"`
}

func NewHTTPHandler(srv Service, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{srv: srv, logger: logger}

	r := mux.NewRouter()
	r.Use(h.logRequests)
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/providers", h.handleProviders).Methods(http.MethodGet)

	vm := r.PathPrefix("/vm").Subrouter()
	vm.HandleFunc("", h.handleCreate).Methods(http.MethodPost)
	vm.HandleFunc("", h.handleList).Methods(http.MethodGet)
	vm.HandleFunc("/{id}", h.handleGet).Methods(http.MethodGet)
	vm.HandleFunc("/{id}", h.handleUpdate).Methods(http.MethodPut)
	vm.HandleFunc("/{id}/action", h.handleAction).Methods(http.MethodPost)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleProviders(w http.ResponseWriter, _ *http.Request) {
	out := make([]ProviderInfo, 0, len(factory.Providers()))
	for _, p := range factory.Providers() {
		f, err := factory.Get(p)
		if err != nil {
			h.writeError(w, err)
			return
		}
		out = append(out, ProviderInfo{Provider: p, RequiredKeys: f.RequiredKeys(), UpdateKeys: f.UpdateKeys()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRequest
	if !h.decode(w, r, &req) {
		return
	}
	vm, err := h.srv.Provision(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.VMResponse{Success: true, VM: vm})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	vms, err := h.srv.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.VMListResponse{Items: vms})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	vm, err := h.srv.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.VMResponse{Success: true, VM: vm})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var changes models.UpdateRequest
	if !h.decode(w, r, &changes) {
		return
	}
	vm, err := h.srv.Update(r.Context(), mux.Vars(r)["id"], changes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.VMResponse{Success: true, VM: vm})
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	var req models.ActionRequest
	if !h.decode(w, r, &req) {
		return
	}
	vm, err := h.srv.Action(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.VMResponse{Success: true, VM: vm})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		msg := "invalid JSON payload"
		if errors.Is(err, models.ErrUnsupportedValue) {
			msg = err.Error()
		}
		h.writeFailure(w, http.StatusBadRequest, msg)
		return false
	}
	return true
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case server.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	h.writeFailure(w, status, msg)
}

func (h *Handler) writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.VMResponse{Success: false, Error: msg})
	h.logger.Debug("request rejected", zap.Int("status", status), zap.String("error", msg))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
