package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/punchamoorthee/wastebank/internal/catalog"
	"github.com/punchamoorthee/wastebank/internal/domain"
	"github.com/punchamoorthee/wastebank/internal/identity"
	"github.com/punchamoorthee/wastebank/internal/member"
	"github.com/punchamoorthee/wastebank/internal/models"
	"github.com/punchamoorthee/wastebank/internal/service"
	"github.com/punchamoorthee/wastebank/internal/session"
	"github.com/punchamoorthee/wastebank/internal/store"
)

// Metrics
var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wastebank_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wastebank_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "endpoint"})
)

const retryMessage = "The ledger could not be reached. Please try again."

// Deps wires the handler to the application services.
type Deps struct {
	Directory *member.Directory
	Resolver  *member.Resolver
	Admin     *member.Admin
	Catalog   *catalog.Catalog
	Sessions  *session.Manager
	Ledger    store.Store
	Auth      *identity.Authenticator
	Logger    *slog.Logger
}

type Handler struct {
	Deps
}

func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Handler{Deps: d}
}

// Router builds the full HTTP surface.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h.respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(h.timed, h.Auth.Attach)
	apiV1.HandleFunc("/auth/login", h.Login).Methods("POST")

	private := apiV1.NewRoute().Subrouter()
	private.Use(identity.Require)
	private.HandleFunc("/auth/register", h.Register).Methods("POST")

	private.HandleFunc("/members", h.SearchMembers).Methods("GET")
	private.HandleFunc("/members", h.CreateMember).Methods("POST")
	private.HandleFunc("/members/{code}", h.GetMember).Methods("GET")
	private.HandleFunc("/members/{id}", h.UpdateMember).Methods("PUT")
	private.HandleFunc("/members/{id}", h.DeleteMember).Methods("DELETE")

	private.HandleFunc("/waste-types", h.ListWasteTypes).Methods("GET")
	private.HandleFunc("/waste-types", h.CreateWasteType).Methods("POST")
	private.HandleFunc("/waste-types/{id}", h.UpdateWasteType).Methods("PUT")
	private.HandleFunc("/waste-types/{id}", h.DeactivateWasteType).Methods("DELETE")

	private.HandleFunc("/sessions", h.OpenSession).Methods("POST")
	private.HandleFunc("/sessions/{id}", h.GetSession).Methods("GET")
	private.HandleFunc("/sessions/{id}", h.CloseSession).Methods("DELETE")
	private.HandleFunc("/sessions/{id}/member", h.SelectMember).Methods("PUT")
	private.HandleFunc("/sessions/{id}/member", h.ClearMember).Methods("DELETE")
	private.HandleFunc("/sessions/{id}/scan", h.Scan).Methods("POST")
	private.HandleFunc("/sessions/{id}/lines", h.AddLine).Methods("POST")
	private.HandleFunc("/sessions/{id}/lines/{wasteTypeId}", h.RemoveLine).Methods("DELETE")
	private.HandleFunc("/sessions/{id}/deposit", h.Deposit).Methods("POST")
	private.HandleFunc("/sessions/{id}/withdrawal", h.Withdraw).Methods("POST")

	private.HandleFunc("/entries", h.ListEntries).Methods("GET")

	return r
}

func (h *Handler) timed(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := prometheus.NewTimer(httpLatency.WithLabelValues(r.Method, endpoint(r)))
		defer timer.ObserveDuration()
		next.ServeHTTP(w, r)
	})
}

// endpoint labels metrics by route template so ids do not explode cardinality.
func endpoint(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// Helpers
func (h *Handler) respondJSON(w http.ResponseWriter, r *http.Request, code int, payload interface{}) {
	httpReqTotal.WithLabelValues(r.Method, endpoint(r), strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	h.respondJSON(w, r, code, models.ErrorResponse{Error: msg})
}

// respondErr maps an application error onto a status code. Validation problems
// are echoed to the operator; infrastructure failures get a generic retry
// message and the cause is logged.
func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case domain.IsValidation(err):
		h.respondError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrMemberNotFound), errors.Is(err, domain.ErrWasteTypeNotFound):
		h.respondError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		h.respondError(w, r, http.StatusConflict, service.ErrConflict.Error())
	case errors.Is(err, identity.ErrNotOperator), errors.Is(err, identity.ErrBadCredentials):
		h.respondError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, identity.ErrEmailTaken):
		h.respondError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, identity.ErrInvalidEmail), errors.Is(err, identity.ErrPasswordTooWeak):
		h.respondError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable), errors.Is(err, domain.ErrPersistence):
		h.Logger.Error("request failed", "method", r.Method, "endpoint", endpoint(r), "error", err)
		h.respondError(w, r, http.StatusServiceUnavailable, retryMessage)
	default:
		h.Logger.Error("unexpected error", "method", r.Method, "endpoint", endpoint(r), "error", err)
		h.respondError(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}

func decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
