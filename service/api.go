package service

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/dkrizic/groupstore/group"
	"github.com/dkrizic/groupstore/persistence"
	"github.com/dkrizic/groupstore/store"
	"github.com/dkrizic/groupstore/telemetry/localmetrics"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
)

// maxBodySize bounds PUT /group bodies.
const maxBodySize = 8 * 1024 * 1024

// API exposes the group store over HTTP.
type API struct {
	store     *store.Store[group.Group]
	done      chan struct{}
	closeOnce sync.Once
}

func NewAPI(s *store.Store[group.Group]) *API {
	return &API{
		store: s,
		done:  make(chan struct{}),
	}
}

// Close ends all open watch connections. http.Server.Shutdown does not track
// hijacked connections, so it has to be called alongside it.
func (a *API) Close() {
	a.closeOnce.Do(func() {
		close(a.done)
	})
}

// Router returns the routes of the API.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", a.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/group", a.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/group", a.handleSet).Methods(http.MethodPut)
	r.HandleFunc("/group/members", a.handleMembers).Methods(http.MethodGet)
	r.HandleFunc("/group/watch", a.handleWatch).Methods(http.MethodGet)
	return r
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !a.store.Initialized() {
		http.Error(w, "store not initialized", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("service/api").Start(r.Context(), "GetGroup")
	defer span.End()

	localmetrics.ReadCounter().Add(ctx, 1)
	writeJSON(w, http.StatusOK, a.store.Get())
}

func (a *API) handleSet(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("service/api").Start(r.Context(), "SetGroup")
	defer span.End()

	var g group.Group
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&g); err != nil {
		slog.WarnContext(ctx, "Invalid group body", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := a.store.Set(ctx, g); err != nil {
		status := statusFor(err)
		slog.ErrorContext(ctx, "Failed to set group", "status", status, "error", err)
		http.Error(w, err.Error(), status)
		return
	}
	slog.InfoContext(ctx, "Group set", "group_id", g.GroupID, "members", len(g.Members))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMembers(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("service/api").Start(r.Context(), "GetMembers")
	defer span.End()

	g := a.store.Get()
	members := g.Members
	if raw := r.URL.Query().Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "active must be a boolean", http.StatusBadRequest)
			return
		}
		members = g.MembersByActive(active)
	}
	if members == nil {
		members = []group.GroupUser{}
	}
	localmetrics.ReadCounter().Add(ctx, 1)
	writeJSON(w, http.StatusOK, members)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, persistence.ErrQuotaExceeded):
		return http.StatusInsufficientStorage
	case errors.Is(err, persistence.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
