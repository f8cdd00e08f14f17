package nnpcore

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// sessionView is the JSON shape of a Session on the diagnostic endpoint;
// it deliberately omits grant refs (not useful to a human operator and
// not something to advertise on an admin-gated endpoint).
type sessionView struct {
	FrontendDomainID int    `json:"frontend_domain_id"`
	Model            string `json:"model"`
	TotalPages       int    `json:"total_pages"`
	DirPages         int    `json:"dir_pages"`
	State            string `json:"state"`
}

// AdminKeyValidator reports whether a presented key string is a known,
// unexpired admin key. nnpcore/db's *DB implements this; nnpcore never
// imports nnpcore/db, keeping the dependency pointing the other way.
type AdminKeyValidator interface {
	ValidateAdminKey(keyStr string) (bool, error)
}

// AuditReader surfaces a session's recorded lifecycle history for the
// diagnostics endpoint and cmd/nnpstatus. nnpcore/db's *DB implements it
// via ListAuditRecords.
type AuditReader interface {
	ListAuditRecords(feID int) ([]AuditRecord, error)
}

// AuditRecord mirrors nnpcore/db.AuditRecord's JSON-relevant fields, so the
// diagnostics handler can render one without importing nnpcore/db.
type AuditRecord struct {
	FrontendDomainID int    `json:"frontend_domain_id"`
	Model            string `json:"model"`
	TotalPages       int    `json:"total_pages"`
	Event            string `json:"event"`
	OccurredAt       string `json:"occurred_at"`
}

func requireAdminKey(validator AdminKeyValidator, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if validator == nil {
			next(w, r)
			return
		}

		key := bearerToken(r)
		if key == "" {
			http.Error(w, "missing admin key", http.StatusUnauthorized)
			return
		}
		ok, err := validator.ValidateAdminKey(key)
		if err != nil || !ok {
			http.Error(w, "invalid admin key", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}

// NewDiagnosticsHandler builds the router for a backend's diagnostics
// endpoint: /healthz (always open, for liveness probes), /metrics,
// /sessions (JSON listing of open sessions), and /sessions/{id}/audit
// (that frontend's recorded lifecycle history). When validator is
// non-nil, /metrics and the /sessions routes require an
// "Authorization: Bearer <admin key>" header validated against it;
// /healthz never does. audit may be nil, in which case the audit
// subroute answers 404. Per §7's Non-goals the frontend/backend grant
// protocol itself carries no auth — this is purely an operator surface.
func NewDiagnosticsHandler(registry *SessionRegistry, metricsHandler http.Handler, validator AdminKeyValidator, audit AuditReader) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	router.Handle("/metrics", requireAdminKey(validator, metricsHandler.ServeHTTP)).Methods(http.MethodGet)

	router.HandleFunc("/sessions", requireAdminKey(validator, func(w http.ResponseWriter, r *http.Request) {
		sessions := registry.All()
		views := make([]sessionView, len(sessions))
		for i, s := range sessions {
			views[i] = sessionView{
				FrontendDomainID: s.FrontendDomainID,
				Model:            s.Model,
				TotalPages:       s.TotalPages,
				DirPages:         s.DirPages,
				State:            string(s.State),
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(views)
	})).Methods(http.MethodGet)

	router.HandleFunc("/sessions/{id}/audit", requireAdminKey(validator, func(w http.ResponseWriter, r *http.Request) {
		if audit == nil {
			http.Error(w, "audit log not configured", http.StatusNotFound)
			return
		}
		feID, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			http.Error(w, "invalid frontend domain id", http.StatusBadRequest)
			return
		}
		records, err := audit.ListAuditRecords(feID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(records)
	})).Methods(http.MethodGet)

	return router
}
