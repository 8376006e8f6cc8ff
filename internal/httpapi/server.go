package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/MrJJimenez/jobscan/internal/models"
	"github.com/MrJJimenez/jobscan/internal/scan"
)

type Searcher interface {
	GetJobs(ctx context.Context, query models.Query) models.Result
}

type Scanner interface {
	Run(ctx context.Context, query models.Query) (scan.Report, error)
}

type Deps struct {
	Searcher Searcher
	Scanner  Scanner
	// DefaultQuery is used by /api/scan when no what parameter is given.
	DefaultQuery string
	Logger       zerolog.Logger
	Clock        func() time.Time
}

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

func methodMux(m map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := m[r.Method]; ok {
			h(w, r)
			return
		}
		WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

// NewHandler wires the API routes and middleware.
func NewHandler(d Deps) http.Handler {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	h := &handlers{deps: d}

	mux := http.NewServeMux()
	mux.HandleFunc("/", h.root)
	mux.HandleFunc("/api/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: h.health,
	}))
	mux.HandleFunc("/api/jobs", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: h.jobs,
	}))
	// GET is kept for cron triggers that cannot send a body or method.
	mux.HandleFunc("/api/scan", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:  h.scan,
		http.MethodPost: h.scan,
	}))

	return Chain(mux, RequestID, Recover(d.Logger), AccessLog(d.Logger))
}

type handlers struct {
	deps     Deps
	scanning atomic.Bool
}

func (h *handlers) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		WriteError(w, r, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"ts": h.deps.Clock().UTC().Format(time.RFC3339),
	})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status": "up",
		"ts":     h.deps.Clock().UTC().Format(time.RFC3339),
	})
}

func (h *handlers) jobs(w http.ResponseWriter, r *http.Request) {
	if h.deps.Searcher == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "unavailable", "search is not configured")
		return
	}
	query, ok := parseQuery(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(query.What) == "" {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "what is required")
		return
	}
	WriteJSON(w, http.StatusOK, h.deps.Searcher.GetJobs(r.Context(), query))
}

func (h *handlers) scan(w http.ResponseWriter, r *http.Request) {
	if h.deps.Scanner == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "unavailable", "scan is not configured")
		return
	}
	if !h.scanning.CompareAndSwap(false, true) {
		WriteError(w, r, http.StatusConflict, "scan_running", "a scan is already running")
		return
	}
	defer h.scanning.Store(false)

	query, ok := parseQuery(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(query.What) == "" {
		query.What = h.deps.DefaultQuery
	}

	report, err := h.deps.Scanner.Run(r.Context(), query)
	if err != nil {
		h.deps.Logger.Error().Err(err).Str("run_id", report.RunID).Msg("scan failed")
		WriteError(w, r, http.StatusInternalServerError, "scan_failed", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

func parseQuery(w http.ResponseWriter, r *http.Request) (models.Query, bool) {
	values := r.URL.Query()
	query := models.Query{
		What:  strings.TrimSpace(values.Get("what")),
		Where: strings.TrimSpace(values.Get("where")),
	}
	for name, dst := range map[string]*int{"page": &query.Page, "results_per_page": &query.ResultsPerPage} {
		raw := strings.TrimSpace(values.Get(name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, "bad_request", name+" must be an integer")
			return query, false
		}
		*dst = n
	}
	return query, true
}
