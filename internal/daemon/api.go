// Package daemon runs the long-lived menuvision service: the HTTP API, the
// workflow loop, and the single-instance lock.
package daemon

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"menuvision/internal/config"
	"menuvision/internal/fileutil"
	"menuvision/internal/logging"
	"menuvision/internal/menu"
	"menuvision/internal/queue"
	"menuvision/internal/services"
)

type apiServer struct {
	cfg     *config.Config
	store   *queue.Store
	logger  *slog.Logger
	started time.Time
}

// NewRouter wires the HTTP API. It is exported for tests; the daemon mounts
// it on the configured bind address.
func NewRouter(cfg *config.Config, store *queue.Store, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	api := &apiServer{
		cfg:     cfg,
		store:   store,
		logger:  logger.With(logging.String(logging.FieldComponent, "api")),
		started: time.Now(),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(correlate)
	router.Use(api.authenticate)

	router.Route("/api", func(r chi.Router) {
		r.Post("/jobs", api.handleSubmit)
		r.Get("/jobs", api.handleList)
		r.Get("/jobs/{id}", api.handleGet)
		r.Get("/status", api.handleStatus)
	})
	return router
}

// correlate copies chi's request id into the service context so handler logs
// carry a correlation id.
func correlate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			r = r.WithContext(services.WithRequestID(r.Context(), reqID))
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate enforces bearer-token auth when a token is configured.
func (a *apiServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(a.cfg.Paths.APIToken)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		if header != "Bearer "+token {
			a.writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleSubmit accepts a menu photo upload and enqueues a job for it.
func (a *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.cfg.MaxImageBytes()+(1<<20))

	file, _, err := r.FormFile("image")
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "multipart field 'image' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, a.cfg.MaxImageBytes()+1))
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}
	if int64(len(data)) > a.cfg.MaxImageBytes() {
		a.writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("image exceeds the %d MB limit", a.cfg.Pipeline.MaxImageMB))
		return
	}
	ext, ok := fileutil.DetectImageType(data)
	if !ok {
		a.writeError(w, http.StatusUnsupportedMediaType, "image must be JPEG, PNG, or WebP")
		return
	}

	uploadPath := filepath.Join(a.cfg.Paths.DataDir, "uploads", uuid.NewString()+"."+ext)
	if err := fileutil.WriteFileAtomic(uploadPath, data, 0o644); err != nil {
		a.logger.Error("save upload failed", logging.Error(err))
		a.writeError(w, http.StatusInternalServerError, "save upload")
		return
	}

	job, err := a.store.NewJob(r.Context(), uploadPath)
	if err != nil {
		a.logger.Error("create job failed", logging.Error(err))
		a.writeError(w, http.StatusInternalServerError, "create job")
		return
	}
	logging.WithContext(r.Context(), a.logger).Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.Int("image_bytes", len(data)))
	a.writeJSON(w, http.StatusAccepted, toAPIJob(job))
}

func (a *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := a.store.GetByID(r.Context(), id)
	if err != nil {
		a.logger.Error("load job failed", logging.Error(err))
		a.writeError(w, http.StatusInternalServerError, "load job")
		return
	}
	if job == nil {
		a.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	a.writeJSON(w, http.StatusOK, toAPIJob(job))
}

func (a *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	jobs, err := a.store.List(r.Context())
	if err != nil {
		a.logger.Error("list jobs failed", logging.Error(err))
		a.writeError(w, http.StatusInternalServerError, "list jobs")
		return
	}
	out := make([]apiJob, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, toAPIJob(job))
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

func (a *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := a.store.Summary(r.Context())
	if err != nil {
		a.logger.Error("status summary failed", logging.Error(err))
		a.writeError(w, http.StatusInternalServerError, "status summary")
		return
	}
	a.writeJSON(w, http.StatusOK, apiStatus{
		UptimeSeconds: int64(time.Since(a.started).Seconds()),
		Jobs: apiJobCounts{
			Total:      summary.Total,
			Pending:    summary.Pending,
			Processing: summary.Processing,
			Completed:  summary.Completed,
			Partial:    summary.Partial,
			Failed:     summary.Failed,
		},
	})
}

func (a *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Warn("encode response failed", logging.Error(err))
	}
}

func (a *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, map[string]string{"error": message})
}

type apiJob struct {
	ID              string      `json:"id"`
	Status          string      `json:"status"`
	SourceLanguage  *string     `json:"source_language"`
	Dishes          []menu.Dish `json:"dishes"`
	ErrorMessage    string      `json:"error_message,omitempty"`
	ProgressStage   string      `json:"progress_stage,omitempty"`
	ProgressMessage string      `json:"progress_message,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func toAPIJob(job *queue.Job) apiJob {
	dishes := job.Dishes
	if dishes == nil {
		dishes = []menu.Dish{}
	}
	return apiJob{
		ID:              job.ID,
		Status:          string(job.Status),
		SourceLanguage:  job.SourceLanguage,
		Dishes:          dishes,
		ErrorMessage:    job.ErrorMessage,
		ProgressStage:   job.ProgressStage,
		ProgressMessage: job.ProgressMessage,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}
}

type apiStatus struct {
	UptimeSeconds int64        `json:"uptime_seconds"`
	Jobs          apiJobCounts `json:"jobs"`
}

type apiJobCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Partial    int `json:"partial"`
	Failed     int `json:"failed"`
}
