package handlers

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/nijaru/yt-vision/config"
	"github.com/nijaru/yt-vision/db"
	"github.com/nijaru/yt-vision/metrics"
	"github.com/nijaru/yt-vision/middleware"
	"github.com/nijaru/yt-vision/models"
	"github.com/nijaru/yt-vision/utils"
	"github.com/nijaru/yt-vision/validation"
)

// Runner executes analysis tasks.
type Runner interface {
	NewTask(sourceURL string, interval float64) *models.Task
	Execute(ctx context.Context, task *models.Task) (*models.AnalysisResult, error)
}

// TaskStore persists task records. Create must tolerate the runner creating
// the same task again.
type TaskStore interface {
	Create(ctx context.Context, task *models.Task) error
	Get(ctx context.Context, id string) (*db.Record, error)
}

type Handler struct {
	runner  Runner
	tasks   TaskStore
	limiter *rate.Limiter
	slots   chan struct{}
	timeout time.Duration

	// ctx bounds background tasks; cancelled on Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(runner Runner, tasks TaskStore, cfg config.ServerConfig) *Handler {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		runner:  runner,
		tasks:   tasks,
		limiter: rate.NewLimiter(rate.Every(cfg.RateLimitInterval), cfg.RateLimit),
		slots:   make(chan struct{}, maxConcurrent),
		timeout: cfg.TaskTimeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.LoggingMiddleware)

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Route("/analyze", func(r chi.Router) {
		r.With(middleware.RateLimit(h.limiter)).Post("/", h.Analyze)
		r.Get("/{id}", h.Status)
	})
	return r
}

type analyzeRequest struct {
	URL      string          `json:"url"`
	Interval json.RawMessage `json:"interval"`
}

type analyzeResponse struct {
	TaskID    string       `json:"task_id"`
	State     models.State `json:"state"`
	StatusURL string       `json:"status_url"`
}

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	log := middleware.GetLogger(r.Context())

	url, rawInterval, err := readAnalyzeRequest(r)
	if err != nil {
		utils.HandleError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := validation.ValidateURL(url); err != nil {
		utils.HandleError(w, err.Error(), http.StatusBadRequest)
		return
	}
	interval, err := validation.ParseInterval(rawInterval)
	if err != nil {
		utils.HandleError(w, err.Error(), http.StatusBadRequest)
		return
	}

	select {
	case h.slots <- struct{}{}:
	default:
		utils.HandleError(w, "Too many analyses in progress, try again later", http.StatusServiceUnavailable)
		return
	}

	task := h.runner.NewTask(strings.TrimSpace(url), interval)
	log = log.WithField("task_id", task.ID)

	// The record exists before the status URL is handed out.
	if err := h.tasks.Create(r.Context(), task); err != nil {
		<-h.slots
		log.WithError(err).Error("Failed to record task")
		utils.HandleError(w, "Failed to record task", http.StatusInternalServerError)
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() { <-h.slots }()

		ctx := h.ctx
		if h.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.timeout)
			defer cancel()
		}
		if _, err := h.runner.Execute(ctx, task); err != nil {
			log.WithError(err).Warn("Analysis did not complete")
		}
	}()

	log.Info("Analysis accepted")
	if err := utils.WriteJSON(w, http.StatusAccepted, analyzeResponse{
		TaskID:    task.ID,
		State:     task.State,
		StatusURL: "/analyze/" + task.ID,
	}); err != nil {
		log.WithError(err).Error("Failed to send JSON response")
	}
}

func readAnalyzeRequest(r *http.Request) (string, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return r.FormValue("url"), r.FormValue("interval"), nil
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", "", errors.New("error: invalid JSON body")
	}

	raw := strings.TrimSpace(string(req.Interval))
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	return req.URL, raw, nil
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.tasks.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			utils.HandleError(w, "Task not found", http.StatusNotFound)
			return
		}
		middleware.GetLogger(r.Context()).WithError(err).Error("Failed to load task")
		utils.HandleError(w, "Failed to load task", http.StatusInternalServerError)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, record); err != nil {
		logrus.WithError(err).Error("Failed to send JSON response")
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Shutdown cancels running analyses and waits for them to return.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.cancel()
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every accepted analysis has returned.
func (h *Handler) Wait() {
	h.wg.Wait()
}
