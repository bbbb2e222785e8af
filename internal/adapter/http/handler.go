package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cinescribe/cinescribe/internal/adapter/http/validation"
	"github.com/cinescribe/cinescribe/internal/domain"
	"github.com/cinescribe/cinescribe/internal/infrastructure/logger"
	"github.com/cinescribe/cinescribe/internal/port"
)

// JobService is the slice of the scheduler the HTTP layer needs.
type JobService interface {
	Enqueue(job *domain.Job) error
	GetJob(id string) (*domain.Job, error)
	Cancel(id string) error
	QueuePosition(id string) int
}

type Handlers struct {
	jobs        JobService
	archive     port.ScriptArchive
	videosDir   string
	maxUploadMB int
}

func NewHandlers(jobs JobService, archive port.ScriptArchive, videosDir string, maxUploadMB int) *Handlers {
	return &Handlers{
		jobs:        jobs,
		archive:     archive,
		videosDir:   videosDir,
		maxUploadMB: maxUploadMB,
	}
}

type createJobRequest struct {
	URL string `json:"url"`
}

// jobResponse is a job snapshot plus its live queue position. Position
// is 1-based and only present while the job is still queued.
type jobResponse struct {
	*domain.Job
	QueuePosition int `json:"queue_position,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error.Printf("encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

func (h *Handlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// CreateJob accepts either a JSON body naming a video URL or a
// multipart upload with the video file itself.
func (h *Handlers) CreateJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			h.createFromUpload(w, r)
			return
		}
		h.createFromURL(w, r)
	}
}

func (h *Handlers) createFromURL(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	parsed, err := url.Parse(req.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		respondError(w, http.StatusBadRequest, "url must be a valid http(s) URL")
		return
	}

	job := domain.NewJobFromURL(req.URL)
	if err := h.jobs.Enqueue(job); err != nil {
		h.enqueueError(w, job.ID, err)
		return
	}

	respondJSON(w, http.StatusAccepted, h.toResponse(job))
}

func (h *Handlers) createFromUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(h.maxUploadMB) * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing video file")
		return
	}
	defer func() { _ = file.Close() }()

	mime, allowed, err := validation.ValidateMagicBytes(file)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not read upload")
		return
	}
	if !allowed {
		logger.Warn.Printf("upload rejected: disallowed type %s", mime)
		respondError(w, http.StatusUnsupportedMediaType, "file type not supported")
		return
	}

	// Each upload gets its own staging directory so original filenames
	// cannot collide. The file is deleted after extraction and the empty
	// directory is reclaimed by the sweeper.
	stagingDir := filepath.Join(h.videosDir, uuid.New().String())
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		respondError(w, http.StatusInternalServerError, "could not stage upload")
		return
	}
	dst := filepath.Join(stagingDir, validation.SanitizeFilename(header.Filename))

	if err := saveUpload(dst, file); err != nil {
		logger.Error.Printf("save upload %s: %v", logger.SanitizeForLog(header.Filename), err)
		_ = os.RemoveAll(stagingDir)
		respondError(w, http.StatusInternalServerError, "could not save upload")
		return
	}

	job := domain.NewJobFromUpload(dst)
	if err := h.jobs.Enqueue(job); err != nil {
		_ = os.RemoveAll(stagingDir)
		h.enqueueError(w, job.ID, err)
		return
	}

	respondJSON(w, http.StatusAccepted, h.toResponse(job))
}

func saveUpload(dst string, src io.Reader) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func (h *Handlers) enqueueError(w http.ResponseWriter, jobID string, err error) {
	if errors.Is(err, domain.ErrQueueFull) {
		logger.Warn.Printf("job %s rejected: queue full", jobID)
		w.Header().Set("Retry-After", "30")
		respondError(w, http.StatusServiceUnavailable, "queue is full, try again later")
		return
	}
	respondError(w, http.StatusInternalServerError, "could not enqueue job")
}

func (h *Handlers) GetJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := h.jobs.GetJob(chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, http.StatusNotFound, "job not found")
			return
		}
		respondJSON(w, http.StatusOK, h.toResponse(job))
	}
}

func (h *Handlers) CancelJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		switch err := h.jobs.Cancel(id); {
		case err == nil:
		case errors.Is(err, domain.ErrNotFound):
			respondError(w, http.StatusNotFound, "job not found")
			return
		case errors.Is(err, domain.ErrNotCancellable):
			respondError(w, http.StatusConflict, "job already started or finished")
			return
		default:
			respondError(w, http.StatusInternalServerError, "could not cancel job")
			return
		}

		job, err := h.jobs.GetJob(id)
		if err != nil {
			respondError(w, http.StatusNotFound, "job not found")
			return
		}
		respondJSON(w, http.StatusOK, h.toResponse(job))
	}
}

func (h *Handlers) toResponse(job *domain.Job) jobResponse {
	resp := jobResponse{Job: job}
	if job.Status == domain.JobStatusQueued {
		resp.QueuePosition = h.jobs.QueuePosition(job.ID)
	}
	return resp
}

type scriptResponse struct {
	JobID           string  `json:"job_id"`
	Title           string  `json:"title"`
	Platform        string  `json:"platform"`
	DurationSeconds float64 `json:"duration_seconds"`
	Script          string  `json:"script,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

func toScriptResponse(s port.ArchivedScript, includeScript bool) scriptResponse {
	resp := scriptResponse{
		JobID:           s.JobID,
		Title:           s.Title,
		Platform:        s.Platform,
		DurationSeconds: s.DurationSeconds,
		CreatedAt:       s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if includeScript {
		resp.Script = s.Script
	}
	return resp
}

func (h *Handlers) GetScript() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.archive == nil {
			respondError(w, http.StatusNotFound, "script archive disabled")
			return
		}

		script, err := h.archive.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				respondError(w, http.StatusNotFound, "script not found")
				return
			}
			logger.Error.Printf("get script: %v", err)
			respondError(w, http.StatusInternalServerError, "could not load script")
			return
		}

		if r.URL.Query().Get("download") == "1" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Content-Disposition", validation.ContentDisposition(script.Title+".txt", false))
			_, _ = io.WriteString(w, script.Script)
			return
		}

		respondJSON(w, http.StatusOK, toScriptResponse(*script, true))
	}
}

func (h *Handlers) ListScripts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.archive == nil {
			respondError(w, http.StatusNotFound, "script archive disabled")
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		scripts, err := h.archive.List(r.Context(), limit)
		if err != nil {
			logger.Error.Printf("list scripts: %v", err)
			respondError(w, http.StatusInternalServerError, "could not list scripts")
			return
		}

		resp := make([]scriptResponse, 0, len(scripts))
		for _, s := range scripts {
			resp = append(resp, toScriptResponse(s, false))
		}
		respondJSON(w, http.StatusOK, resp)
	}
}
