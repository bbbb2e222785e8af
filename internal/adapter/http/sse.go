package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cinescribe/cinescribe/internal/domain"
	"github.com/cinescribe/cinescribe/internal/service"
)

type SSEHandler struct {
	eventBus *service.EventBus
	jobs     JobService
}

func NewSSEHandler(eventBus *service.EventBus, jobs JobService) *SSEHandler {
	return &SSEHandler{
		eventBus: eventBus,
		jobs:     jobs,
	}
}

// sseWrite writes an SSE event, handling multi-line data correctly.
func sseWrite(w http.ResponseWriter, eventName string, data string) {
	_, _ = fmt.Fprintf(w, "event: %s\n", eventName)
	for _, line := range strings.Split(data, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// sendSnapshot sends the full current job state so a subscriber never
// has to reconstruct it from incremental events.
func sendSnapshot(w http.ResponseWriter, job *domain.Job) {
	data, err := json.Marshal(job)
	if err != nil {
		return
	}
	sseWrite(w, "snapshot", string(data))
}

func sendEvent(w http.ResponseWriter, event service.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	sseWrite(w, event.Type, string(data))
}

// sendKeepAlive writes an SSE comment to keep the connection active.
func sendKeepAlive(w http.ResponseWriter) {
	_, _ = fmt.Fprint(w, ": keep-alive\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// Events streams a job's status and stage transitions. The stream opens
// with a full snapshot and closes once the job reaches a terminal
// status.
func (h *SSEHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		job, err := h.jobs.GetJob(id)
		if err != nil {
			respondError(w, http.StatusNotFound, "job not found")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		sendSnapshot(w, job)
		if job.IsTerminal() {
			return
		}

		// Subscribe before re-checking so a transition between the
		// snapshot and the subscription cannot be missed entirely.
		ch := h.eventBus.Subscribe(id)
		defer h.eventBus.Unsubscribe(id, ch)

		if job, err := h.jobs.GetJob(id); err == nil && job.IsTerminal() {
			sendSnapshot(w, job)
			return
		}

		ctx := r.Context()
		keepAlive := time.NewTicker(15 * time.Second)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				sendKeepAlive(w)
			case event, ok := <-ch:
				if !ok {
					return
				}
				sendEvent(w, event)

				if event.Type == "status" && terminalStatus(event.Status) {
					if job, err := h.jobs.GetJob(id); err == nil {
						sendSnapshot(w, job)
					}
					return
				}
			}
		}
	}
}

func terminalStatus(status domain.JobStatus) bool {
	return status == domain.JobStatusComplete ||
		status == domain.JobStatusError ||
		status == domain.JobStatusCancelled
}
