package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/grantforge/backend/internal/eventbus"
	"github.com/grantforge/backend/internal/model"
	"github.com/grantforge/backend/internal/service"
	"github.com/grantforge/backend/internal/service/statemachine"
	"k8s.io/klog/v2"
)

// eventStreamBuffer bounds the per-client event backlog. A full run emits
// around twenty events, so a slow client only loses frames when it stalls
// outright.
const eventStreamBuffer = 64

// EventsHandler streams run progress to clients over SSE.
type EventsHandler struct {
	runs *service.RunService
	bus  *eventbus.RunEventBus
}

func NewEventsHandler(runs *service.RunService, bus *eventbus.RunEventBus) *EventsHandler {
	return &EventsHandler{runs: runs, bus: bus}
}

// Stream follows one run's progress events until the run reaches a
// terminal state or the client disconnects. Connecting to a finished run
// replays its outcome as a single event.
func (h *EventsHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	runID := c.Param("id")

	run, err := h.runs.Get(ctx, runID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	if statemachine.IsTerminal(statemachine.RunStatus(run.Status)) {
		writeEvent(c, terminalEvent(run))
		return
	}

	events := make(chan eventbus.RunEvent, eventStreamBuffer)
	unsubscribe := eventbus.SubscribeAll(h.bus, func(_ context.Context, event eventbus.RunEvent) error {
		if event.RunID != runID {
			return nil
		}
		select {
		case events <- event:
		default:
			klog.V(6).Infof("event stream backlog full: runID=%s, dropping %s", runID, event.Type)
		}
		return nil
	})
	defer unsubscribe()

	// The run may have finished between the status check and the
	// subscription. Re-read so its closing event is never missed.
	if fresh, err := h.runs.Get(ctx, runID); err == nil && statemachine.IsTerminal(statemachine.RunStatus(fresh.Status)) {
		writeEvent(c, terminalEvent(fresh))
		return
	}

	// Mid-run subscribers get a snapshot before the live events arrive.
	writeEvent(c, eventbus.RunEvent{
		Type:    eventbus.RunEventStatus,
		Message: fmt.Sprintf("run %s", run.Status),
	})

	for {
		select {
		case <-ctx.Done():
			klog.V(6).Infof("event stream client gone: runID=%s", runID)
			return
		case event := <-events:
			writeEvent(c, event)
			if event.Type == eventbus.RunEventComplete || event.Type == eventbus.RunEventError {
				return
			}
		}
	}
}

// writeEvent emits one data-only SSE frame. The event type travels inside
// the JSON payload, which is what stream clients switch on.
func writeEvent(c *gin.Context, event eventbus.RunEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		klog.Errorf("marshal run event failed: %v", err)
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
	c.Writer.Flush()
}

// terminalEvent reconstructs the closing event for a run that finished
// before the client connected.
func terminalEvent(run *model.GenerationRun) eventbus.RunEvent {
	if run.Status == string(statemachine.RunStatusSucceeded) {
		return eventbus.RunEvent{
			Type:           eventbus.RunEventComplete,
			RunID:          run.RunID,
			TotalWords:     run.TotalWords,
			TotalCost:      fmt.Sprintf("$%.2f", run.TotalCost),
			GenerationTime: fmt.Sprintf("%.1fs", run.GenerationSeconds),
			OutputFile:     service.ExportFilename(run),
		}
	}

	message := run.ErrorMsg
	if message == "" {
		message = "generation " + run.Status
	}
	return eventbus.RunEvent{
		Type:    eventbus.RunEventError,
		RunID:   run.RunID,
		Message: message,
	}
}
