package ingest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pushbridge/internal/extension"
	"pushbridge/internal/logger"
	"pushbridge/pkg/events"
)

// Sink accepts events on behalf of the extension.
type Sink interface {
	Process(ctx context.Context, e *events.Event) error
}

// StateApplier folds configuration-response events into shared state
// before the extension sees them.
type StateApplier interface {
	Apply(e *events.Event)
}

// Handler turns POSTed JSON into events. It exists so the bridge can be
// exercised without a Kafka topic.
type Handler struct {
	sink   Sink
	states StateApplier
	logger logger.Logger
}

func NewHandler(sink Sink, states StateApplier, log logger.Logger) *Handler {
	return &Handler{
		sink:   sink,
		states: states,
		logger: log,
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.POST("/v1/events", h.PostEvent)
}

type postEventRequest struct {
	Type    string                 `json:"type"`
	Source  string                 `json:"source"`
	Payload map[string]interface{} `json:"payload"`
}

func (h *Handler) PostEvent(c *gin.Context) {
	var req postEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "invalid event body",
			"error_code": "VALIDATION_ERROR",
		})
		return
	}

	eventType := req.Type
	if eventType == "" {
		eventType = events.TypeRequestContent
	}

	event := events.NewBuilder(eventType).
		WithID(uuid.NewString()).
		WithSource(req.Source).
		WithTimestamp(time.Now()).
		WithPayload(req.Payload).
		Build()

	h.states.Apply(event)

	if err := h.sink.Process(c.Request.Context(), event); err != nil {
		if errors.Is(err, extension.ErrStatePending) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":      "configuration not available yet",
				"error_code": "STATE_PENDING",
			})
			return
		}
		h.logger.ErrorwCtx(c.Request.Context(), "Failed to accept event",
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "internal server error",
			"error_code": "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": event.ID})
}
