package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"launchpad-backend/internal/services"
)

// PipelineStatus polling state of the token feed
type PipelineStatus interface {
	State() services.TaskState
	LastSuccess() time.Time
	LastError() error
}

// StateReporter anything with a task state
type StateReporter interface {
	State() services.TaskState
}

// HealthHandler liveness plus the state of the background pipelines
type HealthHandler struct {
	feed    PipelineStatus
	price   StateReporter
	clients func() int
	started time.Time
}

func NewHealthHandler(feed PipelineStatus, price StateReporter, clients func() int) *HealthHandler {
	return &HealthHandler{
		feed:    feed,
		price:   price,
		clients: clients,
		started: time.Now(),
	}
}

// HealthCheckHandler always answers 200 while the process serves requests
// GET /health
func (h *HealthHandler) HealthCheckHandler(c *gin.Context) {
	feed := gin.H{"state": h.feed.State()}
	if last := h.feed.LastSuccess(); !last.IsZero() {
		feed["last_success"] = last
	}
	if err := h.feed.LastError(); err != nil {
		feed["last_error"] = err.Error()
	}

	body := gin.H{
		"status":     "ok",
		"service":    "launchpad-backend",
		"uptime":     time.Since(h.started).Round(time.Second).String(),
		"token_feed": feed,
	}
	if h.price != nil {
		body["price_feed"] = gin.H{"state": h.price.State()}
	}
	if h.clients != nil {
		body["websocket_clients"] = h.clients()
	}
	c.JSON(http.StatusOK, body)
}
