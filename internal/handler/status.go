package handler

import (
	"net/http"

	"pricewatch/internal/apierror"
	"pricewatch/internal/repository"
	"pricewatch/internal/worker"

	"github.com/gin-gonic/gin"
)

type StatusHandler struct {
	cycle *worker.Cycle
	repo  repository.ProductRepository
}

func NewStatusHandler(cycle *worker.Cycle, repo repository.ProductRepository) *StatusHandler {
	return &StatusHandler{cycle: cycle, repo: repo}
}

// Get reports the scheduler snapshot plus catalog counts for the dashboard
// header.
func (h *StatusHandler) Get(c *gin.Context) {
	active, err := h.repo.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to read catalog"))
		return
	}
	archived, err := h.repo.ListArchived(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to read catalog"))
		return
	}

	st := h.cycle.Status()
	c.JSON(http.StatusOK, gin.H{
		"running":  st.Running,
		"last_run": st.LastRun,
		"next_run": st.NextRun,
		"products": gin.H{
			"active":   len(active),
			"archived": len(archived),
		},
	})
}
