package handler

import (
	"errors"
	"net/http"

	"pricewatch/internal/apierror"
	"pricewatch/internal/dto"
	"pricewatch/internal/importer"
	"pricewatch/internal/worker"

	"github.com/gin-gonic/gin"
)

type OrdersHandler struct {
	cycle *worker.Cycle
}

func NewOrdersHandler(cycle *worker.Cycle) *OrdersHandler {
	return &OrdersHandler{cycle: cycle}
}

// Scan triggers a manual mailbox sweep for order confirmations. Defaults to
// a wider lookback than the scheduled import so a fresh install can pick up
// a month of history.
func (h *OrdersHandler) Scan(c *gin.Context) {
	var req dto.ScanOrdersRequest
	if c.Request.ContentLength > 0 {
		if !bindAndValidate(c, &req) {
			return
		}
	}
	daysBack := importer.DefaultLookbackDays
	if req.DaysBack != nil {
		daysBack = *req.DaysBack
	}

	applied, err := h.cycle.ScanOrdersNow(c.Request.Context(), daysBack)
	if err != nil {
		if errors.Is(err, worker.ErrEmailNotConfigured) {
			c.JSON(http.StatusBadRequest, apierror.New("email credentials not configured"))
			return
		}
		c.JSON(http.StatusBadGateway, apierror.New("order scan failed: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, dto.ScanOrdersResponse{OrdersApplied: applied})
}
