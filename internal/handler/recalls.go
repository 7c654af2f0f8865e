package handler

import (
	"context"
	"errors"
	"net/http"

	"pricewatch/internal/apierror"
	"pricewatch/internal/model"
	"pricewatch/internal/repository"
	"pricewatch/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type RecallsHandler struct {
	repo  repository.ProductRepository
	cycle *worker.Cycle
}

func NewRecallsHandler(repo repository.ProductRepository, cycle *worker.Cycle) *RecallsHandler {
	return &RecallsHandler{repo: repo, cycle: cycle}
}

// Scan starts an immediate recall sweep over the whole catalog. The sweep
// paces itself between products and outlives the request, so it runs in
// the background; progress lands in each product's recall state.
func (h *RecallsHandler) Scan(c *gin.Context) {
	go func() {
		matched, err := h.cycle.ScanRecallsNow(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("manual recall scan failed")
			return
		}
		log.Info().Int("matched", matched).Msg("manual recall scan complete")
	}()
	c.JSON(http.StatusAccepted, gin.H{"started": true})
}

// Dismiss toggles a product's recall acknowledgement: a matched recall is
// dismissed, a dismissed one is cleared so the next sweep re-checks it.
func (h *RecallsHandler) Dismiss(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid product id"))
		return
	}
	p, err := h.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New("product not found"))
		return
	}

	switch p.RecallStatus {
	case model.RecallMatched:
		err = p.DismissRecall()
	case model.RecallDismissed:
		err = p.ResetRecall()
	default:
		err = model.ErrRecallNotMatched
	}
	if err != nil {
		if errors.Is(err, model.ErrRecallNotMatched) || errors.Is(err, model.ErrRecallNotDismissed) {
			c.JSON(http.StatusConflict, apierror.New("product has no recall to dismiss"))
			return
		}
		c.JSON(http.StatusInternalServerError, apierror.New(err.Error()))
		return
	}

	if err := h.repo.Update(c.Request.Context(), p); err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to save recall state"))
		return
	}
	c.JSON(http.StatusOK, toProductResponse(p))
}
