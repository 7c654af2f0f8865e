package handler

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"pricewatch/internal/apierror"
	"pricewatch/internal/dto"
	"pricewatch/internal/model"
	"pricewatch/internal/repository"
	"pricewatch/internal/scraper"
	"pricewatch/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductsHandler struct {
	repo repository.ProductRepository
	pool *worker.CheckPool
}

func NewProductsHandler(repo repository.ProductRepository, pool *worker.CheckPool) *ProductsHandler {
	return &ProductsHandler{repo: repo, pool: pool}
}

// Add accepts a batch of URLs and bare ASINs. Entries that do not parse or
// are already tracked come back as skipped; the rest are created with a
// placeholder title the next scrape replaces.
func (h *ProductsHandler) Add(c *gin.Context) {
	var req dto.AddProductsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp := dto.AddProductsResponse{
		Added:   []dto.ProductResponse{},
		Skipped: []dto.SkippedItem{},
	}
	for _, item := range req.Items {
		input := strings.TrimSpace(item)
		asin := scraper.ExtractASIN(input)
		if asin == "" {
			resp.Skipped = append(resp.Skipped, dto.SkippedItem{Input: input, Reason: "no ASIN found"})
			continue
		}
		if _, err := h.repo.FindByASIN(c.Request.Context(), asin); err == nil {
			resp.Skipped = append(resp.Skipped, dto.SkippedItem{Input: input, Reason: "already tracked"})
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, apierror.New("product lookup failed"))
			return
		}

		p := &model.Product{
			ASIN:        asin,
			Title:       "Loading " + asin,
			URL:         "https://www.amazon.com/dp/" + asin,
			Source:      model.SourceManual,
			TargetPrice: req.TargetPrice,
			Quantity:    1,
		}
		if req.ExpirationDays != nil {
			exp := time.Now().AddDate(0, 0, *req.ExpirationDays)
			p.ExpiresAt = &exp
		}
		if err := h.repo.Create(c.Request.Context(), p); err != nil {
			resp.Skipped = append(resp.Skipped, dto.SkippedItem{Input: input, Reason: "create failed"})
			continue
		}
		resp.Added = append(resp.Added, toProductResponse(p))
	}

	status := http.StatusCreated
	if len(resp.Added) == 0 {
		status = http.StatusBadRequest
	}
	c.JSON(status, resp)
}

func (h *ProductsHandler) List(c *gin.Context) {
	var filter dto.ProductFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	products, err := h.repo.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to list products"))
		return
	}
	sortProducts(products, filter.Sort)
	c.JSON(http.StatusOK, toProductList(products))
}

func (h *ProductsHandler) ListArchived(c *gin.Context) {
	products, err := h.repo.ListArchived(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to list archived products"))
		return
	}
	c.JSON(http.StatusOK, toProductList(products))
}

func (h *ProductsHandler) Get(c *gin.Context) {
	p, ok := h.find(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toProductResponse(p))
}

// Check runs an on-demand price check through the bounded worker pool and
// returns the refreshed product.
func (h *ProductsHandler) Check(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid product id"))
		return
	}
	p, err := h.pool.Check(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, toProductResponse(p))
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, apierror.New("product not found"))
	case errors.Is(err, worker.ErrCheckTimeout):
		c.JSON(http.StatusGatewayTimeout, apierror.New("price check timed out"))
	case errors.Is(err, scraper.ErrBotDetected), errors.Is(err, scraper.ErrBlocked):
		c.JSON(http.StatusBadGateway, apierror.New("storefront is blocking requests, try again later"))
	default:
		c.JSON(http.StatusBadGateway, apierror.New("price check failed: "+err.Error()))
	}
}

func (h *ProductsHandler) Update(c *gin.Context) {
	p, ok := h.find(c)
	if !ok {
		return
	}
	var req dto.UpdateProductRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.TargetPrice != nil {
		p.TargetPrice = req.TargetPrice
	}
	if req.ClearTarget {
		p.TargetPrice = nil
	}
	if req.AlertNewPct != nil {
		p.AlertNewPct = req.AlertNewPct
	}
	if req.AlertNewDollars != nil {
		p.AlertNewDollars = req.AlertNewDollars
	}
	if req.AlertUsedPct != nil {
		p.AlertUsedPct = req.AlertUsedPct
	}
	if req.AlertUsedDollars != nil {
		p.AlertUsedDollars = req.AlertUsedDollars
	}
	if req.Quantity != nil {
		p.Quantity = *req.Quantity
	}
	if req.ExpiresAt != nil {
		p.ExpiresAt = req.ExpiresAt
	}
	if req.ClearExpiration {
		p.ExpiresAt = nil
	}

	if err := h.repo.Update(c.Request.Context(), p); err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to update product"))
		return
	}
	c.JSON(http.StatusOK, toProductResponse(p))
}

func (h *ProductsHandler) Archive(c *gin.Context) {
	p, ok := h.find(c)
	if !ok {
		return
	}
	if p.IsArchived {
		c.JSON(http.StatusConflict, apierror.New("product already archived"))
		return
	}
	p.Archive(time.Now())
	if err := h.repo.Update(c.Request.Context(), p); err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to archive product"))
		return
	}
	c.JSON(http.StatusOK, toProductResponse(p))
}

func (h *ProductsHandler) Restore(c *gin.Context) {
	p, ok := h.find(c)
	if !ok {
		return
	}
	if !p.IsArchived {
		c.JSON(http.StatusConflict, apierror.New("product is not archived"))
		return
	}
	p.Restore()
	if err := h.repo.Update(c.Request.Context(), p); err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to restore product"))
		return
	}
	c.JSON(http.StatusOK, toProductResponse(p))
}

func (h *ProductsHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid product id"))
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to delete product"))
		return
	}
	c.Status(http.StatusNoContent)
}

// ArchiveExpired archives every product past its retention deadline, same
// sweep the scheduled cycle runs, triggered from the dashboard.
func (h *ProductsHandler) ArchiveExpired(c *gin.Context) {
	expired, err := h.repo.ListExpired(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to list expired products"))
		return
	}
	archived := 0
	now := time.Now()
	for i := range expired {
		p := &expired[i]
		p.Archive(now)
		if err := h.repo.Update(c.Request.Context(), p); err != nil {
			continue
		}
		archived++
	}
	c.JSON(http.StatusOK, dto.ArchiveExpiredResponse{Archived: archived})
}

func (h *ProductsHandler) find(c *gin.Context) (*model.Product, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid product id"))
		return nil, false
	}
	p, err := h.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New("product not found"))
		return nil, false
	}
	return p, true
}

// sortProducts orders in place. "added" (newest first) is the repository
// default; price sorts nil prices last.
func sortProducts(products []model.Product, by string) {
	switch by {
	case "title":
		sort.SliceStable(products, func(i, j int) bool {
			return strings.ToLower(products[i].Title) < strings.ToLower(products[j].Title)
		})
	case "price":
		sort.SliceStable(products, func(i, j int) bool {
			pi, pj := products[i].CurrentNewPrice, products[j].CurrentNewPrice
			if pi == nil {
				return false
			}
			if pj == nil {
				return true
			}
			return pi.LessThan(*pj)
		})
	}
}

func toProductList(products []model.Product) dto.ProductListResponse {
	resp := dto.ProductListResponse{Data: make([]dto.ProductResponse, 0, len(products)), Total: len(products)}
	for i := range products {
		resp.Data = append(resp.Data, toProductResponse(&products[i]))
	}
	return resp
}

func toProductResponse(p *model.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:     p.ID.String(),
		ASIN:   p.ASIN,
		Title:  p.Title,
		URL:    p.URL,
		Source: p.Source,

		TargetPrice:      p.TargetPrice,
		CurrentNewPrice:  p.CurrentNewPrice,
		CurrentUsedPrice: p.CurrentUsedPrice,
		LowestNewPrice:   p.LowestNewPrice,
		HighestNewPrice:  p.HighestNewPrice,
		LowestUsedPrice:  p.LowestUsedPrice,
		HighestUsedPrice: p.HighestUsedPrice,

		AlertNewPct:      p.AlertNewPct,
		AlertNewDollars:  p.AlertNewDollars,
		AlertUsedPct:     p.AlertUsedPct,
		AlertUsedDollars: p.AlertUsedDollars,

		OrderDate:     p.OrderDate,
		OrderID:       p.OrderID,
		Quantity:      p.Quantity,
		PurchasePrice: p.PurchasePrice,

		LastChecked:   p.LastChecked,
		LastAlertSent: p.LastAlertSent,
		ExpiresAt:     p.ExpiresAt,
		ArchivedAt:    p.ArchivedAt,
		IsArchived:    p.IsArchived,

		Recall: dto.RecallResponse{
			Status:          p.RecallStatus,
			ID:              p.RecallID,
			Number:          p.RecallNumber,
			Title:           p.RecallTitle,
			Description:     p.RecallDescription,
			URL:             p.RecallURL,
			Hazard:          p.RecallHazard,
			Remedy:          p.RecallRemedy,
			Date:            p.RecallDate,
			ConsumerContact: p.RecallConsumerContact,
			LastCheck:       p.LastRecallCheck,
		},

		CreatedAt: p.CreatedAt,
	}
}
