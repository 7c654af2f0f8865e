package handler

import (
	"net/http"

	"pricewatch/internal/apierror"
	"pricewatch/internal/dto"
	"pricewatch/internal/model"
	"pricewatch/internal/repository"

	"github.com/gin-gonic/gin"
)

type SettingsHandler struct {
	repo repository.SettingsRepository
}

func NewSettingsHandler(repo repository.SettingsRepository) *SettingsHandler {
	return &SettingsHandler{repo: repo}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	st, err := h.repo.Get(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to load settings"))
		return
	}
	c.JSON(http.StatusOK, toSettingsResponse(st))
}

// Update applies a partial settings change. The password is write-only;
// responses only report whether credentials are configured.
func (h *SettingsHandler) Update(c *gin.Context) {
	var req dto.UpdateSettingsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	st, err := h.repo.Get(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to load settings"))
		return
	}

	if req.EmailAddress != nil {
		st.EmailAddress = *req.EmailAddress
	}
	if req.EmailPassword != nil {
		st.EmailPassword = *req.EmailPassword
	}
	if req.CheckIntervalMinutes != nil {
		st.CheckIntervalMinutes = *req.CheckIntervalMinutes
	}
	if req.AutoImportOrders != nil {
		st.AutoImportOrders = *req.AutoImportOrders
	}
	if req.ImportFrequency != nil {
		st.ImportFrequency = *req.ImportFrequency
	}
	if req.GlobalAlertsEnabled != nil {
		st.GlobalAlertsEnabled = *req.GlobalAlertsEnabled
	}
	if req.GlobalNewPct != nil {
		st.GlobalNewPct = req.GlobalNewPct
	}
	if req.GlobalNewDollars != nil {
		st.GlobalNewDollars = req.GlobalNewDollars
	}
	if req.GlobalUsedPct != nil {
		st.GlobalUsedPct = req.GlobalUsedPct
	}
	if req.GlobalUsedDollars != nil {
		st.GlobalUsedDollars = req.GlobalUsedDollars
	}
	if req.BatchEmailAlerts != nil {
		st.BatchEmailAlerts = *req.BatchEmailAlerts
	}
	if req.RecallScanEnabled != nil {
		st.RecallScanEnabled = *req.RecallScanEnabled
	}
	if req.RecallScanFrequency != nil {
		st.RecallScanFrequency = *req.RecallScanFrequency
	}
	if req.DefaultExpirationDays != nil {
		st.DefaultExpirationDays = *req.DefaultExpirationDays
	}
	if req.AutoArchive != nil {
		st.AutoArchive = *req.AutoArchive
	}

	if err := h.repo.Update(c.Request.Context(), st); err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to save settings"))
		return
	}
	c.JSON(http.StatusOK, toSettingsResponse(st))
}

func toSettingsResponse(st *model.Settings) dto.SettingsResponse {
	return dto.SettingsResponse{
		EmailAddress:    st.EmailAddress,
		EmailConfigured: st.EmailConfigured(),

		CheckIntervalMinutes: st.CheckIntervalMinutes,

		AutoImportOrders: st.AutoImportOrders,
		ImportFrequency:  st.ImportFrequency,
		LastEmailScan:    st.LastEmailScan,

		GlobalAlertsEnabled: st.GlobalAlertsEnabled,
		GlobalNewPct:        st.GlobalNewPct,
		GlobalNewDollars:    st.GlobalNewDollars,
		GlobalUsedPct:       st.GlobalUsedPct,
		GlobalUsedDollars:   st.GlobalUsedDollars,

		BatchEmailAlerts: st.BatchEmailAlerts,

		RecallScanEnabled:   st.RecallScanEnabled,
		RecallScanFrequency: st.RecallScanFrequency,
		LastRecallScan:      st.LastRecallScan,

		DefaultExpirationDays: st.DefaultExpirationDays,
		AutoArchive:           st.AutoArchive,
	}
}
