package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/practice-service/internal/services"
	"github.com/SAP-F-2025/practice-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type HistoryHandler struct {
	BaseHandler
	historyService services.HistoryService
}

func NewHistoryHandler(historyService services.HistoryService, logger utils.Logger, cfg HandlerConfig) *HistoryHandler {
	return &HistoryHandler{
		BaseHandler:    NewBaseHandler(logger, cfg.PurchaseURL),
		historyService: historyService,
	}
}

// ListAttempts lists graded practice attempts
// @Summary List practice history
// @Tags history
// @Produce json
// @Param subject query string false "Subject"
// @Param kind query string false "topical or exam"
// @Param difficulty query string false "Easy, Medium or Hard"
// @Param is_correct query bool false "Only correct or incorrect attempts"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Success 200 {object} services.AttemptListResponse
// @Router /history [get]
func (h *HistoryHandler) ListAttempts(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	resp, err := h.historyService.List(c.Request.Context(), userID, parseAttemptFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetStats summarizes practice history per subject
// @Summary Practice statistics
// @Tags history
// @Produce json
// @Success 200 {object} repositories.PracticeSummary
// @Router /history/stats [get]
func (h *HistoryHandler) GetStats(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	summary, err := h.historyService.Stats(c.Request.Context(), userID, parseAttemptFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ExportAttempts downloads practice history as an Excel workbook
// @Summary Export practice history
// @Tags history
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Router /history/export [get]
func (h *HistoryHandler) ExportAttempts(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Exporting practice history")

	data, err := h.historyService.Export(c.Request.Context(), userID, parseAttemptFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("practice-history-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}
