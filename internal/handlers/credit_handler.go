package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/practice-service/internal/models"
	"github.com/SAP-F-2025/practice-service/internal/repositories"
	"github.com/SAP-F-2025/practice-service/internal/services"
	"github.com/SAP-F-2025/practice-service/internal/utils"
)

type CreditHandler struct {
	BaseHandler
	creditService services.CreditService
}

func NewCreditHandler(creditService services.CreditService, logger utils.Logger, cfg HandlerConfig) *CreditHandler {
	return &CreditHandler{
		BaseHandler:   NewBaseHandler(logger, cfg.PurchaseURL),
		creditService: creditService,
	}
}

// GetBalance returns the caller's credit balance
// @Summary Get credit balance
// @Tags credits
// @Produce json
// @Success 200 {object} services.CreditBalanceResponse
// @Failure 401 {object} ErrorResponse
// @Router /credits [get]
func (h *CreditHandler) GetBalance(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	balance, err := h.creditService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

// ListTransactions returns the caller's ledger entries, newest first
// @Summary List credit transactions
// @Tags credits
// @Produce json
// @Param reason query string false "signup, purchase, generation, grading or refund"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Success 200 {object} services.TransactionListResponse
// @Router /credits/transactions [get]
func (h *CreditHandler) ListTransactions(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	page := parseIntQuery(c, "page", 1)
	if page < 1 {
		page = 1
	}
	size := parseIntQuery(c, "size", 20)
	filters := repositories.TransactionFilters{Limit: size, Offset: (page - 1) * size}
	if reason := c.Query("reason"); reason != "" {
		r := models.CreditReason(reason)
		filters.Reason = &r
	}

	resp, err := h.creditService.Transactions(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
