package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/middleware"
	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/models"
)

// LoyaltyLedger is the customer-facing side of the points ledger
type LoyaltyLedger interface {
	GetAccount(ctx context.Context, customerID uuid.UUID) (*models.LoyaltyAccount, error)
	Redeem(ctx context.Context, customerID uuid.UUID, req *models.RedeemPointsRequest) (*models.RedemptionResult, error)
	Adjust(ctx context.Context, customerID uuid.UUID, req *models.AdjustPointsRequest) (*models.LoyaltyAccount, error)
	ListTransactions(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.LoyaltyTransaction, error)
}

// LoyaltyHandler handles HTTP requests for loyalty points
type LoyaltyHandler struct {
	ledger LoyaltyLedger
	logger *logrus.Logger
}

// NewLoyaltyHandler creates a new loyalty handler
func NewLoyaltyHandler(ledger LoyaltyLedger, logger *logrus.Logger) *LoyaltyHandler {
	return &LoyaltyHandler{
		ledger: ledger,
		logger: logger,
	}
}

// GetAccount handles GET /api/v1/loyalty/account
func (h *LoyaltyHandler) GetAccount(c *gin.Context) {
	userCtx, _ := middleware.GetUserContext(c)

	account, err := h.ledger.GetAccount(c.Request.Context(), userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

// ListTransactions handles GET /api/v1/loyalty/transactions?limit=&offset=
func (h *LoyaltyHandler) ListTransactions(c *gin.Context) {
	userCtx, _ := middleware.GetUserContext(c)

	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	txns, err := h.ledger.ListTransactions(c.Request.Context(), userCtx.UserID, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": txns,
		"limit":        limit,
		"offset":       offset,
	})
}

// RedeemPoints handles POST /api/v1/loyalty/redeem
func (h *LoyaltyHandler) RedeemPoints(c *gin.Context) {
	userCtx, _ := middleware.GetUserContext(c)

	var req models.RedeemPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request format", err)
		return
	}

	result, err := h.ledger.Redeem(c.Request.Context(), userCtx.UserID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AdjustPoints handles POST /api/v1/admin/loyalty/:customer_id/adjust
func (h *LoyaltyHandler) AdjustPoints(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("customer_id"))
	if err != nil {
		respondBadRequest(c, "Invalid customer ID", err)
		return
	}

	var req models.AdjustPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request format", err)
		return
	}

	account, err := h.ledger.Adjust(c.Request.Context(), customerID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	adminCtx, _ := middleware.GetUserContext(c)
	h.logger.WithFields(logrus.Fields{
		"customer_id": customerID,
		"points":      req.Points,
		"admin_id":    adminCtx.UserID,
	}).Info("Loyalty points adjusted")

	c.JSON(http.StatusOK, account)
}
