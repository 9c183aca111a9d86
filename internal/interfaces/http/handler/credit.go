package handler

import (
	automationapp "github.com/eksporyuk/backend/internal/application/automation"
	"github.com/gin-gonic/gin"
)

// CreditHandler exposes messaging credit balances and top-ups
type CreditHandler struct {
	BaseHandler
	credits *automationapp.CreditService
}

// NewCreditHandler creates a new CreditHandler
func NewCreditHandler(credits *automationapp.CreditService) *CreditHandler {
	return &CreditHandler{credits: credits}
}

// GetMyCredits godoc
// @Summary      Get the caller's messaging credit balance
// @Tags         credits
// @Produce      json
// @Security     BearerAuth
// @Router       /credits [get]
func (h *CreditHandler) GetMyCredits(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	balance, err := h.credits.Balance(c.Request.Context(), caller.UserID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

// ListMyTransactions godoc
// @Summary      List the caller's credit movements
// @Tags         credits
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Security     BearerAuth
// @Router       /credits/transactions [get]
func (h *CreditHandler) ListMyTransactions(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var q PageQuery
	if !h.BindQuery(c, &q) {
		return
	}
	result, err := h.credits.ListTransactions(c.Request.Context(), caller.UserID, q.Page, q.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// TopUp godoc
// @Summary      Record purchased credits for an affiliate
// @Description  Idempotent per payment_reference
// @Tags         credits
// @Accept       json
// @Produce      json
// @Param        id path string true "Affiliate user ID" format(uuid)
// @Param        request body TopUpCreditsRequest true "Top-up"
// @Security     BearerAuth
// @Router       /credits/{id}/top-up [post]
func (h *CreditHandler) TopUp(c *gin.Context) {
	affiliateID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req TopUpCreditsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	txn, err := h.credits.TopUp(c.Request.Context(), affiliateID, req.Amount, req.PaymentReference, req.Description)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, txn)
}
