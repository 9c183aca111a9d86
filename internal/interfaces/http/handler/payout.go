package handler

import (
	affiliateapp "github.com/eksporyuk/backend/internal/application/affiliate"
	"github.com/eksporyuk/backend/internal/domain/affiliate"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PayoutHandler handles withdrawal requests and their review
type PayoutHandler struct {
	BaseHandler
	payouts *affiliateapp.PayoutService
}

// NewPayoutHandler creates a new PayoutHandler
func NewPayoutHandler(payouts *affiliateapp.PayoutService) *PayoutHandler {
	return &PayoutHandler{payouts: payouts}
}

// RequestPayout godoc
// @Summary      Request a payout
// @Description  Debits the caller's wallet and opens a PENDING payout
// @Tags         payouts
// @Accept       json
// @Produce      json
// @Param        request body RequestPayoutRequest true "Payout"
// @Security     BearerAuth
// @Router       /payouts [post]
func (h *PayoutHandler) RequestPayout(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req RequestPayoutRequest
	if !h.BindJSON(c, &req) {
		return
	}

	payout, err := h.payouts.RequestPayout(c.Request.Context(), affiliateapp.PayoutRequest{
		UserID: caller.UserID,
		Amount: req.Amount,
		Method: affiliate.PayoutMethod(req.Method),
		Account: affiliate.AccountDetails{
			BankName:      req.BankName,
			AccountNumber: req.AccountNumber,
			AccountName:   req.AccountName,
		},
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, affiliateapp.ToPayoutResponse(payout))
}

// ListPayouts godoc
// @Summary      List payouts
// @Description  Affiliates see their own payouts. Admins see all, optionally filtered by user.
// @Tags         payouts
// @Produce      json
// @Param        status query string false "Payout status"
// @Param        user_id query string false "User ID (admin only)" format(uuid)
// @Security     BearerAuth
// @Router       /payouts [get]
func (h *PayoutHandler) ListPayouts(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var q ListPayoutsQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := affiliate.PayoutFilter{Page: q.Page, PageSize: q.PageSize}
	if q.Status != "" {
		status := affiliate.PayoutStatus(q.Status)
		filter.Status = &status
	}
	switch {
	case !caller.IsAdmin():
		filter.UserID = &caller.UserID
	case q.UserID != "":
		userID := uuid.MustParse(q.UserID)
		filter.UserID = &userID
	}

	result, err := h.payouts.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// ApprovePayout godoc
// @Summary      Approve a payout
// @Tags         payouts
// @Produce      json
// @Param        id path string true "Payout ID" format(uuid)
// @Security     BearerAuth
// @Router       /payouts/{id}/approve [post]
func (h *PayoutHandler) ApprovePayout(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	payout, err := h.payouts.Approve(c.Request.Context(), id, caller.UserID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, affiliateapp.ToPayoutResponse(payout))
}

// RejectPayout godoc
// @Summary      Reject a payout
// @Description  Returns the reserved funds to the wallet
// @Tags         payouts
// @Accept       json
// @Produce      json
// @Param        id path string true "Payout ID" format(uuid)
// @Param        request body RejectRequest false "Rejection"
// @Security     BearerAuth
// @Router       /payouts/{id}/reject [post]
func (h *PayoutHandler) RejectPayout(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req RejectRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	payout, err := h.payouts.Reject(c.Request.Context(), id, caller.UserID, req.Note)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, affiliateapp.ToPayoutResponse(payout))
}

// CompletePayout godoc
// @Summary      Mark a payout as transferred
// @Tags         payouts
// @Accept       json
// @Produce      json
// @Param        id path string true "Payout ID" format(uuid)
// @Param        request body CompletePayoutRequest false "Transfer reference"
// @Security     BearerAuth
// @Router       /payouts/{id}/complete [post]
func (h *PayoutHandler) CompletePayout(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req CompletePayoutRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	payout, err := h.payouts.Complete(c.Request.Context(), id, req.ExternalReference)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, affiliateapp.ToPayoutResponse(payout))
}
