package handler

import (
	affiliateapp "github.com/eksporyuk/backend/internal/application/affiliate"
	"github.com/eksporyuk/backend/internal/domain/affiliate"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RevenueHandler handles conversion intake and commission review
type RevenueHandler struct {
	BaseHandler
	admission *affiliateapp.RevenueAdmissionService
	approval  *affiliateapp.CommissionApprovalService
}

// NewRevenueHandler creates a new RevenueHandler
func NewRevenueHandler(admission *affiliateapp.RevenueAdmissionService, approval *affiliateapp.CommissionApprovalService) *RevenueHandler {
	return &RevenueHandler{
		admission: admission,
		approval:  approval,
	}
}

// AdmitConversion godoc
// @Summary      Admit a conversion
// @Description  Records the commission for a sale as pending revenue. A source transaction is admitted once.
// @Tags         revenues
// @Accept       json
// @Produce      json
// @Param        request body AdmitConversionRequest true "Conversion"
// @Security     BearerAuth
// @Router       /conversions [post]
func (h *RevenueHandler) AdmitConversion(c *gin.Context) {
	var req AdmitConversionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	var (
		revenue *affiliate.PendingRevenue
		err     error
	)
	switch {
	case req.SaleAmount != nil:
		rule := affiliate.CommissionRule{Type: affiliate.CommissionType(req.CommissionType)}
		if req.CommissionRate != nil {
			rule.Rate = *req.CommissionRate
		}
		revenue, err = h.admission.AdmitSale(c.Request.Context(), req.SourceTransactionID, req.AffiliateID, *req.SaleAmount, rule)
	case req.Amount != nil:
		revenue, err = h.admission.Admit(c.Request.Context(), req.SourceTransactionID, req.AffiliateID, *req.Amount)
	default:
		h.BadRequest(c, "Either amount or sale_amount is required")
		return
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, affiliateapp.ToPendingRevenueResponse(revenue))
}

// ListRevenues godoc
// @Summary      List pending revenue
// @Tags         revenues
// @Produce      json
// @Param        status query string false "PENDING (default), APPROVED or REJECTED"
// @Param        affiliate_id query string false "Affiliate ID" format(uuid)
// @Security     BearerAuth
// @Router       /revenues [get]
func (h *RevenueHandler) ListRevenues(c *gin.Context) {
	var q ListRevenuesQuery
	if !h.BindQuery(c, &q) {
		return
	}

	status := affiliate.RevenueStatusPending
	if q.Status != "" {
		status = affiliate.RevenueStatus(q.Status)
	}
	filter := affiliate.RevenueFilter{Status: &status, Page: q.Page, PageSize: q.PageSize}
	if q.AffiliateID != "" {
		id := uuid.MustParse(q.AffiliateID)
		filter.AffiliateID = &id
	}

	result, err := h.admission.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// ApproveRevenue godoc
// @Summary      Approve pending revenue
// @Description  Credits the affiliate's wallet with the computed or adjusted amount
// @Tags         revenues
// @Accept       json
// @Produce      json
// @Param        id path string true "Pending revenue ID" format(uuid)
// @Param        request body ApproveRevenueRequest false "Adjustment"
// @Security     BearerAuth
// @Router       /revenues/{id}/approve [post]
func (h *RevenueHandler) ApproveRevenue(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req ApproveRevenueRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	result, err := h.approval.Approve(c.Request.Context(), id, caller.UserID, req.AdjustedAmount)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RejectRevenue godoc
// @Summary      Reject pending revenue
// @Description  A note is required. Nothing is credited.
// @Tags         revenues
// @Accept       json
// @Produce      json
// @Param        id path string true "Pending revenue ID" format(uuid)
// @Param        request body RejectRequest true "Rejection"
// @Security     BearerAuth
// @Router       /revenues/{id}/reject [post]
func (h *RevenueHandler) RejectRevenue(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req RejectRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.approval.Reject(c.Request.Context(), id, caller.UserID, req.Note)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
