package handler

import (
	affiliateapp "github.com/eksporyuk/backend/internal/application/affiliate"
	"github.com/eksporyuk/backend/internal/domain/affiliate"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler exposes wallets and their ledger
type WalletHandler struct {
	BaseHandler
	ledger *affiliateapp.LedgerService
}

// NewWalletHandler creates a new WalletHandler
func NewWalletHandler(ledger *affiliateapp.LedgerService) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// GetMyWallet godoc
// @Summary      Get the caller's wallet
// @Tags         wallet
// @Produce      json
// @Security     BearerAuth
// @Router       /wallet [get]
func (h *WalletHandler) GetMyWallet(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	wallet, err := h.ledger.GetWallet(c.Request.Context(), caller.UserID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, wallet)
}

// ListMyEntries godoc
// @Summary      List the caller's ledger entries
// @Tags         wallet
// @Produce      json
// @Param        kind query string false "Entry kind"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Security     BearerAuth
// @Router       /wallet/entries [get]
func (h *WalletHandler) ListMyEntries(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var q ListEntriesQuery
	if !h.BindQuery(c, &q) {
		return
	}

	wallet, err := h.ledger.GetWallet(c.Request.Context(), caller.UserID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	filter := affiliate.LedgerEntryFilter{Page: q.Page, PageSize: q.PageSize}
	if q.Kind != "" {
		kind := affiliate.EntryKind(q.Kind)
		filter.Kind = &kind
	}
	result, err := h.ledger.ListEntries(c.Request.Context(), wallet.ID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// Reconcile godoc
// @Summary      Reconcile a wallet
// @Description  Compares the materialized balance with the sum of the wallet's ledger entries
// @Tags         wallets
// @Produce      json
// @Param        id path string true "Wallet ID" format(uuid)
// @Security     BearerAuth
// @Router       /wallets/{id}/reconcile [get]
func (h *WalletHandler) Reconcile(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.ledger.Reconcile(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Adjust godoc
// @Summary      Post a manual adjustment
// @Description  A positive amount credits the wallet, a negative one debits it
// @Tags         wallets
// @Accept       json
// @Produce      json
// @Param        id path string true "Wallet ID" format(uuid)
// @Param        request body AdjustWalletRequest true "Adjustment"
// @Security     BearerAuth
// @Router       /wallets/{id}/adjustments [post]
func (h *WalletHandler) Adjust(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req AdjustWalletRequest
	if !h.BindJSON(c, &req) {
		return
	}

	referenceID := uuid.Nil
	if req.ReferenceID != nil {
		referenceID = *req.ReferenceID
	}
	entry, err := h.ledger.Adjust(c.Request.Context(), id, req.Amount, referenceID, caller.UserID, req.Description)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, affiliateapp.ToLedgerEntryResponse(entry))
}
