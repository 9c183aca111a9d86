package router

import (
	"github.com/eksporyuk/backend/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// PublicPaths are served without a bearer token
var PublicPaths = []string{
	"/api/v1/system/ping",
	"/api/v1/system/info",
}

// Handlers bundles the handlers mounted under /api/v1
type Handlers struct {
	Revenue    *handler.RevenueHandler
	Wallet     *handler.WalletHandler
	Payout     *handler.PayoutHandler
	Automation *handler.AutomationHandler
	Credit     *handler.CreditHandler
	Outbox     *handler.OutboxHandler
	System     *handler.SystemHandler
}

// Guards are the route-level middleware. Admin is required; PayoutLimit
// may be nil.
type Guards struct {
	Admin       gin.HandlerFunc
	PayoutLimit gin.HandlerFunc
}

// APIRoutes returns the affiliate, automation and system route groups
func APIRoutes(h Handlers, g Guards) []RouteRegistrar {
	admin := g.Admin

	ledger := NewDomainGroup("ledger", "")
	ledger.POST("/conversions", admin, h.Revenue.AdmitConversion)
	ledger.GET("/revenues", admin, h.Revenue.ListRevenues)
	ledger.POST("/revenues/:id/approve", admin, h.Revenue.ApproveRevenue)
	ledger.POST("/revenues/:id/reject", admin, h.Revenue.RejectRevenue)
	ledger.GET("/wallet", h.Wallet.GetMyWallet)
	ledger.GET("/wallet/entries", h.Wallet.ListMyEntries)
	ledger.GET("/wallets/:id/reconcile", admin, h.Wallet.Reconcile)
	ledger.POST("/wallets/:id/adjustments", admin, h.Wallet.Adjust)

	payouts := NewDomainGroup("payouts", "/payouts")
	if g.PayoutLimit != nil {
		payouts.POST("", g.PayoutLimit, h.Payout.RequestPayout)
	} else {
		payouts.POST("", h.Payout.RequestPayout)
	}
	payouts.GET("", h.Payout.ListPayouts)
	payouts.POST("/:id/approve", admin, h.Payout.ApprovePayout)
	payouts.POST("/:id/reject", admin, h.Payout.RejectPayout)
	payouts.POST("/:id/complete", admin, h.Payout.CompletePayout)

	automations := NewDomainGroup("automations", "/automations")
	automations.POST("", h.Automation.Create)
	automations.GET("", h.Automation.List)
	automations.GET("/stats", h.Automation.Stats)
	automations.POST("/trigger", h.Automation.Trigger)
	automations.GET("/:id", h.Automation.Get)
	automations.PUT("/:id", h.Automation.Update)
	automations.POST("/:id/steps", h.Automation.AddStep)
	automations.PUT("/:id/steps/:stepId", h.Automation.UpdateStep)
	automations.DELETE("/:id/steps/:stepId", h.Automation.RemoveStep)
	automations.POST("/:id/activate", h.Automation.Activate)
	automations.POST("/:id/deactivate", h.Automation.Deactivate)
	automations.POST("/:id/cancel", h.Automation.Cancel)
	automations.GET("/:id/logs", h.Automation.ListLogs)

	credits := NewDomainGroup("credits", "/credits")
	credits.GET("", h.Credit.GetMyCredits)
	credits.GET("/transactions", h.Credit.ListMyTransactions)
	credits.POST("/:id/top-up", admin, h.Credit.TopUp)

	system := NewDomainGroup("system", "/system")
	system.GET("/info", h.System.GetSystemInfo)
	system.GET("/ping", h.System.Ping)
	outbox := system.Group("outbox", "/outbox").Use(admin)
	outbox.GET("/stats", h.Outbox.GetStats)
	outbox.GET("/dead", h.Outbox.GetDeadLetterEntries)
	outbox.POST("/dead/retry-all", h.Outbox.RetryAllDeadEntries)
	outbox.GET("/:id", h.Outbox.GetEntry)
	outbox.POST("/:id/retry", h.Outbox.RetryDeadEntry)

	return []RouteRegistrar{ledger, payouts, automations, credits, system}
}
