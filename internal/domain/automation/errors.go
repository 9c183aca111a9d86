package automation

import "github.com/eksporyuk/backend/internal/domain/shared"

var (
	ErrAutomationNotFound  = shared.NewDomainError("NOT_FOUND", "Automation not found")
	ErrStepNotFound        = shared.NewDomainError("NOT_FOUND", "Automation step not found")
	ErrLogNotFound         = shared.NewDomainError("NOT_FOUND", "Execution log not found")
	ErrNoActiveSteps       = shared.NewDomainError("NO_ACTIVE_STEPS", "Automation needs at least one active step before activation")
	ErrNonMonotonicDelays  = shared.NewDomainError("NON_MONOTONIC_DELAYS", "Step delays must not decrease with step order")
	ErrDuplicateStepOrder  = shared.NewDomainError("DUPLICATE_STEP_ORDER", "Step order already used in this automation")
	ErrInvalidTrigger      = shared.NewDomainError("INVALID_TRIGGER", "Unknown trigger type")
	ErrInvalidTriggerInput = shared.NewDomainError("INVALID_INPUT", "Lead and affiliate are required")
	ErrInvalidDelay        = shared.NewDomainError("INVALID_DELAY", "Delay hours cannot be negative")
	ErrInvalidTransition   = shared.NewDomainError("INVALID_TRANSITION", "Execution status transition not allowed")
	ErrTransportFailure    = shared.NewDomainError("TRANSPORT_FAILURE", "Message transport failed")
	ErrNotOwner            = shared.NewDomainError("FORBIDDEN", "Automation belongs to another affiliate")
	ErrInsufficientCredit  = shared.NewDomainError("INSUFFICIENT_CREDIT", "Insufficient credit")
	ErrInvalidCreditAmount = shared.NewDomainError("INVALID_AMOUNT", "Credit amount must be positive")
	ErrDuplicateCredit     = shared.NewDomainError("DUPLICATE_CREDIT", "Credit transaction already recorded for this reference")
	ErrCreditNotFound      = shared.NewDomainError("NOT_FOUND", "Credit account not found")
)
