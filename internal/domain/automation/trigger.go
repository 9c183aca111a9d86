package automation

// TriggerType is the lead lifecycle event that starts an automation
type TriggerType string

const (
	TriggerAfterOptin     TriggerType = "AFTER_OPTIN"
	TriggerAfterZoom      TriggerType = "AFTER_ZOOM"
	TriggerPendingPayment TriggerType = "PENDING_PAYMENT"
	TriggerWelcome        TriggerType = "WELCOME"
)

// IsValid returns true if the trigger type is known
func (t TriggerType) IsValid() bool {
	switch t {
	case TriggerAfterOptin, TriggerAfterZoom, TriggerPendingPayment, TriggerWelcome:
		return true
	}
	return false
}

// String returns the string representation of TriggerType
func (t TriggerType) String() string {
	return string(t)
}
