package affiliate

// EntryKind is the closed set of reasons a wallet balance may change.
type EntryKind string

const (
	// EntryKindCreditCommission credits an approved commission
	EntryKindCreditCommission EntryKind = "CREDIT_COMMISSION"
	// EntryKindDebitPayout reserves funds for a payout request
	EntryKindDebitPayout EntryKind = "DEBIT_PAYOUT"
	// EntryKindAdjustment is a manual correction in either direction
	EntryKindAdjustment EntryKind = "ADJUSTMENT"
	// EntryKindPayoutReversal returns the funds of a rejected payout
	EntryKindPayoutReversal EntryKind = "PAYOUT_REVERSAL"
)

// Direction of a balance change
type Direction int

const (
	DirectionCredit Direction = iota + 1
	DirectionDebit
)

// String returns the string representation of EntryKind
func (k EntryKind) String() string {
	return string(k)
}

// IsValid returns true if the kind is one of the known kinds
func (k EntryKind) IsValid() bool {
	switch k {
	case EntryKindCreditCommission, EntryKindDebitPayout, EntryKindAdjustment, EntryKindPayoutReversal:
		return true
	}
	return false
}

// Allows reports whether the kind may be used in the given direction
func (k EntryKind) Allows(d Direction) bool {
	switch k {
	case EntryKindCreditCommission, EntryKindPayoutReversal:
		return d == DirectionCredit
	case EntryKindDebitPayout:
		return d == DirectionDebit
	case EntryKindAdjustment:
		return d == DirectionCredit || d == DirectionDebit
	}
	return false
}

// AllEntryKinds returns every entry kind
func AllEntryKinds() []EntryKind {
	return []EntryKind{
		EntryKindCreditCommission,
		EntryKindDebitPayout,
		EntryKindAdjustment,
		EntryKindPayoutReversal,
	}
}
