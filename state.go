package accounts

import (
	"strings"
)

// AccountState is the lifecycle position of an account as observed
// through the identity provider. The provider owns the real state,
// this is a read of it.
type AccountState string

const (
	StateUnknown             AccountState = ""
	StateUnregistered        AccountState = "unregistered"
	StatePendingConfirmation AccountState = "pending_confirmation"
	StateConfirmed           AccountState = "confirmed"
	StateAuthenticated       AccountState = "authenticated"
)

// Provider status values, Cognito naming
const (
	ProviderStatusUnconfirmed = "UNCONFIRMED"
	ProviderStatusConfirmed   = "CONFIRMED"
)

var accountTransitions = map[AccountState]map[AccountState]struct{}{
	StateUnregistered: {
		StatePendingConfirmation: {},
	},
	StatePendingConfirmation: {
		StateConfirmed: {},
	},
	StateConfirmed: {
		StateAuthenticated: {},
	},
	StateAuthenticated: {
		StateAuthenticated: {},
	},
}

// StateFromProvider maps a provider user onto an AccountState
func StateFromProvider(user *ProviderUser) AccountState {
	if !user.Registered() {
		return StateUnregistered
	}

	switch strings.ToUpper(strings.TrimSpace(user.Status)) {
	case ProviderStatusUnconfirmed:
		return StatePendingConfirmation
	default:
		return StateConfirmed
	}
}

// CanTransition reports whether the lifecycle allows moving from one state to the next
func CanTransition(from, to AccountState) bool {
	targets, ok := accountTransitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// ValidateTransition returns ErrInvalidTransition for disallowed moves.
// An unknown origin is accepted, the provider is the source of truth.
func ValidateTransition(from, to AccountState) error {
	if from == StateUnknown {
		return nil
	}
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	return nil
}

// IsTerminal reports states with no further lifecycle steps
func (s AccountState) IsTerminal() bool {
	return s == StateAuthenticated
}

func (s AccountState) String() string {
	if s == StateUnknown {
		return "unknown"
	}
	return string(s)
}
