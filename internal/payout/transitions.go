package payout

import (
	"slices"

	"github.com/Proton-105/himera-wallet/internal/domain"
)

// withdrawalTransitions lists the statuses each status may move to.
// Completed, rejected and cancelled are terminal.
var withdrawalTransitions = map[domain.WithdrawalStatus][]domain.WithdrawalStatus{
	domain.WithdrawalPending: {
		domain.WithdrawalProcessing,
		domain.WithdrawalCancelled,
	},
	domain.WithdrawalProcessing: {
		domain.WithdrawalCompleted,
		domain.WithdrawalRejected,
	},
}

// CanTransition reports whether a withdrawal may move from one status to another.
func CanTransition(from, to domain.WithdrawalStatus) bool {
	allowed, ok := withdrawalTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// IsTerminal reports whether no further transition is possible from status.
func IsTerminal(status domain.WithdrawalStatus) bool {
	_, ok := withdrawalTransitions[status]
	return !ok
}
