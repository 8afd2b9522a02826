package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSwapStatusTransitions(t *testing.T) {
	require.True(t, SwapStatusPending.CanTransitionTo(SwapStatusManagerApprovalRequired))
	require.True(t, SwapStatusPending.CanTransitionTo(SwapStatusCancelled))
	require.False(t, SwapStatusPending.CanTransitionTo(SwapStatusCompleted))

	require.True(t, SwapStatusManagerApprovalRequired.CanTransitionTo(SwapStatusApproved))
	require.True(t, SwapStatusManagerApprovalRequired.CanTransitionTo(SwapStatusRejected))
	require.True(t, SwapStatusManagerApprovalRequired.CanTransitionTo(SwapStatusPending))

	require.True(t, SwapStatusApproved.CanTransitionTo(SwapStatusCompleted))
	require.True(t, SwapStatusApproved.CanTransitionTo(SwapStatusPending))

	// 终态不允许任何转移
	for _, s := range []SwapRequestStatus{SwapStatusCompleted, SwapStatusRejected, SwapStatusCancelled, SwapStatusExpired} {
		require.True(t, s.IsTerminal())
		for _, target := range []SwapRequestStatus{SwapStatusPending, SwapStatusApproved, SwapStatusCompleted, SwapStatusCancelled} {
			require.False(t, s.CanTransitionTo(target), "%s -> %s", s, target)
		}
	}
}

func TestCoverageStatusTransitions(t *testing.T) {
	require.True(t, CoverageStatusOpen.CanTransitionTo(CoverageStatusAccepted))
	require.True(t, CoverageStatusOpen.CanTransitionTo(CoverageStatusExpired))
	require.True(t, CoverageStatusOpen.CanTransitionTo(CoverageStatusCancelled))
	require.False(t, CoverageStatusOpen.CanTransitionTo(CoverageStatusCompleted))

	require.True(t, CoverageStatusAccepted.CanTransitionTo(CoverageStatusPendingApproval))
	require.True(t, CoverageStatusAccepted.CanTransitionTo(CoverageStatusCompleted))
	require.False(t, CoverageStatusAccepted.CanTransitionTo(CoverageStatusExpired))

	require.True(t, CoverageStatusPendingApproval.CanTransitionTo(CoverageStatusCompleted))
	require.True(t, CoverageStatusPendingApproval.CanTransitionTo(CoverageStatusRejected))
	require.True(t, CoverageStatusPendingApproval.CanTransitionTo(CoverageStatusOpen))

	for _, s := range []CoverageRequestStatus{CoverageStatusCompleted, CoverageStatusRejected, CoverageStatusExpired, CoverageStatusCancelled} {
		require.True(t, s.IsTerminal())
		for _, target := range []CoverageRequestStatus{CoverageStatusOpen, CoverageStatusAccepted, CoverageStatusCompleted} {
			require.False(t, s.CanTransitionTo(target), "%s -> %s", s, target)
		}
	}
}
