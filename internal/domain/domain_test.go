package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestQuotaRemaining(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		quota     Quota
		remaining int64
		stale     bool
	}{
		{"fresh", Quota{DailyAllowance: 100, UsedToday: 80, LastResetAt: today.Add(time.Hour)}, 20, false},
		{"reset exactly at period start", Quota{DailyAllowance: 100, UsedToday: 30, LastResetAt: today}, 70, false},
		{"yesterday counts as unused", Quota{DailyAllowance: 100, UsedToday: 100, LastResetAt: today.Add(-time.Minute)}, 100, true},
		{"allowance lowered below usage", Quota{DailyAllowance: 10, UsedToday: 25, LastResetAt: today}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.stale, tt.quota.Stale(today))
			assert.Equal(t, tt.remaining, tt.quota.Remaining(today))
		})
	}
}

func TestErrorsWrap(t *testing.T) {
	assert.ErrorIs(t, ErrInsufficientQuota, ErrInsufficientFunds)
	assert.ErrorIs(t, ErrInsufficientBalance, ErrInsufficientFunds)
	assert.False(t, errors.Is(ErrInsufficientQuota, ErrInsufficientBalance))
	assert.ErrorIs(t, ErrOverflow, ErrInvalidRequest)

	err := Invalid("amount %d too small", 3)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "amount 3 too small")

	assert.True(t, IsInsufficient(ErrInsufficientQuota))
	assert.False(t, IsInsufficient(ErrConflict))
	assert.True(t, IsRetryable(ErrConflict))
	assert.False(t, IsRetryable(ErrForbidden))
}

func TestRuleFlag(t *testing.T) {
	r := PermissionRule{Conditions: datatypes.JSONMap{
		string(CondCanVoteForOwnPosts): true,
		string(CondIsHidden):           "TRUE",
		string(CondTeamOnly):           "no",
		string(CondOnlyTeamLead):       1,
	}}
	assert.True(t, r.Flag(CondCanVoteForOwnPosts))
	assert.True(t, r.Flag(CondIsHidden))
	assert.False(t, r.Flag(CondTeamOnly))
	assert.False(t, r.Flag(CondOnlyTeamLead))
	assert.False(t, r.Flag(CondRequiresTeamMembership))
}

func TestAllocationRequest(t *testing.T) {
	down := AllocationRequest{TargetType: TargetVote, RequestedAmount: -15}
	assert.True(t, down.IsDownvote())
	assert.Equal(t, int64(15), down.Amount())
	assert.Equal(t, ActionVote, down.Action())

	cast := AllocationRequest{TargetType: TargetPoll, RequestedAmount: 4}
	assert.False(t, cast.IsDownvote())
	assert.Equal(t, ActionPollCast, cast.Action())
}

func TestEntityOwnership(t *testing.T) {
	e := Entity{AuthorID: "alice"}
	assert.Equal(t, "alice", e.Payee())
	assert.True(t, e.OwnedBy("alice"))
	assert.False(t, e.OwnedBy(""))

	e.BeneficiaryID = "bob"
	assert.Equal(t, "bob", e.Payee())
	assert.True(t, e.OwnedBy("alice"))
	assert.True(t, e.OwnedBy("bob"))
	assert.False(t, e.OwnedBy("carol"))
}

func TestValidEnums(t *testing.T) {
	for _, r := range Roles {
		assert.True(t, r.Valid())
	}
	assert.False(t, Role("owner").Valid())
	for _, a := range Actions {
		assert.True(t, a.Valid())
	}
	assert.False(t, Action("delete").Valid())
	assert.True(t, ModeQuotaOnly.Valid())
	assert.False(t, VotingMode("").Valid())
	assert.False(t, TargetType("comment").Valid())
}

func TestNewLedgerEntryID(t *testing.T) {
	a, b := NewLedgerEntryID(), NewLedgerEntryID()
	require.True(t, strings.HasPrefix(a, "led_"), a)
	assert.NotEqual(t, a, b)
}
