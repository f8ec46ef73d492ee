package memory

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merit_system/internal/domain"
	"merit_system/internal/store"
)

func TestWithinTxCommitsAndRollsBack(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.EnsureWallet(ctx, "u1", "c1", 10)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WithinTx(ctx, func(tx store.Store) error {
		ok, err := tx.DebitWallet(ctx, "u1", "c1", 4)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	require.ErrorIs(t, err, boom)
	w, err := s.GetWallet(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), w.Balance)

	require.NoError(t, s.WithinTx(ctx, func(tx store.Store) error {
		_, err := tx.DebitWallet(ctx, "u1", "c1", 4)
		return err
	}))
	w, err = s.GetWallet(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), w.Balance)
}

func TestWithinTxNests(t *testing.T) {
	s := New()
	ctx := context.Background()
	err := s.WithinTx(ctx, func(tx store.Store) error {
		return tx.WithinTx(ctx, func(inner store.Store) error {
			_, err := inner.EnsureWallet(ctx, "u1", "c1", 3)
			return err
		})
	})
	require.NoError(t, err)
	w, err := s.GetWallet(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), w.Balance)
}

func TestWithinTxHonoursCancellation(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	err := s.WithinTx(ctx, func(tx store.Store) error {
		_, err := tx.EnsureWallet(ctx, "u1", "c1", 3)
		cancel()
		return err
	})
	require.ErrorIs(t, err, context.Canceled)
	_, err = s.GetWallet(context.Background(), "u1", "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = s.WithinTx(ctx, func(store.Store) error {
		t.Fatal("fn must not run after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConditionalUpdates(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	_, err := s.EnsureQuota(ctx, "u1", "c1", 10, now)
	require.NoError(t, err)
	ok, err := s.DebitQuota(ctx, "u1", "c1", 11)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.DebitQuota(ctx, "u1", "c1", 10)
	require.NoError(t, err)
	assert.True(t, ok)

	rolled, err := s.RollQuota(ctx, "u1", "c1", 20, now.Truncate(24*time.Hour), now)
	require.NoError(t, err)
	assert.False(t, rolled)
	rolled, err = s.RollQuota(ctx, "u1", "c1", 20, now.Add(time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, rolled)
	q, err := s.GetQuota(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), q.UsedToday)
	assert.Equal(t, int64(20), q.DailyAllowance)

	_, err = s.DebitWallet(ctx, "nobody", "c1", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConditionalUpdatesDoNotOverflow(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	_, err := s.EnsureQuota(ctx, "u1", "c1", 10, now)
	require.NoError(t, err)
	ok, err := s.DebitQuota(ctx, "u1", "c1", 5)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.DebitQuota(ctx, "u1", "c1", math.MaxInt64)
	require.NoError(t, err)
	assert.False(t, ok)
	q, err := s.GetQuota(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), q.UsedToday)

	require.NoError(t, s.SaveEntity(ctx, &domain.Entity{ID: "p1", Type: domain.TargetPublication, CommunityID: "c1"}))
	require.NoError(t, s.AdjustEntityBalance(ctx, domain.TargetPublication, "p1", math.MaxInt64))
	err = s.AdjustEntityBalance(ctx, domain.TargetPublication, "p1", 1)
	assert.ErrorIs(t, err, domain.ErrOverflow)
	require.NoError(t, s.AdjustEntityBalance(ctx, domain.TargetPublication, "p1", -math.MaxInt64))
	err = s.AdjustEntityBalance(ctx, domain.TargetPublication, "p1", math.MinInt64)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

func TestEntities(t *testing.T) {
	s := New()
	ctx := context.Background()
	pub := &domain.Entity{ID: "p1", Type: domain.TargetPublication, CommunityID: "c1", AuthorID: "a"}
	require.NoError(t, s.SaveEntity(ctx, pub))
	require.NoError(t, s.AdjustEntityBalance(ctx, domain.TargetPublication, "p1", 7))

	// Re-registering keeps the accumulated balance.
	pub.InvestorSharePercent = 20
	pub.Balance = 0
	require.NoError(t, s.SaveEntity(ctx, pub))
	got, err := s.GetEntity(ctx, domain.TargetPublication, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Balance)
	assert.Equal(t, 20, got.InvestorSharePercent)

	drawn, err := s.DrawEntityBalance(ctx, domain.TargetPublication, "p1", 8)
	require.NoError(t, err)
	assert.False(t, drawn)
	drawn, err = s.DrawEntityBalance(ctx, domain.TargetPublication, "p1", 7)
	require.NoError(t, err)
	assert.True(t, drawn)

	_, err = s.GetEntity(ctx, domain.TargetVote, "p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	now := time.Now()
	require.NoError(t, s.AddInvestment(ctx, "p1", "z", 5, now))
	require.NoError(t, s.AddInvestment(ctx, "p1", "b", 1, now))
	require.NoError(t, s.AddInvestment(ctx, "p1", "z", 5, now))
	invs, err := s.ListInvestments(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, invs, 2)
	assert.Equal(t, "b", invs[0].InvestorID)
	assert.Equal(t, int64(10), invs[1].Amount)
}

func TestLedger(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := "k1"

	for i := 0; i < 25; i++ {
		e := &domain.LedgerEntry{ID: domain.NewLedgerEntryID(), Kind: domain.EntrySpend, ActorID: "u1", CommunityID: "c1"}
		if i == 3 {
			e.IdempotencyKey = &key
		}
		require.NoError(t, s.AppendEntry(ctx, e))
	}
	require.NoError(t, s.AppendEntry(ctx, &domain.LedgerEntry{ID: domain.NewLedgerEntryID(), Kind: domain.EntryInvest, ActorID: "u2", CommunityID: "c1"}))
	require.NoError(t, s.AppendEntry(ctx, &domain.LedgerEntry{ID: domain.NewLedgerEntryID(), Kind: domain.EntrySpend, ActorID: "u1", CommunityID: "c2"}))

	err := s.AppendEntry(ctx, &domain.LedgerEntry{ID: domain.NewLedgerEntryID(), IdempotencyKey: &key, CommunityID: "c1"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	got, err := s.GetEntryByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ActorID)

	entries, total, err := s.ListEntries(ctx, "c1", domain.LedgerFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(26), total)
	assert.Len(t, entries, 20)
	assert.Equal(t, domain.EntryInvest, entries[0].Kind)

	entries, total, err = s.ListEntries(ctx, "c1", domain.LedgerFilter{UserID: "u1", Page: 2, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	assert.Len(t, entries, 5)

	entries, _, err = s.ListEntries(ctx, "c1", domain.LedgerFilter{Kind: domain.EntryInvest, Page: 9})
	require.NoError(t, err)
	assert.Empty(t, entries)
}
