// Package quota owns the daily allowance of each (user, community). Resets are
// lazy: a record whose last reset predates the current period counts as
// unused, and is rewritten on the next debit.
package quota

import (
	"context"
	"errors"
	"time"

	"merit_system/internal/domain"
	"merit_system/internal/store"
)

// Manager reads and debits quotas through a Store.
type Manager struct {
	store    store.Store
	defaults domain.Community
	loc      *time.Location
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLocation sets the time zone whose midnight starts a period.
func WithLocation(loc *time.Location) Option {
	return func(m *Manager) { m.loc = loc }
}

// NewManager returns a Manager. defaults supplies the allowance of communities
// that were never configured.
func NewManager(s store.Store, defaults domain.Community, opts ...Option) *Manager {
	m := &Manager{store: s, defaults: defaults, loc: time.UTC, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithStore returns a copy bound to s, typically an open transaction.
func (m *Manager) WithStore(s store.Store) *Manager {
	c := *m
	c.store = s
	return &c
}

// PeriodStart returns the start of the period containing t.
func (m *Manager) PeriodStart(t time.Time) time.Time {
	y, mo, d := t.In(m.loc).Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, m.loc)
}

// GetRemaining returns the quota status without writing anything.
func (m *Manager) GetRemaining(ctx context.Context, userID, communityID string) (domain.QuotaStatus, error) {
	now := m.now()
	start := m.PeriodStart(now)
	q, err := m.store.GetQuota(ctx, userID, communityID)
	if errors.Is(err, domain.ErrNotFound) {
		settings, err := store.CommunitySettings(ctx, m.store, communityID, m.defaults)
		if err != nil {
			return domain.QuotaStatus{}, err
		}
		return domain.QuotaStatus{
			Remaining:   settings.DailyAllowance,
			Allowance:   settings.DailyAllowance,
			LastResetAt: start,
		}, nil
	}
	if err != nil {
		return domain.QuotaStatus{}, err
	}
	if q.Stale(start) {
		// The next write refreshes the allowance from community settings.
		settings, err := store.CommunitySettings(ctx, m.store, communityID, m.defaults)
		if err != nil {
			return domain.QuotaStatus{}, err
		}
		return domain.QuotaStatus{
			Remaining:   settings.DailyAllowance,
			Allowance:   settings.DailyAllowance,
			LastResetAt: start,
		}, nil
	}
	return domain.QuotaStatus{
		Remaining:   q.Remaining(start),
		Allowance:   q.DailyAllowance,
		UsedToday:   q.UsedToday,
		LastResetAt: q.LastResetAt,
	}, nil
}

// TryDebit spends amount of today's quota. It returns applied=false with
// ErrInsufficientQuota when amount exceeds what is left at apply time.
func (m *Manager) TryDebit(ctx context.Context, userID, communityID string, amount int64) (bool, int64, error) {
	if amount < 0 {
		return false, 0, domain.Invalid("negative quota debit %d", amount)
	}
	settings, err := store.CommunitySettings(ctx, m.store, communityID, m.defaults)
	if err != nil {
		return false, 0, err
	}
	now := m.now()
	start := m.PeriodStart(now)
	if _, err := m.store.EnsureQuota(ctx, userID, communityID, settings.DailyAllowance, now); err != nil {
		return false, 0, err
	}
	if _, err := m.store.RollQuota(ctx, userID, communityID, settings.DailyAllowance, start, now); err != nil {
		return false, 0, err
	}
	applied := false
	if amount <= settings.DailyAllowance {
		if applied, err = m.store.DebitQuota(ctx, userID, communityID, amount); err != nil {
			return false, 0, err
		}
	}
	q, err := m.store.GetQuota(ctx, userID, communityID)
	if err != nil {
		return false, 0, err
	}
	if !applied {
		return false, q.Remaining(start), domain.ErrInsufficientQuota
	}
	return true, q.Remaining(start), nil
}

// ResetNow zeroes today's usage for one user, or the whole community when
// userID is empty, and returns how many records changed.
func (m *Manager) ResetNow(ctx context.Context, communityID, userID string) (int64, error) {
	return m.store.ResetQuotas(ctx, communityID, userID, m.now())
}
