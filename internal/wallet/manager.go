// Package wallet owns the persistent balance of each (user, community).
package wallet

import (
	"context"
	"errors"

	"merit_system/internal/domain"
	"merit_system/internal/store"
)

// Manager debits and credits wallets through a Store. Wallets are created
// lazily with the community's starting balance.
type Manager struct {
	store    store.Store
	defaults domain.Community
}

// NewManager returns a Manager; defaults applies to unconfigured communities.
func NewManager(s store.Store, defaults domain.Community) *Manager {
	return &Manager{store: s, defaults: defaults}
}

// WithStore returns a copy bound to s, typically an open transaction.
func (m *Manager) WithStore(s store.Store) *Manager {
	c := *m
	c.store = s
	return &c
}

// GetBalance returns the balance, or the starting balance for a wallet that
// does not exist yet.
func (m *Manager) GetBalance(ctx context.Context, userID, communityID string) (int64, error) {
	w, err := m.store.GetWallet(ctx, userID, communityID)
	if errors.Is(err, domain.ErrNotFound) {
		settings, err := store.CommunitySettings(ctx, m.store, communityID, m.defaults)
		if err != nil {
			return 0, err
		}
		return settings.StartingBalance, nil
	}
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

func (m *Manager) ensure(ctx context.Context, userID, communityID string) error {
	settings, err := store.CommunitySettings(ctx, m.store, communityID, m.defaults)
	if err != nil {
		return err
	}
	_, err = m.store.EnsureWallet(ctx, userID, communityID, settings.StartingBalance)
	return err
}

// TryDebit removes amount from the wallet. It returns applied=false with
// ErrInsufficientBalance when the balance is too low at apply time.
func (m *Manager) TryDebit(ctx context.Context, userID, communityID string, amount int64) (bool, int64, error) {
	if amount < 0 {
		return false, 0, domain.Invalid("negative wallet debit %d", amount)
	}
	if err := m.ensure(ctx, userID, communityID); err != nil {
		return false, 0, err
	}
	applied, err := m.store.DebitWallet(ctx, userID, communityID, amount)
	if err != nil {
		return false, 0, err
	}
	w, err := m.store.GetWallet(ctx, userID, communityID)
	if err != nil {
		return false, 0, err
	}
	if !applied {
		return false, w.Balance, domain.ErrInsufficientBalance
	}
	return true, w.Balance, nil
}

// Credit adds amount to the wallet and returns the new balance.
func (m *Manager) Credit(ctx context.Context, userID, communityID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, domain.Invalid("negative wallet credit %d", amount)
	}
	if err := m.ensure(ctx, userID, communityID); err != nil {
		return 0, err
	}
	applied, err := m.store.CreditWallet(ctx, userID, communityID, amount)
	if err != nil {
		return 0, err
	}
	if !applied {
		return 0, domain.ErrOverflow
	}
	w, err := m.store.GetWallet(ctx, userID, communityID)
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}
