package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"merit_system/internal/domain"
	"merit_system/internal/store"
	"merit_system/internal/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// GetWalletBalance returns the balance of a wallet; a wallet that was never
// touched reports the community's starting balance.
func (e *Engine) GetWalletBalance(ctx context.Context, userID, communityID string) (int64, error) {
	var balance int64
	if e.rdb != nil {
		found, err := utils.GetCache(ctx, e.rdb, utils.WalletKey(communityID, userID), &balance)
		if err == nil && found {
			return balance, nil
		}
	}
	balance, err := e.wallets(e.store).GetBalance(ctx, userID, communityID)
	if err != nil {
		return 0, err
	}
	if e.rdb != nil {
		_ = utils.SetCache(ctx, e.rdb, utils.WalletKey(communityID, userID), balance, e.cacheTTL)
	}
	return balance, nil
}

// GetQuotaStatus returns today's quota of a user.
func (e *Engine) GetQuotaStatus(ctx context.Context, userID, communityID string) (domain.QuotaStatus, error) {
	return e.quotas(e.store).GetRemaining(ctx, userID, communityID)
}

// ResetDailyQuota zeroes today's usage for userID, or for every user of the
// community when userID is empty. Resetting twice in one period is the same as once.
func (e *Engine) ResetDailyQuota(ctx context.Context, actorID, communityID, userID string) (int64, error) {
	if communityID == "" {
		return 0, domain.Invalid("community is required")
	}
	details, err := json.Marshal(map[string]string{"user_id": userID})
	if err != nil {
		return 0, err
	}
	var n int64
	err = e.store.WithinTx(ctx, func(tx store.Store) error {
		if n, err = e.quotas(tx).ResetNow(ctx, communityID, userID); err != nil {
			return err
		}
		return tx.AppendEntry(ctx, &domain.LedgerEntry{
			ID:          domain.NewLedgerEntryID(),
			Kind:        domain.EntryQuotaReset,
			ActorID:     actorID,
			CommunityID: communityID,
			Details:     datatypes.JSON(details),
			CreatedAt:   e.now().UnixMilli(),
		})
	})
	if err != nil {
		return 0, err
	}
	e.log.WithFields(logrus.Fields{
		"actor_id":     actorID,
		"community_id": communityID,
		"user_id":      userID,
		"reset":        n,
	}).Info("daily quota reset")
	return n, nil
}

// ListLedger pages through a community's ledger, newest first.
func (e *Engine) ListLedger(ctx context.Context, communityID string, f domain.LedgerFilter) ([]domain.LedgerEntry, int64, error) {
	return e.store.ListEntries(ctx, communityID, f)
}

// SaveCommunity stores the economic policy of a community.
func (e *Engine) SaveCommunity(ctx context.Context, c domain.Community) error {
	if c.ID == "" {
		return domain.Invalid("community is required")
	}
	if c.DailyAllowance < 0 || c.StartingBalance < 0 {
		return domain.Invalid("allowance and starting balance cannot be negative")
	}
	if c.VotingMode == "" {
		c.VotingMode = domain.ModeQuotaAndWallet
	}
	if !c.VotingMode.Valid() {
		return domain.Invalid("unknown voting mode %q", c.VotingMode)
	}
	return e.store.SaveCommunity(ctx, &c)
}

// SaveMembership assigns a user's role (and team) in a community.
func (e *Engine) SaveMembership(ctx context.Context, m domain.Membership) error {
	if m.UserID == "" || m.CommunityID == "" {
		return domain.Invalid("user and community are required")
	}
	if !m.Role.Valid() {
		return domain.Invalid("unknown role %q", m.Role)
	}
	return e.store.SaveMembership(ctx, &m)
}

// RegisterEntity records the ownership facts of a publication, vote or poll
// supplied by the content service. The investor share of a publication is
// fixed once anyone has invested in it.
func (e *Engine) RegisterEntity(ctx context.Context, ent domain.Entity) error {
	if !ent.Type.Valid() || ent.ID == "" || ent.CommunityID == "" || ent.AuthorID == "" {
		return domain.Invalid("entity needs a type, id, community and author")
	}
	if ent.InvestorSharePercent < 0 || ent.InvestorSharePercent > 100 {
		return domain.Invalid("investor share %d%% out of range", ent.InvestorSharePercent)
	}
	return e.store.WithinTx(ctx, func(tx store.Store) error {
		existing, err := tx.GetEntity(ctx, ent.Type, ent.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return err
		case existing.CommunityID != ent.CommunityID:
			return fmt.Errorf("%s %s is registered in another community: %w", ent.Type, ent.ID, domain.ErrForbidden)
		case existing.InvestorSharePercent != ent.InvestorSharePercent:
			invs, err := tx.ListInvestments(ctx, ent.ID)
			if err != nil {
				return err
			}
			if len(invs) > 0 {
				return domain.Invalid("investor share of %s is fixed once investments exist", ent.ID)
			}
		}
		return tx.SaveEntity(ctx, &ent)
	})
}
