package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"merit_system/internal/domain"
	"merit_system/internal/investment"
	"merit_system/internal/store"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// Withdraw moves amount of an entity's accumulated merit to its payee (the
// beneficiary, or else the author). The payee's wallet is credited with the
// gross amount, then the investors' share is redirected to their wallets.
// The draw, every credit and the ledger entry commit or roll back together.
func (e *Engine) Withdraw(ctx context.Context, entityType domain.TargetType, entityID, actorID, communityID string, amount int64, idempotencyKey string) (domain.WithdrawalSplit, *domain.LedgerEntry, error) {
	if amount <= 0 {
		return domain.WithdrawalSplit{}, nil, domain.Invalid("withdrawal amount must be positive")
	}
	if !entityType.Valid() || entityID == "" || actorID == "" {
		return domain.WithdrawalSplit{}, nil, domain.Invalid("unknown target %q/%q", entityType, entityID)
	}
	target, err := e.target(ctx, entityType, entityID, communityID)
	if err != nil {
		return domain.WithdrawalSplit{}, nil, err
	}
	if !target.OwnedBy(actorID) {
		return domain.WithdrawalSplit{}, nil, fmt.Errorf("%w: only the author or beneficiary may withdraw", domain.ErrForbidden)
	}
	role, err := e.ResolveRole(ctx, actorID, communityID)
	if err != nil {
		return domain.WithdrawalSplit{}, nil, err
	}
	if err := e.authorize(ctx, actorID, communityID, role, domain.ActionWithdraw, target); err != nil {
		return domain.WithdrawalSplit{}, nil, err
	}
	if prior, err := e.replay(ctx, idempotencyKey, domain.EntryWithdraw); prior != nil || err != nil {
		if err != nil {
			return domain.WithdrawalSplit{}, nil, err
		}
		var split domain.WithdrawalSplit
		if err := json.Unmarshal(prior.Details, &split); err != nil {
			return domain.WithdrawalSplit{}, nil, err
		}
		return split, prior, nil
	}
	release, err := e.claim(ctx, idempotencyKey)
	if err != nil {
		return domain.WithdrawalSplit{}, nil, err
	}
	defer release()

	entry := &domain.LedgerEntry{
		ID:              domain.NewLedgerEntryID(),
		IdempotencyKey:  keyPtr(idempotencyKey),
		Kind:            domain.EntryWithdraw,
		ActorID:         actorID,
		CommunityID:     communityID,
		TargetType:      entityType,
		TargetID:        entityID,
		RequestedAmount: amount,
		WalletAmount:    amount,
		CreatedAt:       e.now().UnixMilli(),
	}
	var split domain.WithdrawalSplit
	var payee string
	err = e.store.WithinTx(ctx, func(tx store.Store) error {
		current, err := tx.GetEntity(ctx, entityType, entityID)
		if err != nil {
			return err
		}
		drawn, err := tx.DrawEntityBalance(ctx, entityType, entityID, amount)
		if err != nil {
			return err
		}
		if !drawn {
			return fmt.Errorf("%w: %s %s holds less than %d", domain.ErrInsufficientBalance, entityType, entityID, amount)
		}

		var invs []domain.Investment
		if entityType == domain.TargetPublication {
			if invs, err = tx.ListInvestments(ctx, entityID); err != nil {
				return err
			}
		}
		if split, err = investment.Split(amount, current.InvestorSharePercent, invs); err != nil {
			return err
		}

		wallets := e.wallets(tx)
		payee = current.Payee()
		if _, err := wallets.Credit(ctx, payee, communityID, amount); err != nil {
			return err
		}
		if split.InvestorTotal > 0 {
			if _, _, err := wallets.TryDebit(ctx, payee, communityID, split.InvestorTotal); err != nil {
				return err
			}
			for _, p := range split.PerInvestor {
				if p.Amount == 0 {
					continue
				}
				if _, err := wallets.Credit(ctx, p.InvestorID, communityID, p.Amount); err != nil {
					return err
				}
			}
		}

		details, err := json.Marshal(split)
		if err != nil {
			return err
		}
		entry.Details = datatypes.JSON(details)
		return tx.AppendEntry(ctx, entry)
	})
	fields := logrus.Fields{
		"actor_id":        actorID,
		"community_id":    communityID,
		"target_type":     entityType,
		"target_id":       entityID,
		"amount":          amount,
		"idempotency_key": idempotencyKey,
	}
	if err != nil {
		var prior *domain.LedgerEntry
		if prior, err = e.committed(ctx, idempotencyKey, domain.EntryWithdraw, err); prior != nil {
			var replayed domain.WithdrawalSplit
			if err = json.Unmarshal(prior.Details, &replayed); err == nil {
				return replayed, prior, nil
			}
		}
		e.log.WithFields(fields).WithField("error", err.Error()).Error("withdrawal failed")
		return domain.WithdrawalSplit{}, nil, err
	}

	paid := []string{payee}
	for _, p := range split.PerInvestor {
		paid = append(paid, p.InvestorID)
	}
	e.invalidateWallets(ctx, communityID, paid...)
	e.log.WithFields(fields).WithFields(logrus.Fields{
		"payee_id":        payee,
		"author_amount":   split.AuthorAmount,
		"investor_total":  split.InvestorTotal,
		"investors":       len(split.PerInvestor),
		"ledger_entry_id": entry.ID,
	}).Info("withdrawal committed")
	return split, entry, nil
}

// Invest moves amount from the actor's wallet into a publication and records
// the actor as an investor entitled to a share of future withdrawals.
func (e *Engine) Invest(ctx context.Context, actorID, communityID, publicationID string, amount int64, idempotencyKey string) (*domain.LedgerEntry, error) {
	if amount <= 0 {
		return nil, domain.Invalid("investment amount must be positive")
	}
	if actorID == "" {
		return nil, domain.Invalid("actor is required")
	}
	target, err := e.target(ctx, domain.TargetPublication, publicationID, communityID)
	if err != nil {
		return nil, err
	}
	if target.OwnedBy(actorID) {
		return nil, fmt.Errorf("%w: authors cannot invest in their own publication", domain.ErrForbidden)
	}
	if target.InvestorSharePercent == 0 {
		return nil, domain.Invalid("publication %s does not accept investments", publicationID)
	}
	role, err := e.ResolveRole(ctx, actorID, communityID)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(ctx, actorID, communityID, role, domain.ActionInvest, target); err != nil {
		return nil, err
	}
	if prior, err := e.replay(ctx, idempotencyKey, domain.EntryInvest); prior != nil || err != nil {
		return prior, err
	}
	release, err := e.claim(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}
	defer release()

	entry := &domain.LedgerEntry{
		ID:              domain.NewLedgerEntryID(),
		IdempotencyKey:  keyPtr(idempotencyKey),
		Kind:            domain.EntryInvest,
		ActorID:         actorID,
		CommunityID:     communityID,
		TargetType:      domain.TargetPublication,
		TargetID:        publicationID,
		RequestedAmount: amount,
		WalletAmount:    amount,
		CreatedAt:       e.now().UnixMilli(),
	}
	err = e.store.WithinTx(ctx, func(tx store.Store) error {
		if _, _, err := e.wallets(tx).TryDebit(ctx, actorID, communityID, amount); err != nil {
			return err
		}
		if err := tx.AddInvestment(ctx, publicationID, actorID, amount, e.now()); err != nil {
			return err
		}
		if err := tx.AdjustEntityBalance(ctx, domain.TargetPublication, publicationID, amount); err != nil {
			return err
		}
		return tx.AppendEntry(ctx, entry)
	})
	fields := logrus.Fields{
		"actor_id":       actorID,
		"community_id":   communityID,
		"publication_id": publicationID,
		"amount":         amount,
	}
	if err != nil {
		prior, err := e.committed(ctx, idempotencyKey, domain.EntryInvest, err)
		if prior != nil {
			return prior, nil
		}
		e.log.WithFields(fields).WithField("error", err.Error()).Warn("investment failed")
		return nil, err
	}
	e.invalidateWallets(ctx, communityID, actorID)
	e.log.WithFields(fields).WithField("ledger_entry_id", entry.ID).Info("investment committed")
	return entry, nil
}
