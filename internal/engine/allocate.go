package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"merit_system/internal/allocator"
	"merit_system/internal/domain"
	"merit_system/internal/store"

	"github.com/sirupsen/logrus"
)

// Allocate checks that role may perform action on the request's target and
// returns the quota/wallet split against a current snapshot. Nothing is written.
// An empty action is derived from the target type.
func (e *Engine) Allocate(ctx context.Context, actorID, communityID string, role domain.Role, action domain.Action, req domain.AllocationRequest) (domain.AllocationResult, error) {
	req, err := e.normalize(ctx, actorID, communityID, req)
	if err != nil {
		return domain.AllocationResult{}, err
	}
	if action != "" && action != req.Action() {
		return domain.AllocationResult{}, domain.Invalid("action %q does not match %s target", action, req.TargetType)
	}
	target, err := e.target(ctx, req.TargetType, req.TargetID, communityID)
	if err != nil {
		return domain.AllocationResult{}, err
	}
	if err := e.authorize(ctx, actorID, communityID, role, req.Action(), target); err != nil {
		return domain.AllocationResult{}, err
	}
	return e.snapshot(ctx, req)
}

// ApplyAllocation commits res for req: quota and wallet debits, the target's
// balance and a ledger entry, all in one transaction. If the balances moved
// since res was computed it retries once from a fresh snapshot and then
// reports ErrConflict. A request whose idempotency key already committed
// returns the original entry without applying again.
func (e *Engine) ApplyAllocation(ctx context.Context, req domain.AllocationRequest, res domain.AllocationResult) (*domain.LedgerEntry, error) {
	req, err := e.normalize(ctx, req.UserID, req.CommunityID, req)
	if err != nil {
		return nil, err
	}
	if err := allocator.Validate(req, res); err != nil {
		return nil, err
	}
	if entry, err := e.replay(ctx, req.IdempotencyKey, domain.EntrySpend); entry != nil || err != nil {
		return entry, err
	}
	release, err := e.claim(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	defer release()

	fields := logrus.Fields{
		"actor_id":        req.UserID,
		"community_id":    req.CommunityID,
		"target_type":     req.TargetType,
		"target_id":       req.TargetID,
		"amount":          req.RequestedAmount,
		"voting_mode":     req.VotingMode,
		"idempotency_key": req.IdempotencyKey,
	}

	entry, err := e.apply(ctx, req, res)
	if retryable(err) {
		e.log.WithFields(fields).WithField("error", err.Error()).Warn("allocation lost a race, retrying from a fresh snapshot")
		fresh, snapErr := e.snapshot(ctx, req)
		if snapErr != nil {
			e.log.WithFields(fields).WithField("error", snapErr.Error()).Info("allocation rejected on retry")
			return nil, snapErr
		}
		entry, err = e.apply(ctx, req, fresh)
		if retryable(err) {
			e.log.WithFields(fields).Warn("allocation lost the retry")
			return nil, fmt.Errorf("%w: balances changed while applying", domain.ErrConflict)
		}
	}
	if err != nil {
		prior, err := e.committed(ctx, req.IdempotencyKey, domain.EntrySpend, err)
		if prior != nil {
			return prior, nil
		}
		e.log.WithFields(fields).WithField("error", err.Error()).Error("allocation failed")
		return nil, err
	}

	e.invalidateWallets(ctx, req.CommunityID, req.UserID)
	e.log.WithFields(fields).WithFields(logrus.Fields{
		"quota_amount":    entry.QuotaAmount,
		"wallet_amount":   entry.WalletAmount,
		"ledger_entry_id": entry.ID,
	}).Info("allocation committed")
	return entry, nil
}

// Spend is Allocate followed by ApplyAllocation, the path every vote and
// poll cast takes.
func (e *Engine) Spend(ctx context.Context, actorID, communityID string, role domain.Role, req domain.AllocationRequest) (*domain.LedgerEntry, error) {
	res, err := e.Allocate(ctx, actorID, communityID, role, "", req)
	if err != nil {
		return nil, err
	}
	req.UserID, req.CommunityID = actorID, communityID
	return e.ApplyAllocation(ctx, req, res)
}

// normalize fills defaults and rejects malformed requests.
func (e *Engine) normalize(ctx context.Context, actorID, communityID string, req domain.AllocationRequest) (domain.AllocationRequest, error) {
	if actorID == "" || communityID == "" {
		return req, domain.Invalid("actor and community are required")
	}
	if req.UserID == "" {
		req.UserID = actorID
	}
	if req.CommunityID == "" {
		req.CommunityID = communityID
	}
	if req.UserID != actorID || req.CommunityID != communityID {
		return req, domain.Invalid("request does not belong to the acting user and community")
	}
	if !req.TargetType.Valid() || req.TargetID == "" {
		return req, domain.Invalid("unknown target %q/%q", req.TargetType, req.TargetID)
	}
	if req.RequestedAmount == math.MinInt64 {
		return req, domain.Invalid("amount %d out of range", req.RequestedAmount)
	}
	if req.TargetType == domain.TargetPoll && req.RequestedAmount < 0 {
		return req, domain.Invalid("poll casts cannot be negative")
	}
	if req.RequestedAmount == 0 && (req.TargetType == domain.TargetPoll || strings.TrimSpace(req.Comment) == "") {
		return req, domain.Invalid("a zero amount is only allowed with a comment")
	}
	if req.VotingMode == "" {
		settings, err := e.settings(ctx, communityID)
		if err != nil {
			return req, err
		}
		req.VotingMode = settings.VotingMode
		if req.VotingMode == "" {
			req.VotingMode = domain.ModeQuotaAndWallet
		}
	}
	if !req.VotingMode.Valid() {
		return req, domain.Invalid("unknown voting mode %q", req.VotingMode)
	}
	return req, nil
}

// target loads an entity and checks it lives in communityID.
func (e *Engine) target(ctx context.Context, t domain.TargetType, entityID, communityID string) (*domain.Entity, error) {
	ent, err := e.store.GetEntity(ctx, t, entityID)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", t, entityID, err)
	}
	if ent.CommunityID != communityID {
		return nil, fmt.Errorf("%s %s: %w", t, entityID, domain.ErrNotFound)
	}
	return ent, nil
}

// snapshot computes a split against the current balances.
func (e *Engine) snapshot(ctx context.Context, req domain.AllocationRequest) (domain.AllocationResult, error) {
	status, err := e.quotas(e.store).GetRemaining(ctx, req.UserID, req.CommunityID)
	if err != nil {
		return domain.AllocationResult{}, err
	}
	balance, err := e.wallets(e.store).GetBalance(ctx, req.UserID, req.CommunityID)
	if err != nil {
		return domain.AllocationResult{}, err
	}
	return allocator.Allocate(req, status.Remaining, balance)
}

// errQuotaUnspent rejects a quota-and-wallet split that reaches into the
// wallet while quota remains.
var errQuotaUnspent = errors.New("wallet spent ahead of quota")

// retryable reports whether a fresh snapshot could turn err into a success.
func retryable(err error) bool {
	return domain.IsInsufficient(err) || errors.Is(err, errQuotaUnspent)
}

// apply writes one allocation atomically. Insufficient quota or balance at
// apply time rolls everything back.
func (e *Engine) apply(ctx context.Context, req domain.AllocationRequest, res domain.AllocationResult) (*domain.LedgerEntry, error) {
	entry := &domain.LedgerEntry{
		ID:              domain.NewLedgerEntryID(),
		IdempotencyKey:  keyPtr(req.IdempotencyKey),
		Kind:            domain.EntrySpend,
		ActorID:         req.UserID,
		CommunityID:     req.CommunityID,
		TargetType:      req.TargetType,
		TargetID:        req.TargetID,
		RequestedAmount: req.RequestedAmount,
		VotingMode:      req.VotingMode,
		QuotaAmount:     res.QuotaAmount,
		WalletAmount:    res.WalletAmount,
		CreatedAt:       e.now().UnixMilli(),
	}
	err := e.store.WithinTx(ctx, func(tx store.Store) error {
		quotas := e.quotas(tx)
		if res.QuotaAmount > 0 {
			if _, _, err := quotas.TryDebit(ctx, req.UserID, req.CommunityID, res.QuotaAmount); err != nil {
				return err
			}
		}
		if res.WalletAmount > 0 && req.VotingMode == domain.ModeQuotaAndWallet && !req.IsDownvote() {
			status, err := quotas.GetRemaining(ctx, req.UserID, req.CommunityID)
			if err != nil {
				return err
			}
			if status.Remaining > 0 {
				return fmt.Errorf("%w: %d quota left", errQuotaUnspent, status.Remaining)
			}
		}
		if res.WalletAmount > 0 {
			if _, _, err := e.wallets(tx).TryDebit(ctx, req.UserID, req.CommunityID, res.WalletAmount); err != nil {
				return err
			}
		}
		delta := req.Amount()
		if req.IsDownvote() {
			delta = -delta
		}
		if delta != 0 {
			if err := tx.AdjustEntityBalance(ctx, req.TargetType, req.TargetID, delta); err != nil {
				return err
			}
		}
		return tx.AppendEntry(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}
