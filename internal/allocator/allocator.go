// Package allocator splits a requested amount between a user's daily quota
// and wallet. It works on a snapshot and never touches storage.
package allocator

import (
	"math"

	"merit_system/internal/domain"
)

// Allocate decides how much of req comes from quota and how much from the wallet.
//
// Downvotes are paid from the wallet only. Upvotes and poll casts follow the
// voting mode; quota-and-wallet spends quota first. The returned amounts always
// sum to |req.RequestedAmount|.
func Allocate(req domain.AllocationRequest, quotaRemaining, walletBalance int64) (domain.AllocationResult, error) {
	if req.RequestedAmount == 0 {
		return domain.AllocationResult{}, nil
	}
	if req.RequestedAmount == math.MinInt64 {
		return domain.AllocationResult{}, domain.Invalid("amount %d out of range", req.RequestedAmount)
	}
	quotaRemaining = max(quotaRemaining, 0)
	walletBalance = max(walletBalance, 0)
	amount := req.Amount()

	if req.IsDownvote() {
		if amount > walletBalance {
			return domain.AllocationResult{}, domain.ErrInsufficientBalance
		}
		return domain.AllocationResult{WalletAmount: amount}, nil
	}

	mode := req.VotingMode
	if mode == "" {
		mode = domain.ModeQuotaAndWallet
	}
	switch mode {
	case domain.ModeWalletOnly:
		if amount > walletBalance {
			return domain.AllocationResult{}, domain.ErrInsufficientBalance
		}
		return domain.AllocationResult{WalletAmount: amount}, nil
	case domain.ModeQuotaOnly:
		if amount > quotaRemaining {
			return domain.AllocationResult{}, domain.ErrInsufficientQuota
		}
		return domain.AllocationResult{QuotaAmount: amount}, nil
	case domain.ModeQuotaAndWallet:
		fromQuota := min(amount, quotaRemaining)
		fromWallet := amount - fromQuota
		if fromWallet > walletBalance {
			return domain.AllocationResult{}, domain.ErrInsufficientBalance
		}
		return domain.AllocationResult{QuotaAmount: fromQuota, WalletAmount: fromWallet}, nil
	default:
		return domain.AllocationResult{}, domain.Invalid("unknown voting mode %q", mode)
	}
}

// Validate checks that res is a split Allocate could have produced for req,
// so a result handed back by a caller cannot move more or different value.
func Validate(req domain.AllocationRequest, res domain.AllocationResult) error {
	if req.RequestedAmount == math.MinInt64 {
		return domain.Invalid("amount %d out of range", req.RequestedAmount)
	}
	if res.QuotaAmount > req.Amount() || res.WalletAmount > req.Amount() {
		return domain.Invalid("allocation exceeds %d", req.Amount())
	}
	if res.QuotaAmount < 0 || res.WalletAmount < 0 {
		return domain.Invalid("negative allocation")
	}
	if res.Total() != req.Amount() {
		return domain.Invalid("allocation sums to %d, want %d", res.Total(), req.Amount())
	}
	if req.IsDownvote() && res.QuotaAmount != 0 {
		return domain.Invalid("downvotes cannot spend quota")
	}
	switch req.VotingMode {
	case domain.ModeWalletOnly:
		if res.QuotaAmount != 0 {
			return domain.Invalid("wallet-only allocation spends quota")
		}
	case domain.ModeQuotaOnly:
		if !req.IsDownvote() && res.WalletAmount != 0 {
			return domain.Invalid("quota-only allocation spends wallet")
		}
	}
	return nil
}
