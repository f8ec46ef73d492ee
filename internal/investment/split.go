// Package investment divides withdrawals between a publication's author and
// its investors.
package investment

import (
	"github.com/shopspring/decimal"

	"merit_system/internal/domain"
)

// Split divides withdrawnAmount: floor(withdrawnAmount * sharePercent / 100)
// goes to investors in proportion to their principal and the author keeps the
// rest. Each investor's share is floored; the rounding remainder goes to the
// investment with the largest principal, ties broken by the lowest investor ID.
//
// With no investments the author keeps everything, so
// sum(PerInvestor) == InvestorTotal and InvestorTotal + AuthorAmount ==
// withdrawnAmount always hold.
func Split(withdrawnAmount int64, sharePercent int, investments []domain.Investment) (domain.WithdrawalSplit, error) {
	if withdrawnAmount < 0 {
		return domain.WithdrawalSplit{}, domain.Invalid("negative withdrawal %d", withdrawnAmount)
	}
	if sharePercent < 0 || sharePercent > 100 {
		return domain.WithdrawalSplit{}, domain.Invalid("investor share %d%% out of range", sharePercent)
	}
	principal := decimal.Zero
	for _, inv := range investments {
		if inv.Amount <= 0 {
			return domain.WithdrawalSplit{}, domain.Invalid("investment by %s has non-positive amount", inv.InvestorID)
		}
		principal = principal.Add(decimal.NewFromInt(inv.Amount))
	}

	split := domain.WithdrawalSplit{WithdrawnAmount: withdrawnAmount, PerInvestor: []domain.Payout{}}
	if len(investments) > 0 {
		split.InvestorTotal = floorDiv(decimal.NewFromInt(withdrawnAmount).Mul(decimal.NewFromInt(int64(sharePercent))), decimal.NewFromInt(100))
	}
	split.AuthorAmount = withdrawnAmount - split.InvestorTotal
	if split.InvestorTotal == 0 {
		return split, nil
	}

	pool := decimal.NewFromInt(split.InvestorTotal)
	var assigned int64
	largest := 0
	for i, inv := range investments {
		share := floorDiv(pool.Mul(decimal.NewFromInt(inv.Amount)), principal)
		split.PerInvestor = append(split.PerInvestor, domain.Payout{InvestorID: inv.InvestorID, Amount: share})
		assigned += share
		if inv.Amount > investments[largest].Amount ||
			(inv.Amount == investments[largest].Amount && inv.InvestorID < investments[largest].InvestorID) {
			largest = i
		}
	}
	split.PerInvestor[largest].Amount += split.InvestorTotal - assigned
	return split, nil
}

// floorDiv returns floor(n / d) for non-negative n and positive d.
func floorDiv(n, d decimal.Decimal) int64 {
	q, _ := n.QuoRem(d, 0)
	return q.IntPart()
}
