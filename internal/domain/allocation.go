package domain

// TargetType is the kind of entity value moves into or out of.
type TargetType string

const (
	TargetPublication TargetType = "publication"
	TargetVote        TargetType = "vote"
	TargetPoll        TargetType = "poll"
)

// Valid reports whether t is a known target type.
func (t TargetType) Valid() bool {
	return t == TargetPublication || t == TargetVote || t == TargetPoll
}

// VotingMode decides which sources an upvote or cast may draw from.
type VotingMode string

const (
	ModeQuotaAndWallet VotingMode = "quota-and-wallet"
	ModeQuotaOnly      VotingMode = "quota-only"
	ModeWalletOnly     VotingMode = "wallet-only"
)

// Valid reports whether m is a known voting mode.
func (m VotingMode) Valid() bool {
	return m == ModeQuotaAndWallet || m == ModeQuotaOnly || m == ModeWalletOnly
}

// AllocationRequest asks to move RequestedAmount into a target.
// For votes the sign encodes direction: positive is up, negative is down.
type AllocationRequest struct {
	TargetType      TargetType `json:"target_type"`
	TargetID        string     `json:"target_id"`
	UserID          string     `json:"user_id"`
	CommunityID     string     `json:"community_id"`
	RequestedAmount int64      `json:"requested_amount"`
	VotingMode      VotingMode `json:"voting_mode,omitempty"`
	Comment         string     `json:"comment,omitempty"`
	IdempotencyKey  string     `json:"idempotency_key,omitempty"`
}

// IsDownvote reports whether the request moves value against the target.
func (r AllocationRequest) IsDownvote() bool {
	return r.RequestedAmount < 0
}

// Amount returns |RequestedAmount|.
func (r AllocationRequest) Amount() int64 {
	if r.RequestedAmount < 0 {
		return -r.RequestedAmount
	}
	return r.RequestedAmount
}

// Action returns the permission action the request needs.
func (r AllocationRequest) Action() Action {
	if r.TargetType == TargetPoll {
		return ActionPollCast
	}
	return ActionVote
}

// AllocationResult is the split of a request between quota and wallet.
type AllocationResult struct {
	QuotaAmount  int64 `json:"quota_amount"`
	WalletAmount int64 `json:"wallet_amount"`
}

// Total returns QuotaAmount + WalletAmount.
func (r AllocationResult) Total() int64 {
	return r.QuotaAmount + r.WalletAmount
}
