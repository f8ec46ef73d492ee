// Package memory is an in-process Store. Transactions run serially on a
// private copy of the state which replaces the shared state on commit.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"merit_system/internal/domain"
	"merit_system/internal/store"
)

type state struct {
	communities map[string]domain.Community
	members     map[string]domain.Membership
	wallets     map[string]domain.Wallet
	quotas      map[string]domain.Quota
	rules       map[string]domain.PermissionRule
	entities    map[string]domain.Entity
	investments map[string]map[string]domain.Investment // publication -> investor -> investment
	entries     []domain.LedgerEntry
	keys        map[string]int // idempotency key -> index into entries
}

func newState() *state {
	return &state{
		communities: make(map[string]domain.Community),
		members:     make(map[string]domain.Membership),
		wallets:     make(map[string]domain.Wallet),
		quotas:      make(map[string]domain.Quota),
		rules:       make(map[string]domain.PermissionRule),
		entities:    make(map[string]domain.Entity),
		investments: make(map[string]map[string]domain.Investment),
		keys:        make(map[string]int),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.communities {
		c.communities[k] = v
	}
	for k, v := range s.members {
		c.members[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.quotas {
		c.quotas[k] = v
	}
	for k, v := range s.rules {
		c.rules[k] = v
	}
	for k, v := range s.entities {
		c.entities[k] = v
	}
	for pub, byInvestor := range s.investments {
		m := make(map[string]domain.Investment, len(byInvestor))
		for k, v := range byInvestor {
			m[k] = v
		}
		c.investments[pub] = m
	}
	c.entries = append(c.entries, s.entries...)
	for k, v := range s.keys {
		c.keys[k] = v
	}
	return c
}

// Store is safe for concurrent use.
type Store struct {
	mu    *sync.Mutex
	state *state
	inTx  bool
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{mu: &sync.Mutex{}, state: newState()}
}

func key(parts ...string) string {
	k := ""
	for i, p := range parts {
		if i > 0 {
			k += "\x00"
		}
		k += p
	}
	return k
}

// lock is a no-op inside a transaction, which already holds the mutex.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.state.clone()
	if err := fn(&Store{mu: s.mu, state: work, inTx: true}); err != nil {
		return err
	}
	// A caller that gave up mid-transaction gets nothing committed.
	if err := ctx.Err(); err != nil {
		return err
	}
	*s.state = *work
	return nil
}

// Communities and memberships

func (s *Store) GetCommunity(_ context.Context, communityID string) (*domain.Community, error) {
	defer s.lock()()
	c, ok := s.state.communities[communityID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (s *Store) SaveCommunity(_ context.Context, c *domain.Community) error {
	defer s.lock()()
	s.state.communities[c.ID] = *c
	return nil
}

func (s *Store) GetMembership(_ context.Context, userID, communityID string) (*domain.Membership, error) {
	defer s.lock()()
	m, ok := s.state.members[key(userID, communityID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &m, nil
}

func (s *Store) SaveMembership(_ context.Context, m *domain.Membership) error {
	defer s.lock()()
	s.state.members[key(m.UserID, m.CommunityID)] = *m
	return nil
}

// Wallets

func (s *Store) GetWallet(_ context.Context, userID, communityID string) (*domain.Wallet, error) {
	defer s.lock()()
	w, ok := s.state.wallets[key(userID, communityID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &w, nil
}

func (s *Store) EnsureWallet(_ context.Context, userID, communityID string, starting int64) (*domain.Wallet, error) {
	defer s.lock()()
	k := key(userID, communityID)
	w, ok := s.state.wallets[k]
	if !ok {
		w = domain.Wallet{
			ID:          uint(len(s.state.wallets) + 1),
			UserID:      userID,
			CommunityID: communityID,
			Balance:     starting,
			UpdatedAt:   time.Now(),
		}
		s.state.wallets[k] = w
	}
	return &w, nil
}

func (s *Store) DebitWallet(_ context.Context, userID, communityID string, amount int64) (bool, error) {
	defer s.lock()()
	k := key(userID, communityID)
	w, ok := s.state.wallets[k]
	if !ok {
		return false, domain.ErrNotFound
	}
	if amount > w.Balance {
		return false, nil
	}
	w.Balance -= amount
	w.Version++
	w.UpdatedAt = time.Now()
	s.state.wallets[k] = w
	return true, nil
}

func (s *Store) CreditWallet(_ context.Context, userID, communityID string, amount int64) (bool, error) {
	defer s.lock()()
	k := key(userID, communityID)
	w, ok := s.state.wallets[k]
	if !ok {
		return false, domain.ErrNotFound
	}
	if w.Balance > math.MaxInt64-amount {
		return false, nil
	}
	w.Balance += amount
	w.Version++
	w.UpdatedAt = time.Now()
	s.state.wallets[k] = w
	return true, nil
}

// Quotas

func (s *Store) GetQuota(_ context.Context, userID, communityID string) (*domain.Quota, error) {
	defer s.lock()()
	q, ok := s.state.quotas[key(userID, communityID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &q, nil
}

func (s *Store) EnsureQuota(_ context.Context, userID, communityID string, allowance int64, now time.Time) (*domain.Quota, error) {
	defer s.lock()()
	k := key(userID, communityID)
	q, ok := s.state.quotas[k]
	if !ok {
		q = domain.Quota{
			ID:             uint(len(s.state.quotas) + 1),
			UserID:         userID,
			CommunityID:    communityID,
			DailyAllowance: allowance,
			LastResetAt:    now,
		}
		s.state.quotas[k] = q
	}
	return &q, nil
}

func (s *Store) RollQuota(_ context.Context, userID, communityID string, allowance int64, periodStart, now time.Time) (bool, error) {
	defer s.lock()()
	k := key(userID, communityID)
	q, ok := s.state.quotas[k]
	if !ok {
		return false, domain.ErrNotFound
	}
	if !q.LastResetAt.Before(periodStart) {
		return false, nil
	}
	q.UsedToday = 0
	q.DailyAllowance = allowance
	q.LastResetAt = now
	q.Version++
	s.state.quotas[k] = q
	return true, nil
}

func (s *Store) DebitQuota(_ context.Context, userID, communityID string, amount int64) (bool, error) {
	defer s.lock()()
	k := key(userID, communityID)
	q, ok := s.state.quotas[k]
	if !ok {
		return false, domain.ErrNotFound
	}
	if amount > q.DailyAllowance-q.UsedToday {
		return false, nil
	}
	q.UsedToday += amount
	q.Version++
	s.state.quotas[k] = q
	return true, nil
}

func (s *Store) ResetQuotas(_ context.Context, communityID, userID string, now time.Time) (int64, error) {
	defer s.lock()()
	var n int64
	for k, q := range s.state.quotas {
		if q.CommunityID != communityID || (userID != "" && q.UserID != userID) {
			continue
		}
		q.UsedToday = 0
		if now.After(q.LastResetAt) {
			q.LastResetAt = now
		}
		q.Version++
		s.state.quotas[k] = q
		n++
	}
	return n, nil
}

// Permission rules

func (s *Store) ListRules(_ context.Context, communityID string) ([]domain.PermissionRule, error) {
	defer s.lock()()
	out := make([]domain.PermissionRule, 0)
	for _, r := range s.state.rules {
		if r.CommunityID == communityID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		return out[i].Action < out[j].Action
	})
	return out, nil
}

func (s *Store) SaveRule(_ context.Context, r *domain.PermissionRule) error {
	defer s.lock()()
	k := key(r.CommunityID, string(r.Role), string(r.Action))
	saved := *r
	if prev, ok := s.state.rules[k]; ok {
		saved.ID = prev.ID
	} else {
		saved.ID = uint(len(s.state.rules) + 1)
	}
	saved.Conditions = make(map[string]any, len(r.Conditions))
	for name, v := range r.Conditions {
		saved.Conditions[name] = v
	}
	s.state.rules[k] = saved
	r.ID = saved.ID
	return nil
}

// Entities and investments

func (s *Store) GetEntity(_ context.Context, t domain.TargetType, entityID string) (*domain.Entity, error) {
	defer s.lock()()
	e, ok := s.state.entities[key(string(t), entityID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &e, nil
}

func (s *Store) SaveEntity(_ context.Context, e *domain.Entity) error {
	defer s.lock()()
	k := key(string(e.Type), e.ID)
	saved := *e
	if prev, ok := s.state.entities[k]; ok {
		saved.Balance = prev.Balance
	}
	s.state.entities[k] = saved
	return nil
}

func (s *Store) AdjustEntityBalance(_ context.Context, t domain.TargetType, entityID string, delta int64) error {
	defer s.lock()()
	k := key(string(t), entityID)
	e, ok := s.state.entities[k]
	if !ok {
		return domain.ErrNotFound
	}
	if (delta > 0 && e.Balance > math.MaxInt64-delta) || (delta < 0 && e.Balance < math.MinInt64-delta) {
		return domain.ErrOverflow
	}
	e.Balance += delta
	s.state.entities[k] = e
	return nil
}

func (s *Store) DrawEntityBalance(_ context.Context, t domain.TargetType, entityID string, amount int64) (bool, error) {
	defer s.lock()()
	k := key(string(t), entityID)
	e, ok := s.state.entities[k]
	if !ok {
		return false, domain.ErrNotFound
	}
	if amount > e.Balance {
		return false, nil
	}
	e.Balance -= amount
	s.state.entities[k] = e
	return true, nil
}

func (s *Store) ListInvestments(_ context.Context, publicationID string) ([]domain.Investment, error) {
	defer s.lock()()
	out := make([]domain.Investment, 0, len(s.state.investments[publicationID]))
	for _, inv := range s.state.investments[publicationID] {
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvestorID < out[j].InvestorID })
	return out, nil
}

func (s *Store) AddInvestment(_ context.Context, publicationID, investorID string, amount int64, now time.Time) error {
	defer s.lock()()
	byInvestor, ok := s.state.investments[publicationID]
	if !ok {
		byInvestor = make(map[string]domain.Investment)
		s.state.investments[publicationID] = byInvestor
	}
	inv, ok := byInvestor[investorID]
	if !ok {
		inv = domain.Investment{PublicationID: publicationID, InvestorID: investorID, CreatedAt: now}
	}
	inv.Amount += amount
	inv.UpdatedAt = now
	byInvestor[investorID] = inv
	return nil
}

// Ledger

func (s *Store) AppendEntry(_ context.Context, e *domain.LedgerEntry) error {
	defer s.lock()()
	if e.IdempotencyKey != nil {
		if _, dup := s.state.keys[*e.IdempotencyKey]; dup {
			return domain.ErrDuplicate
		}
		s.state.keys[*e.IdempotencyKey] = len(s.state.entries)
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}
	s.state.entries = append(s.state.entries, *e)
	return nil
}

func (s *Store) GetEntryByKey(_ context.Context, k string) (*domain.LedgerEntry, error) {
	defer s.lock()()
	i, ok := s.state.keys[k]
	if !ok {
		return nil, domain.ErrNotFound
	}
	e := s.state.entries[i]
	return &e, nil
}

func (s *Store) ListEntries(_ context.Context, communityID string, f domain.LedgerFilter) ([]domain.LedgerEntry, int64, error) {
	defer s.lock()()
	matched := make([]domain.LedgerEntry, 0)
	// Newest first.
	for i := len(s.state.entries) - 1; i >= 0; i-- {
		e := s.state.entries[i]
		if e.CommunityID != communityID {
			continue
		}
		if f.UserID != "" && e.ActorID != f.UserID {
			continue
		}
		if f.Kind != "" && e.Kind != f.Kind {
			continue
		}
		matched = append(matched, e)
	}
	total := int64(len(matched))
	_, size, offset := store.Page(f)
	if offset >= len(matched) {
		return []domain.LedgerEntry{}, total, nil
	}
	end := offset + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}
