// Package engine is the allocation transaction coordinator. It gates every
// value movement through the permission rules, splits spends between quota
// and wallet, applies them atomically and records an append-only ledger entry.
package engine

import (
	"context"
	"errors"
	"time"

	"merit_system/internal/domain"
	"merit_system/internal/quota"
	"merit_system/internal/store"
	"merit_system/internal/utils"
	"merit_system/internal/wallet"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Engine is safe for concurrent use. It holds no locks of its own; every
// record is made consistent by the store's conditional updates and transactions.
type Engine struct {
	store    store.Store
	rdb      *redis.Client // optional read cache and idempotency claims
	log      logrus.FieldLogger
	defaults domain.Community
	loc      *time.Location
	now      func() time.Time
	cacheTTL time.Duration
	claimTTL time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithRedis enables the balance/rules cache and in-flight idempotency claims.
func WithRedis(rdb *redis.Client) Option {
	return func(e *Engine) { e.rdb = rdb }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

// WithDefaults sets the policy of communities that were never configured.
func WithDefaults(c domain.Community) Option {
	return func(e *Engine) { e.defaults = c }
}

// WithLocation sets the time zone whose midnight starts a quota period.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCacheTTL sets how long balances and rules stay cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.cacheTTL = ttl }
}

// WithClaimTTL sets how long an in-flight idempotency claim is held.
func WithClaimTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.claimTTL = ttl }
}

// New returns an Engine over s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		log:      logrus.StandardLogger(),
		defaults: domain.Community{VotingMode: domain.ModeQuotaAndWallet},
		loc:      time.UTC,
		now:      time.Now,
		cacheTTL: 60 * time.Second,
		claimTTL: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) quotas(s store.Store) *quota.Manager {
	return quota.NewManager(s, e.defaults, quota.WithClock(e.now), quota.WithLocation(e.loc))
}

func (e *Engine) wallets(s store.Store) *wallet.Manager {
	return wallet.NewManager(s, e.defaults)
}

// settings returns the community policy, falling back to the engine defaults.
func (e *Engine) settings(ctx context.Context, communityID string) (domain.Community, error) {
	return store.CommunitySettings(ctx, e.store, communityID, e.defaults)
}

// invalidateWallets drops cached balances after a commit. Failures only cost
// a stale read until the TTL expires, so they are logged and ignored.
func (e *Engine) invalidateWallets(ctx context.Context, communityID string, userIDs ...string) {
	if e.rdb == nil || len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, utils.WalletKey(communityID, id))
	}
	if err := utils.DeleteCache(ctx, e.rdb, keys...); err != nil {
		e.log.WithFields(logrus.Fields{"community_id": communityID, "error": err.Error()}).Warn("wallet cache invalidation failed")
	}
}

// replay returns the committed entry for key, if any.
func (e *Engine) replay(ctx context.Context, key string, kind domain.EntryKind) (*domain.LedgerEntry, error) {
	if key == "" {
		return nil, nil
	}
	entry, err := e.store.GetEntryByKey(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if entry.Kind != kind {
		return nil, domain.Invalid("idempotency key already used for a %s", entry.Kind)
	}
	return entry, nil
}

// claim marks key as in flight. The returned release must be called once the
// request is finished. A duplicate in flight gets ErrConflict.
func (e *Engine) claim(ctx context.Context, key string) (func(), error) {
	if key == "" || e.rdb == nil {
		return func() {}, nil
	}
	redisKey := utils.IdempotencyKey(key)
	ok, err := utils.ClaimKey(ctx, e.rdb, redisKey, e.claimTTL)
	if err != nil {
		// The unique key in the ledger still prevents a double apply.
		e.log.WithFields(logrus.Fields{"idempotency_key": key, "error": err.Error()}).Warn("idempotency claim unavailable")
		return func() {}, nil
	}
	if !ok {
		return nil, domain.ErrConflict
	}
	return func() {
		if err := utils.ReleaseKey(context.WithoutCancel(ctx), e.rdb, redisKey); err != nil {
			e.log.WithFields(logrus.Fields{"idempotency_key": key, "error": err.Error()}).Warn("idempotency release failed")
		}
	}, nil
}

// committed resolves err when it is a reused idempotency key: the entry that
// won is returned, or ErrInvalidRequest when the key belongs to another kind
// of entry. Any other err comes back unchanged.
func (e *Engine) committed(ctx context.Context, key string, kind domain.EntryKind, err error) (*domain.LedgerEntry, error) {
	if key == "" || !errors.Is(err, domain.ErrDuplicate) {
		return nil, err
	}
	entry, lookupErr := e.replay(ctx, key, kind)
	if lookupErr != nil {
		return nil, lookupErr
	}
	if entry == nil {
		return nil, err
	}
	return entry, nil
}

func keyPtr(key string) *string {
	if key == "" {
		return nil
	}
	return &key
}
