// Package gormstore is the gorm backed Store. Business conditions are enforced
// in the WHERE clause of single UPDATE statements, so concurrent writers
// across processes never observe or produce a negative balance.
//
// The *gorm.DB must be opened with gorm.Config{TranslateError: true} so
// unique violations surface as gorm.ErrDuplicatedKey.
package gormstore

import (
	"context"
	"errors"
	"math"
	"time"

	"merit_system/internal/domain"
	"merit_system/internal/store"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store wraps a gorm handle, either the root pool or an open transaction.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// New returns a Store over db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Models lists every table the store needs, in migration order.
func Models() []any {
	return []any{
		&domain.Community{},
		&domain.Membership{},
		&domain.Wallet{},
		&domain.Quota{},
		&domain.PermissionRule{},
		&domain.Entity{},
		&domain.Investment{},
		&domain.LedgerEntry{},
	}
}

// notFound maps gorm's missing-row error to the domain one.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// Communities and memberships

func (s *Store) GetCommunity(ctx context.Context, communityID string) (*domain.Community, error) {
	var c domain.Community
	if err := s.db.WithContext(ctx).First(&c, "id = ?", communityID).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) SaveCommunity(ctx context.Context, c *domain.Community) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"daily_allowance", "starting_balance", "voting_mode"}),
	}).Create(c).Error
}

func (s *Store) GetMembership(ctx context.Context, userID, communityID string) (*domain.Membership, error) {
	var m domain.Membership
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND community_id = ?", userID, communityID).
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (s *Store) SaveMembership(ctx context.Context, m *domain.Membership) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "community_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "team_id"}),
	}).Create(m).Error
}

// Wallets

func (s *Store) GetWallet(ctx context.Context, userID, communityID string) (*domain.Wallet, error) {
	var w domain.Wallet
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND community_id = ?", userID, communityID).
		First(&w).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &w, nil
}

func (s *Store) EnsureWallet(ctx context.Context, userID, communityID string, starting int64) (*domain.Wallet, error) {
	w := domain.Wallet{UserID: userID, CommunityID: communityID, Balance: starting}
	// A concurrent creator wins silently; the row is read back either way.
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&w).Error
	if err != nil {
		return nil, err
	}
	return s.GetWallet(ctx, userID, communityID)
}

func (s *Store) DebitWallet(ctx context.Context, userID, communityID string, amount int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&domain.Wallet{}).
		Where("user_id = ? AND community_id = ? AND balance >= ?", userID, communityID, amount).
		Updates(map[string]any{
			"balance": gorm.Expr("balance - ?", amount),
			"version": gorm.Expr("version + 1"),
		})
	return res.RowsAffected == 1, res.Error
}

func (s *Store) CreditWallet(ctx context.Context, userID, communityID string, amount int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&domain.Wallet{}).
		Where("user_id = ? AND community_id = ? AND balance <= ?", userID, communityID, int64(math.MaxInt64)-amount).
		Updates(map[string]any{
			"balance": gorm.Expr("balance + ?", amount),
			"version": gorm.Expr("version + 1"),
		})
	return res.RowsAffected == 1, res.Error
}

// Quotas

func (s *Store) GetQuota(ctx context.Context, userID, communityID string) (*domain.Quota, error) {
	var q domain.Quota
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND community_id = ?", userID, communityID).
		First(&q).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &q, nil
}

func (s *Store) EnsureQuota(ctx context.Context, userID, communityID string, allowance int64, now time.Time) (*domain.Quota, error) {
	q := domain.Quota{UserID: userID, CommunityID: communityID, DailyAllowance: allowance, LastResetAt: now}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&q).Error; err != nil {
		return nil, err
	}
	return s.GetQuota(ctx, userID, communityID)
}

func (s *Store) RollQuota(ctx context.Context, userID, communityID string, allowance int64, periodStart, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&domain.Quota{}).
		Where("user_id = ? AND community_id = ? AND last_reset_at < ?", userID, communityID, periodStart).
		Updates(map[string]any{
			"used_today":      0,
			"daily_allowance": allowance,
			"last_reset_at":   now,
			"version":         gorm.Expr("version + 1"),
		})
	return res.RowsAffected == 1, res.Error
}

func (s *Store) DebitQuota(ctx context.Context, userID, communityID string, amount int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&domain.Quota{}).
		Where("user_id = ? AND community_id = ? AND daily_allowance - used_today >= ?", userID, communityID, amount).
		Updates(map[string]any{
			"used_today": gorm.Expr("used_today + ?", amount),
			"version":    gorm.Expr("version + 1"),
		})
	return res.RowsAffected == 1, res.Error
}

func (s *Store) ResetQuotas(ctx context.Context, communityID, userID string, now time.Time) (int64, error) {
	query := s.db.WithContext(ctx).Model(&domain.Quota{}).Where("community_id = ?", communityID)
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	res := query.Updates(map[string]any{
		"used_today":    0,
		"last_reset_at": gorm.Expr(s.greatest()+"(last_reset_at, ?)", now),
		"version":       gorm.Expr("version + 1"),
	})
	return res.RowsAffected, res.Error
}

// greatest names the two-argument maximum of the connected dialect.
func (s *Store) greatest() string {
	if s.db.Dialector.Name() == "sqlite" {
		return "MAX"
	}
	return "GREATEST"
}

// Permission rules

func (s *Store) ListRules(ctx context.Context, communityID string) ([]domain.PermissionRule, error) {
	var rules []domain.PermissionRule
	err := s.db.WithContext(ctx).
		Where("community_id = ?", communityID).
		Order("role, action").
		Find(&rules).Error
	return rules, err
}

func (s *Store) SaveRule(ctx context.Context, r *domain.PermissionRule) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "community_id"}, {Name: "role"}, {Name: "action"}},
		DoUpdates: clause.AssignmentColumns([]string{"allowed", "conditions"}),
	}).Create(r).Error
}

// Entities and investments

func (s *Store) GetEntity(ctx context.Context, t domain.TargetType, entityID string) (*domain.Entity, error) {
	var e domain.Entity
	if err := s.db.WithContext(ctx).First(&e, "type = ? AND id = ?", t, entityID).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (s *Store) SaveEntity(ctx context.Context, e *domain.Entity) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}, {Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"community_id", "author_id", "beneficiary_id", "team_id", "investor_share_percent",
		}),
	}).Create(e).Error
}

func (s *Store) AdjustEntityBalance(ctx context.Context, t domain.TargetType, entityID string, delta int64) error {
	query := s.db.WithContext(ctx).Model(&domain.Entity{}).Where("type = ? AND id = ?", t, entityID)
	if delta > 0 {
		query = query.Where("balance <= ?", int64(math.MaxInt64)-delta)
	} else {
		query = query.Where("balance >= ?", int64(math.MinInt64)-delta)
	}
	res := query.Update("balance", gorm.Expr("balance + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetEntity(ctx, t, entityID); err != nil {
			return err
		}
		return domain.ErrOverflow
	}
	return nil
}

func (s *Store) DrawEntityBalance(ctx context.Context, t domain.TargetType, entityID string, amount int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&domain.Entity{}).
		Where("type = ? AND id = ? AND balance >= ?", t, entityID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	return res.RowsAffected == 1, res.Error
}

func (s *Store) ListInvestments(ctx context.Context, publicationID string) ([]domain.Investment, error) {
	var out []domain.Investment
	err := s.db.WithContext(ctx).
		Where("publication_id = ?", publicationID).
		Order("investor_id").
		Find(&out).Error
	return out, err
}

func (s *Store) AddInvestment(ctx context.Context, publicationID, investorID string, amount int64, now time.Time) error {
	inv := domain.Investment{
		PublicationID: publicationID,
		InvestorID:    investorID,
		Amount:        amount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "publication_id"}, {Name: "investor_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"amount":     gorm.Expr("amount + ?", amount),
			"updated_at": now,
		}),
	}).Create(&inv).Error
}

// Ledger

func (s *Store) AppendEntry(ctx context.Context, e *domain.LedgerEntry) error {
	err := s.db.WithContext(ctx).Create(e).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrDuplicate
	}
	return err
}

func (s *Store) GetEntryByKey(ctx context.Context, key string) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	if err := s.db.WithContext(ctx).First(&e, "idempotency_key = ?", key).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (s *Store) ListEntries(ctx context.Context, communityID string, f domain.LedgerFilter) ([]domain.LedgerEntry, int64, error) {
	filtered := func() *gorm.DB {
		query := s.db.WithContext(ctx).Model(&domain.LedgerEntry{}).Where("community_id = ?", communityID)
		if f.UserID != "" {
			query = query.Where("actor_id = ?", f.UserID)
		}
		if f.Kind != "" {
			query = query.Where("kind = ?", f.Kind)
		}
		return query
	}
	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	_, size, offset := store.Page(f)
	entries := make([]domain.LedgerEntry, 0)
	err := filtered().Order("created_at desc, id desc").Offset(offset).Limit(size).Find(&entries).Error
	return entries, total, err
}
