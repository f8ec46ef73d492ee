package engine

import (
	"context"
	"errors"
	"fmt"

	"merit_system/internal/domain"
	"merit_system/internal/permission"
	"merit_system/internal/store"
	"merit_system/internal/utils"

	"github.com/sirupsen/logrus"
)

// ResolveRole returns the community role of userID; non-members are viewers.
func (e *Engine) ResolveRole(ctx context.Context, userID, communityID string) (domain.Role, error) {
	m, err := e.store.GetMembership(ctx, userID, communityID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.RoleViewer, nil
	}
	if err != nil {
		return "", err
	}
	return m.Role, nil
}

// GetPermissionRules returns the community's rules, or the default table
// when none were configured.
func (e *Engine) GetPermissionRules(ctx context.Context, communityID string) ([]domain.PermissionRule, error) {
	var rules []domain.PermissionRule
	if e.rdb != nil {
		found, err := utils.GetCache(ctx, e.rdb, utils.RulesKey(communityID), &rules)
		if err == nil && found {
			return rules, nil
		}
	}
	rules, err := e.store.ListRules(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		rules = permission.DefaultRules(communityID)
	}
	if e.rdb != nil {
		_ = utils.SetCache(ctx, e.rdb, utils.RulesKey(communityID), rules, e.cacheTTL)
	}
	return rules, nil
}

// UpsertPermissionRule creates or replaces the (role, action) rule of a
// community. The first change to a community materialises the default table
// so the other defaults keep applying.
func (e *Engine) UpsertPermissionRule(ctx context.Context, communityID string, role domain.Role, action domain.Action, allowed bool, conditions map[string]any) (*domain.PermissionRule, error) {
	if communityID == "" {
		return nil, domain.Invalid("community is required")
	}
	if !role.Valid() {
		return nil, domain.Invalid("unknown role %q", role)
	}
	if !action.Valid() {
		return nil, domain.Invalid("unknown action %q", action)
	}
	for name, v := range conditions {
		if !permission.KnownCondition(name) {
			return nil, domain.Invalid("unknown condition %q", name)
		}
		switch v.(type) {
		case bool, string:
		default:
			return nil, domain.Invalid("condition %q must be a boolean or string", name)
		}
	}

	rule := &domain.PermissionRule{
		CommunityID: communityID,
		Role:        role,
		Action:      action,
		Allowed:     allowed,
		Conditions:  conditions,
	}
	if rule.Conditions == nil {
		rule.Conditions = map[string]any{}
	}
	err := e.store.WithinTx(ctx, func(tx store.Store) error {
		existing, err := tx.ListRules(ctx, communityID)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			for _, def := range permission.DefaultRules(communityID) {
				if err := tx.SaveRule(ctx, &def); err != nil {
					return err
				}
			}
		}
		return tx.SaveRule(ctx, rule)
	})
	if err != nil {
		return nil, err
	}
	if e.rdb != nil {
		_ = utils.DeleteCache(ctx, e.rdb, utils.RulesKey(communityID))
	}
	e.log.WithFields(logrus.Fields{
		"community_id": communityID,
		"role":         role,
		"action":       action,
		"allowed":      allowed,
		"conditions":   rule.Conditions,
	}).Info("permission rule updated")
	return rule, nil
}

// Authorize checks an action that has no target entity, such as admin actions.
func (e *Engine) Authorize(ctx context.Context, actorID, communityID string, role domain.Role, action domain.Action) error {
	return e.authorize(ctx, actorID, communityID, role, action, nil)
}

func (e *Engine) authorize(ctx context.Context, actorID, communityID string, role domain.Role, action domain.Action, target *domain.Entity) error {
	rules, err := e.GetPermissionRules(ctx, communityID)
	if err != nil {
		return err
	}
	evalCtx, err := e.evalContext(ctx, actorID, communityID, target)
	if err != nil {
		return err
	}
	decision := permission.NewRuleSet(rules).Check(role, action, evalCtx)
	if !decision.Allowed {
		e.log.WithFields(logrus.Fields{
			"actor_id":     actorID,
			"community_id": communityID,
			"role":         role,
			"action":       action,
			"reason":       decision.Reason,
		}).Info("permission denied")
		return fmt.Errorf("%w: %s may not %s (%s)", domain.ErrForbidden, role, action, decision.Reason)
	}
	return nil
}

// evalContext gathers the facts the evaluator tests for actor acting on target.
func (e *Engine) evalContext(ctx context.Context, actorID, communityID string, target *domain.Entity) (domain.EvalContext, error) {
	var evalCtx domain.EvalContext
	member, err := e.store.GetMembership(ctx, actorID, communityID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return evalCtx, err
	}

	teamID := ""
	if member != nil {
		teamID = member.TeamID
	}
	switch {
	case target != nil && target.TeamID != "":
		evalCtx.IsTeamMember = teamID == target.TeamID
	default:
		evalCtx.IsTeamMember = teamID != ""
	}
	evalCtx.IsTeamLead = evalCtx.IsTeamMember && member.Role == domain.RoleLead

	if target != nil {
		evalCtx.IsOwnContent = target.OwnedBy(actorID)
		authorRole, err := e.ResolveRole(ctx, target.AuthorID, communityID)
		if err != nil {
			return evalCtx, err
		}
		evalCtx.TargetAuthorRole = authorRole
	}
	return evalCtx, nil
}
