// Package permission decides whether a role may perform an action. Evaluation
// is a pure function of the rule table and the facts passed in.
package permission

import (
	"merit_system/internal/domain"
)

// Decision is the outcome of an evaluation; Reason names the failed check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// RuleSet indexes the rules of one community by (role, action).
type RuleSet map[domain.Role]map[domain.Action]domain.PermissionRule

// NewRuleSet builds a RuleSet. Later rules for the same (role, action) win.
func NewRuleSet(rules []domain.PermissionRule) RuleSet {
	rs := make(RuleSet)
	for _, r := range rules {
		if rs[r.Role] == nil {
			rs[r.Role] = make(map[domain.Action]domain.PermissionRule)
		}
		rs[r.Role][r.Action] = r
	}
	return rs
}

// Lookup returns the rule for (role, action).
func (rs RuleSet) Lookup(role domain.Role, action domain.Action) (domain.PermissionRule, bool) {
	r, ok := rs[role][action]
	return r, ok
}

// IsAllowed reports whether role may perform action given ctx.
func (rs RuleSet) IsAllowed(role domain.Role, action domain.Action, ctx domain.EvalContext) bool {
	return rs.Check(role, action, ctx).Allowed
}

// Check is IsAllowed with the reason for a denial.
func (rs RuleSet) Check(role domain.Role, action domain.Action, ctx domain.EvalContext) Decision {
	rule, ok := rs.Lookup(role, action)
	if !ok {
		return deny("no rule")
	}
	return Evaluate(rule, role, action, ctx)
}

// Evaluate applies one rule. A missing or disallowed rule denies; otherwise
// every condition on the rule must pass.
func Evaluate(rule domain.PermissionRule, role domain.Role, action domain.Action, ctx domain.EvalContext) Decision {
	if !rule.Allowed {
		return deny("not allowed")
	}
	if rule.Flag(domain.CondRequiresTeamMembership) && !ctx.IsTeamMember {
		return deny(string(domain.CondRequiresTeamMembership))
	}
	if rule.Flag(domain.CondOnlyTeamLead) && !ctx.IsTeamLead {
		return deny(string(domain.CondOnlyTeamLead))
	}

	switch action {
	case domain.ActionVote:
		if ctx.IsOwnContent && !rule.Flag(domain.CondCanVoteForOwnPosts) {
			return deny(string(domain.CondCanVoteForOwnPosts))
		}
		if role == domain.RoleParticipant && rule.Flag(domain.CondParticipantsCannotVoteForLead) &&
			ctx.TargetAuthorRole == domain.RoleLead {
			return deny(string(domain.CondParticipantsCannotVoteForLead))
		}
	case domain.ActionView:
		if rule.Flag(domain.CondIsHidden) {
			return deny(string(domain.CondIsHidden))
		}
		if rule.Flag(domain.CondTeamOnly) && !ctx.IsTeamMember {
			return deny(string(domain.CondTeamOnly))
		}
	}
	return allow()
}

// KnownCondition reports whether name is a condition the evaluator understands.
func KnownCondition(name string) bool {
	switch domain.Condition(name) {
	case domain.CondRequiresTeamMembership, domain.CondOnlyTeamLead, domain.CondCanVoteForOwnPosts,
		domain.CondParticipantsCannotVoteForLead, domain.CondIsHidden, domain.CondTeamOnly:
		return true
	}
	return false
}
