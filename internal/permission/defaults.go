package permission

import (
	"gorm.io/datatypes"

	"merit_system/internal/domain"
)

// DefaultRules is the rule table a community starts with. Superadmin gets
// explicit unrestricted rows rather than a bypass inside the evaluator.
func DefaultRules(communityID string) []domain.PermissionRule {
	var rules []domain.PermissionRule
	add := func(role domain.Role, action domain.Action, conds datatypes.JSONMap) {
		if conds == nil {
			conds = datatypes.JSONMap{}
		}
		rules = append(rules, domain.PermissionRule{
			CommunityID: communityID,
			Role:        role,
			Action:      action,
			Allowed:     true,
			Conditions:  conds,
		})
	}

	for _, action := range domain.Actions {
		conds := datatypes.JSONMap{}
		if action == domain.ActionVote {
			conds[string(domain.CondCanVoteForOwnPosts)] = true
		}
		add(domain.RoleSuperadmin, action, conds)
	}

	add(domain.RoleLead, domain.ActionVote, datatypes.JSONMap{string(domain.CondCanVoteForOwnPosts): false})
	for _, action := range []domain.Action{
		domain.ActionPollCast, domain.ActionWithdraw, domain.ActionInvest, domain.ActionView,
		domain.ActionPost, domain.ActionComment,
	} {
		add(domain.RoleLead, action, nil)
	}

	add(domain.RoleParticipant, domain.ActionVote, datatypes.JSONMap{
		string(domain.CondCanVoteForOwnPosts):            false,
		string(domain.CondParticipantsCannotVoteForLead): true,
	})
	for _, action := range []domain.Action{
		domain.ActionPollCast, domain.ActionWithdraw, domain.ActionInvest, domain.ActionView,
		domain.ActionPost, domain.ActionComment,
	} {
		add(domain.RoleParticipant, action, nil)
	}

	add(domain.RoleViewer, domain.ActionView, nil)
	return rules
}
