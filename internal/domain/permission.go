package domain

import (
	"strings"

	"gorm.io/datatypes"
)

// Role is a community role.
type Role string

const (
	RoleSuperadmin  Role = "superadmin"
	RoleLead        Role = "lead"
	RoleParticipant Role = "participant"
	RoleViewer      Role = "viewer"
)

// Roles lists every known role in descending privilege.
var Roles = []Role{RoleSuperadmin, RoleLead, RoleParticipant, RoleViewer}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Action is something a role may be permitted to do.
type Action string

const (
	ActionVote        Action = "vote"
	ActionPollCast    Action = "poll_cast"
	ActionWithdraw    Action = "withdraw"
	ActionInvest      Action = "invest"
	ActionView        Action = "view"
	ActionPost        Action = "post"
	ActionComment     Action = "comment"
	ActionManageRules Action = "manage_rules"
	ActionResetQuota  Action = "reset_quota"

	ActionManageCommunity Action = "manage_community"
)

// Actions lists every known action.
var Actions = []Action{
	ActionVote, ActionPollCast, ActionWithdraw, ActionInvest, ActionView,
	ActionPost, ActionComment, ActionManageRules, ActionResetQuota,
	ActionManageCommunity,
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// Condition names a fine-grained restriction attached to a rule.
type Condition string

const (
	CondRequiresTeamMembership        Condition = "requiresTeamMembership"
	CondOnlyTeamLead                  Condition = "onlyTeamLead"
	CondCanVoteForOwnPosts            Condition = "canVoteForOwnPosts"
	CondParticipantsCannotVoteForLead Condition = "participantsCannotVoteForLead"
	CondIsHidden                      Condition = "isHidden"
	CondTeamOnly                      Condition = "teamOnly"
)

// PermissionRule Model, a (community, role, action) row
type PermissionRule struct {
	ID          uint              `gorm:"primaryKey" json:"-"`                                                  // Primary key
	CommunityID string            `gorm:"size:64;not null;uniqueIndex:idx_rule,priority:1" json:"community_id"` // Community scope
	Role        Role              `gorm:"size:32;not null;uniqueIndex:idx_rule,priority:2" json:"role"`         // Role
	Action      Action            `gorm:"size:32;not null;uniqueIndex:idx_rule,priority:3" json:"action"`       // Action
	Allowed     bool              `gorm:"not null" json:"allowed"`                                              // Base permission
	Conditions  datatypes.JSONMap `gorm:"type:json" json:"conditions"`                                          // Named flags
}

// Flag returns the boolean value of a condition. Missing conditions are false;
// string values are accepted so rules written by hand as "true" still apply.
func (r PermissionRule) Flag(c Condition) bool {
	v, ok := r.Conditions[string(c)]
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	default:
		return false
	}
}

// EvalContext carries the facts a condition may test.
type EvalContext struct {
	IsTeamMember     bool // Actor belongs to the team of the target
	IsTeamLead       bool // Actor leads the team of the target
	IsOwnContent     bool // Actor authored or benefits from the target
	TargetAuthorRole Role // Community role of the target's author
}
