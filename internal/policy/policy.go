// Package policy is the access-control layer: a pure, table-driven predicate
// consulted by every handler before a mutation or a non-self read.
//
// Instead of scattering role comparisons through the handlers, every rule
// lives in one declarative table below, keyed by action. A handler gathers
// the resource context (who leads the playgroup, who its members are, which
// player a write targets), asks Allows once, and maps a denial to a uniform
// 403 — the response never explains which rule failed.
package policy

import (
	"github.com/google/uuid"

	"github.com/fairwayhq/playgroup-api/internal/models"
)

// Action identifies one guarded operation.
type Action string

const (
	ActionCreatePlaygroup    Action = "playgroup.create"
	ActionAddPlaygroupMember Action = "playgroup.addMember"
	ActionReadPlaygroup      Action = "playgroup.read"
	ActionCreateSession      Action = "session.create"
	ActionReadSession        Action = "session.read"
	ActionEditFoursome       Action = "foursome.edit"
	ActionSubmitScore        Action = "score.submit"
	ActionReadScores         Action = "score.read"
	ActionListAllUsers       Action = "user.listAll"
	ActionChangeUserRole     Action = "user.changeRole"
)

// Actor is the authenticated caller: their internal user ID and global role.
type Actor struct {
	ID   uuid.UUID
	Role models.UserRole
}

// Resource is the context a rule can be evaluated against. Handlers fill in
// only the fields that exist for the action — e.g. a playgroup-creation check
// has no leader or members yet, so everything stays zero.
type Resource struct {
	LeaderID       uuid.UUID   // The owning playgroup's leader
	MemberIDs      []uuid.UUID // The owning playgroup's roster (excluding the leader)
	TargetPlayerID uuid.UUID   // The player a score write is for
}

// rule describes who may perform one action. The fields are OR-ed together:
// a matching global role, being the playgroup's leader, being a member, or
// acting on oneself each independently grant access.
type rule struct {
	roles  []models.UserRole // Global roles that are always allowed
	leader bool              // The owning playgroup's leader is allowed
	member bool              // Any playgroup member is allowed (the leader counts as a member)
	self   bool              // Allowed when the actor IS the target player
}

// table is the permission matrix — one row per guarded action.
// Admin appears on every row: admins bypass all ownership checks.
var table = map[Action]rule{
	ActionCreatePlaygroup:    {roles: []models.UserRole{models.UserRoleGroupLeader, models.UserRoleAdmin}},
	ActionAddPlaygroupMember: {roles: []models.UserRole{models.UserRoleAdmin}, leader: true},
	ActionReadPlaygroup:      {roles: []models.UserRole{models.UserRoleAdmin}, leader: true, member: true},
	ActionCreateSession:      {roles: []models.UserRole{models.UserRoleAdmin}, leader: true},
	ActionReadSession:        {roles: []models.UserRole{models.UserRoleAdmin}, leader: true, member: true},
	ActionEditFoursome:       {roles: []models.UserRole{models.UserRoleAdmin}, leader: true},
	ActionSubmitScore:        {roles: []models.UserRole{models.UserRoleAdmin}, leader: true, self: true},
	ActionReadScores:         {roles: []models.UserRole{models.UserRoleAdmin}, leader: true, member: true},
	ActionListAllUsers:       {roles: []models.UserRole{models.UserRoleAdmin}},
	ActionChangeUserRole:     {roles: []models.UserRole{models.UserRoleAdmin}},
}

// Allows reports whether the actor may perform the action on the resource.
// Unknown actions are denied — a missing table row fails closed.
func Allows(actor Actor, action Action, res Resource) bool {
	r, ok := table[action]
	if !ok {
		return false
	}

	for _, role := range r.roles {
		if actor.Role == role {
			return true
		}
	}

	if r.leader && actor.ID == res.LeaderID && res.LeaderID != uuid.Nil {
		return true
	}

	if r.member {
		// The leader is implicitly a member of their own playgroup.
		if actor.ID == res.LeaderID && res.LeaderID != uuid.Nil {
			return true
		}
		for _, id := range res.MemberIDs {
			if actor.ID == id {
				return true
			}
		}
	}

	if r.self && actor.ID == res.TargetPlayerID && res.TargetPlayerID != uuid.Nil {
		return true
	}

	return false
}
