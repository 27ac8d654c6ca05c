package auth

import (
	"github.com/outpost-sh/outpost/internal/instance"
	"github.com/outpost-sh/outpost/internal/store"
)

// ActionKind names a permission checked against a requester.
type ActionKind string

const (
	ActionViewInstance   ActionKind = "ViewInstance"
	ActionStartInstance  ActionKind = "StartInstance"
	ActionStopInstance   ActionKind = "StopInstance"
	ActionCreateInstance ActionKind = "CreateInstance"
	ActionDeleteInstance ActionKind = "DeleteInstance"
	ActionManageUsers    ActionKind = "ManageUsers"
)

// Action is a capability, optionally scoped to a single instance.
type Action struct {
	Kind       ActionKind
	InstanceID instance.ID
}

func ViewInstance(id instance.ID) Action   { return Action{Kind: ActionViewInstance, InstanceID: id} }
func StartInstance(id instance.ID) Action  { return Action{Kind: ActionStartInstance, InstanceID: id} }
func StopInstance(id instance.ID) Action   { return Action{Kind: ActionStopInstance, InstanceID: id} }
func CreateInstance() Action               { return Action{Kind: ActionCreateInstance} }
func DeleteInstance() Action               { return Action{Kind: ActionDeleteInstance} }
func ManageUsers() Action                  { return Action{Kind: ActionManageUsers} }

// Requester is an authenticated identity plus the capability data its
// permission predicate evaluates against. It is assembled once per request by
// Gate.Authenticate; evaluation itself has no side effects.
type Requester struct {
	UID       string
	Username  string
	Role      string
	CanCreate bool
	CanDelete bool
	ViewAll   bool
	viewable  map[instance.ID]struct{}
}

// Can reports whether the requester may perform the action.
func (r *Requester) Can(a Action) bool {
	if r.Role == store.RoleOwner || r.Role == store.RoleAdmin {
		return true
	}
	switch a.Kind {
	case ActionViewInstance, ActionStartInstance, ActionStopInstance:
		if r.ViewAll {
			return true
		}
		_, ok := r.viewable[a.InstanceID]
		return ok
	case ActionCreateInstance:
		return r.CanCreate
	case ActionDeleteInstance:
		return r.CanDelete
	default:
		return false
	}
}
