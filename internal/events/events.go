// Package events carries progression notifications for long-running
// operations and the broadcast bus that distributes them to subscribers.
package events

import (
	"github.com/outpost-sh/outpost/internal/instance"
)

// CausedByType distinguishes user-triggered from system-triggered events.
type CausedByType string

const (
	CausedByUser   CausedByType = "user"
	CausedBySystem CausedByType = "system"
)

// CausedBy attributes an event to the actor that triggered it.
type CausedBy struct {
	Type     CausedByType `json:"type"`
	UserID   string       `json:"user_id,omitempty"`
	Username string       `json:"username,omitempty"`
}

// ByUser attributes an event to an authenticated user.
func ByUser(userID, username string) CausedBy {
	return CausedBy{Type: CausedByUser, UserID: userID, Username: username}
}

// BySystem attributes an event to the daemon itself.
func BySystem() CausedBy {
	return CausedBy{Type: CausedBySystem}
}

// Event is a single progression notification. Exactly one of Start and End is
// set. A Start and its matching End share the same EventID.
type Event struct {
	EventID  Snowflake         `json:"event_id"`
	CausedBy CausedBy          `json:"caused_by"`
	Start    *ProgressionStart `json:"start,omitempty"`
	End      *ProgressionEnd   `json:"end,omitempty"`
}

// ProgressionStart announces the beginning of a long-running operation.
// ProducerID is the id of the thing the operation is about, for instance
// operations the instance uuid.
type ProgressionStart struct {
	Name             string            `json:"name"`
	ProducerID       string            `json:"producer_id,omitempty"`
	TotalWorkUnits   float64           `json:"total,omitempty"`
	InstanceCreation *InstanceCreation `json:"instance_creation,omitempty"`
}

// InstanceCreation describes the instance being created, sent with the Start
// of a creation progression.
type InstanceCreation struct {
	InstanceID string `json:"instance_uuid"`
	Name       string `json:"instance_name"`
	Port       int    `json:"port"`
	Flavour    string `json:"flavour"`
	GameType   string `json:"game_type"`
}

// ProgressionEnd closes a progression. Success false reports failure to
// subscribers; it never raises an error to the operation's original caller.
type ProgressionEnd struct {
	Success         bool           `json:"success"`
	Message         string         `json:"message,omitempty"`
	InstanceCreated *instance.Info `json:"instance_created,omitempty"`
	InstanceDeleted *InstanceDelete `json:"instance_deleted,omitempty"`
}

// InstanceDelete is the End payload of a completed deletion.
type InstanceDelete struct {
	InstanceID string `json:"instance_uuid"`
}
