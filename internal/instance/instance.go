package instance

import (
	"context"

	"github.com/google/uuid"
)

// ConfigFileName is the per-instance marker file written by drivers as the
// last step of provisioning. Its presence is the authoritative on-disk signal
// that the instance's creation fully completed; removing it is the deletion
// commit point.
const ConfigFileName = ".outpost_config"

// ID is the opaque identifier of an instance. It is generated once at
// creation time and used as the registry key and as the producer id of
// progression events about the instance.
type ID string

// NewID generates a fresh random instance ID.
func NewID() ID {
	return ID(uuid.New().String())
}

// State is the lifecycle state of an instance's server process.
type State string

const (
	StateStarting State = "Starting"
	StateRunning  State = "Running"
	StateStopping State = "Stopping"
	StateStopped  State = "Stopped"
	StateError    State = "Error"
)

// Player is a single connected player as reported by the game server.
type Player struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// Info is the exportable metadata of an instance.
type Info struct {
	ID             ID     `json:"uuid"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	GameType       string `json:"game_type"`
	Flavour        string `json:"flavour"`
	Version        string `json:"version"`
	Port           int    `json:"port"`
	State          State  `json:"state"`
	PlayerCount    int    `json:"player_count"`
	MaxPlayerCount int    `json:"max_player_count"`
	CreationTime   int64  `json:"creation_time"`
	Path           string `json:"path"`
}

// Instance is the capability interface every provisioned instance exposes to
// the core. The concrete process-management logic lives in the game-specific
// driver; the core never inspects the concrete type.
type Instance interface {
	ID() ID
	Name() string
	Path() string
	Port() int
	State() State
	Info() Info

	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	PlayerCount() (int, error)
	MaxPlayerCount() (int, error)
	SetMaxPlayerCount(count int) error
	Players() ([]Player, error)
}

// Factory provisions new instances from a setup config. Create materializes
// the instance directory and everything needed to run the server; it must
// either fully succeed or leave the caller to discard the directory.
type Factory interface {
	Create(ctx context.Context, cfg SetupConfig) (Instance, error)
}
