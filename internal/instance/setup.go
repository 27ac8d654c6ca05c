package instance

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// SetupPrimitive is the client-supplied creation request. Optional fields are
// pointers so that "absent" and "zero" stay distinct.
type SetupPrimitive struct {
	Name                   string   `json:"name"`
	Version                string   `json:"version"`
	Flavour                string   `json:"flavour"`
	Port                   int      `json:"port"`
	CmdArgs                []string `json:"cmd_args,omitempty"`
	Description            *string  `json:"description,omitempty"`
	MinRAMMB               *int     `json:"min_ram,omitempty"`
	MaxRAMMB               *int     `json:"max_ram,omitempty"`
	AutoStart              *bool    `json:"auto_start,omitempty"`
	RestartOnCrash         *bool    `json:"restart_on_crash,omitempty"`
	TimeoutLastLeftSecs    *int     `json:"timeout_last_left,omitempty"`
	TimeoutNoActivitySecs  *int     `json:"timeout_no_activity,omitempty"`
	StartOnConnection      *bool    `json:"start_on_connection,omitempty"`
	BackupPeriodSecs       *int     `json:"backup_period,omitempty"`
}

// SetupConfig is the immutable descriptor an instance is provisioned from.
type SetupConfig struct {
	ID                    ID       `json:"uuid"`
	Name                  string   `json:"name"`
	Version               string   `json:"version"`
	Flavour               string   `json:"flavour"`
	GameType              string   `json:"game_type"`
	Port                  int      `json:"port"`
	CmdArgs               []string `json:"cmd_args,omitempty"`
	Description           string   `json:"description,omitempty"`
	MinRAMMB              int      `json:"min_ram"`
	MaxRAMMB              int      `json:"max_ram"`
	AutoStart             bool     `json:"auto_start"`
	RestartOnCrash        bool     `json:"restart_on_crash"`
	TimeoutLastLeftSecs   int      `json:"timeout_last_left"`
	TimeoutNoActivitySecs int      `json:"timeout_no_activity"`
	StartOnConnection     bool     `json:"start_on_connection"`
	BackupPeriodSecs      int      `json:"backup_period"`
	CreationTime          int64    `json:"creation_time"`
	Path                  string   `json:"path"`
}

const (
	defaultMinRAMMB = 1024
	defaultMaxRAMMB = 2048
)

// Config converts the primitive into a concrete SetupConfig, generating the
// instance ID and deriving the install path under instancesDir. The name is
// used as-is; sanitize it first.
func (p SetupPrimitive) Config(gameType, instancesDir string) SetupConfig {
	id := NewID()
	cfg := SetupConfig{
		ID:           id,
		Name:         p.Name,
		Version:      p.Version,
		Flavour:      p.Flavour,
		GameType:     gameType,
		Port:         p.Port,
		CmdArgs:      p.CmdArgs,
		MinRAMMB:     defaultMinRAMMB,
		MaxRAMMB:     defaultMaxRAMMB,
		CreationTime: time.Now().Unix(),
		Path:         DerivePath(instancesDir, p.Name, id),
	}
	if p.Description != nil {
		cfg.Description = *p.Description
	}
	if p.MinRAMMB != nil {
		cfg.MinRAMMB = *p.MinRAMMB
	}
	if p.MaxRAMMB != nil {
		cfg.MaxRAMMB = *p.MaxRAMMB
	}
	if p.AutoStart != nil {
		cfg.AutoStart = *p.AutoStart
	}
	if p.RestartOnCrash != nil {
		cfg.RestartOnCrash = *p.RestartOnCrash
	}
	if p.TimeoutLastLeftSecs != nil {
		cfg.TimeoutLastLeftSecs = *p.TimeoutLastLeftSecs
	}
	if p.TimeoutNoActivitySecs != nil {
		cfg.TimeoutNoActivitySecs = *p.TimeoutNoActivitySecs
	}
	if p.StartOnConnection != nil {
		cfg.StartOnConnection = *p.StartOnConnection
	}
	if p.BackupPeriodSecs != nil {
		cfg.BackupPeriodSecs = *p.BackupPeriodSecs
	}
	return cfg
}

// Regenerate replaces the config's ID with a fresh one and re-derives the
// install path. Used when the derived path collides with a live instance.
func (c *SetupConfig) Regenerate(instancesDir string) {
	c.ID = NewID()
	c.Path = DerivePath(instancesDir, c.Name, c.ID)
}

// DerivePath builds the install path for an instance: <dir>/<name>-<id[:8]>.
func DerivePath(instancesDir, name string, id ID) string {
	return filepath.Join(instancesDir, fmt.Sprintf("%s-%s", name, string(id)[:8]))
}

// SanitizeName strips characters that are unsafe in filesystem paths from a
// requested instance name and trims surrounding whitespace and dots.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			// control characters
		case strings.ContainsRune(`/\?%*:|"<>`, r):
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), " .")
}
