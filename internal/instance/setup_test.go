package instance

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain name unchanged",
			in:   "Survival",
			want: "Survival",
		},
		{
			name: "path separators stripped",
			in:   "../etc/passwd",
			want: "etcpasswd",
		},
		{
			name: "windows reserved characters stripped",
			in:   `my:server?*|"<>`,
			want: "myserver",
		},
		{
			name: "surrounding dots and spaces trimmed",
			in:   "  .server.  ",
			want: "server",
		},
		{
			name: "control characters stripped",
			in:   "a\x00b\nc",
			want: "abc",
		},
		{
			name: "unsafe only becomes empty",
			in:   `/\..`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeName(tt.in); got != tt.want {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestConfigFromPrimitive(t *testing.T) {
	desc := "a test server"
	maxRAM := 4096
	autoStart := true

	p := SetupPrimitive{
		Name:        "Survival",
		Version:     "1.20.1",
		Flavour:     "vanilla",
		Port:        25565,
		Description: &desc,
		MaxRAMMB:    &maxRAM,
		AutoStart:   &autoStart,
	}

	cfg := p.Config("minecraft", "/srv/instances")

	if cfg.ID == "" {
		t.Fatal("Config() did not generate an ID")
	}
	if cfg.GameType != "minecraft" {
		t.Errorf("GameType = %q, want %q", cfg.GameType, "minecraft")
	}
	if cfg.Description != desc {
		t.Errorf("Description = %q, want %q", cfg.Description, desc)
	}
	if cfg.MinRAMMB != defaultMinRAMMB {
		t.Errorf("MinRAMMB = %d, want default %d", cfg.MinRAMMB, defaultMinRAMMB)
	}
	if cfg.MaxRAMMB != maxRAM {
		t.Errorf("MaxRAMMB = %d, want %d", cfg.MaxRAMMB, maxRAM)
	}
	if !cfg.AutoStart {
		t.Error("AutoStart not carried over")
	}
	if cfg.CreationTime == 0 {
		t.Error("CreationTime not set")
	}

	wantPath := filepath.Join("/srv/instances", "Survival-"+string(cfg.ID)[:8])
	if cfg.Path != wantPath {
		t.Errorf("Path = %q, want %q", cfg.Path, wantPath)
	}
}

func TestRegenerateChangesIDAndPath(t *testing.T) {
	p := SetupPrimitive{Name: "Survival", Version: "1.20.1", Flavour: "vanilla", Port: 25565}
	cfg := p.Config("minecraft", "/srv/instances")

	oldID, oldPath := cfg.ID, cfg.Path
	cfg.Regenerate("/srv/instances")

	if cfg.ID == oldID {
		t.Error("Regenerate() did not change the ID")
	}
	if cfg.Path == oldPath {
		t.Error("Regenerate() did not change the path")
	}
	if !strings.HasPrefix(filepath.Base(cfg.Path), "Survival-") {
		t.Errorf("regenerated path %q lost the name prefix", cfg.Path)
	}
}

func TestNewIDsAreDistinct(t *testing.T) {
	seen := make(map[ID]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("NewID() produced duplicate %s", id)
		}
		seen[id] = true
	}
}
