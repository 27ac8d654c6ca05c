package minecraft

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/outpost-sh/outpost/internal/instance"
)

// fakeMojang serves a minimal version manifest with a single version whose
// server jar is a stub payload.
func fakeMojang(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"latest": map[string]string{"release": "1.20.1"},
			"versions": []map[string]string{
				{"id": "1.20.1", "url": srv.URL + "/1.20.1.json"},
			},
		})
	})
	mux.HandleFunc("/1.20.1.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"downloads": map[string]interface{}{
				"server": map[string]string{"url": srv.URL + "/server.jar"},
			},
		})
	})
	mux.HandleFunc("/server.jar", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not really a jar"))
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testFactory(t *testing.T) *Factory {
	t.Helper()
	mojang := fakeMojang(t)
	return &Factory{
		ManifestURL: mojang.URL + "/manifest.json",
		Client:      mojang.Client(),
	}
}

func testConfig(t *testing.T, name string) instance.SetupConfig {
	t.Helper()
	p := instance.SetupPrimitive{Name: name, Version: "1.20.1", Flavour: "vanilla", Port: 25565}
	return p.Config("minecraft", t.TempDir())
}

func TestCreateProvisionsDirectory(t *testing.T) {
	f := testFactory(t)
	cfg := testConfig(t, "Survival")

	inst, err := f.Create(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for _, file := range []string{"eula.txt", "server.properties", "server.jar", instance.ConfigFileName} {
		if _, err := os.Stat(filepath.Join(cfg.Path, file)); err != nil {
			t.Errorf("missing %s after Create(): %v", file, err)
		}
	}

	if inst.State() != instance.StateStopped {
		t.Errorf("State() = %s, want Stopped", inst.State())
	}
	info := inst.Info()
	if info.Name != "Survival" || info.Port != 25565 || info.GameType != "minecraft" {
		t.Errorf("Info() = %+v", info)
	}
	if info.MaxPlayerCount != defaultMaxPlayers {
		t.Errorf("MaxPlayerCount = %d, want %d", info.MaxPlayerCount, defaultMaxPlayers)
	}
}

func TestCreateUnknownVersionFails(t *testing.T) {
	f := testFactory(t)
	p := instance.SetupPrimitive{Name: "Broken", Version: "0.0.0", Flavour: "vanilla", Port: 25565}
	cfg := p.Config("minecraft", t.TempDir())

	if _, err := f.Create(context.Background(), cfg); err == nil {
		t.Fatal("Create() with unknown version did not fail")
	}

	// No marker may exist after a failed creation.
	if _, err := os.Stat(filepath.Join(cfg.Path, instance.ConfigFileName)); err == nil {
		t.Error("config marker written despite failed creation")
	}
}

func TestCreateUnsupportedFlavourFails(t *testing.T) {
	f := testFactory(t)
	p := instance.SetupPrimitive{Name: "Modded", Version: "1.20.1", Flavour: "forge", Port: 25565}
	cfg := p.Config("minecraft", t.TempDir())

	if _, err := f.Create(context.Background(), cfg); err == nil {
		t.Fatal("Create() with unsupported flavour did not fail")
	}
}

func TestRestore(t *testing.T) {
	f := testFactory(t)
	instancesDir := t.TempDir()

	p := instance.SetupPrimitive{Name: "Survival", Version: "1.20.1", Flavour: "vanilla", Port: 25565}
	cfg := p.Config("minecraft", instancesDir)

	created, err := f.Create(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// A half-provisioned leftover without a marker must be skipped.
	if err := os.MkdirAll(filepath.Join(instancesDir, "leftover-deadbeef"), 0o755); err != nil {
		t.Fatal(err)
	}

	restored, err := f.Restore(instancesDir)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if len(restored) != 1 {
		t.Fatalf("Restore() returned %d instances, want 1", len(restored))
	}
	if restored[0].ID() != created.ID() {
		t.Errorf("restored ID = %s, want %s", restored[0].ID(), created.ID())
	}
	if restored[0].State() != instance.StateStopped {
		t.Errorf("restored State = %s, want Stopped", restored[0].State())
	}
}

func TestSetMaxPlayerCountPersists(t *testing.T) {
	f := testFactory(t)
	instancesDir := t.TempDir()
	p := instance.SetupPrimitive{Name: "Survival", Version: "1.20.1", Flavour: "vanilla", Port: 25565}
	cfg := p.Config("minecraft", instancesDir)

	inst, err := f.Create(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := inst.SetMaxPlayerCount(64); err != nil {
		t.Fatalf("SetMaxPlayerCount() error = %v", err)
	}
	if err := inst.SetMaxPlayerCount(-1); err == nil {
		t.Error("SetMaxPlayerCount(-1) did not fail")
	}

	restored, err := f.Restore(instancesDir)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	got, err := restored[0].MaxPlayerCount()
	if err != nil {
		t.Fatalf("MaxPlayerCount() error = %v", err)
	}
	if got != 64 {
		t.Errorf("MaxPlayerCount() after restore = %d, want 64", got)
	}
}

func TestStartRequiresStoppedState(t *testing.T) {
	inst := newInstance(testConfig(t, "Busy"), defaultMaxPlayers)
	inst.state = instance.StateStarting

	if err := inst.Start(context.Background()); err == nil {
		t.Error("Start() on a starting instance did not fail")
	}
}

func TestStopRequiresRunningState(t *testing.T) {
	inst := newInstance(testConfig(t, "Idle"), defaultMaxPlayers)

	if err := inst.Stop(context.Background()); err == nil {
		t.Error("Stop() on a stopped instance did not fail")
	}
}

func TestPlayerLogParsing(t *testing.T) {
	tests := []struct {
		name string
		line string
		join string
		part string
	}{
		{
			name: "login line",
			line: "[12:00:01] [Server thread/INFO]: Steve[/127.0.0.1:54321] logged in with entity id 261",
			join: "Steve",
		},
		{
			name: "leave line",
			line: "[12:10:01] [Server thread/INFO]: Steve left the game",
			part: "Steve",
		},
		{
			name: "chat is ignored",
			line: "[12:05:00] [Server thread/INFO]: <Steve> hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if m := joinPattern.FindStringSubmatch(tt.line); (m != nil) != (tt.join != "") {
				t.Errorf("join match = %v, want %q", m, tt.join)
			} else if m != nil && m[1] != tt.join {
				t.Errorf("join name = %q, want %q", m[1], tt.join)
			}
			if m := leavePattern.FindStringSubmatch(tt.line); (m != nil) != (tt.part != "") {
				t.Errorf("leave match = %v, want %q", m, tt.part)
			} else if m != nil && m[1] != tt.part {
				t.Errorf("leave name = %q, want %q", m[1], tt.part)
			}
		})
	}
}
