// Package minecraft is the Minecraft driver: it provisions instance
// directories, persists instance settings, and manages the server process.
package minecraft

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/outpost-sh/outpost/internal/instance"
)

const defaultMaxPlayers = 20

// persisted is the on-disk shape of the marker file.
type persisted struct {
	instance.SetupConfig
	MaxPlayers int `json:"max_players"`
}

// Instance is a provisioned Minecraft server. All field access goes through
// the instance's own mutex; the registry lock is never needed here.
type Instance struct {
	mu         sync.Mutex
	cfg        instance.SetupConfig
	maxPlayers int
	state      instance.State
	players    map[string]instance.Player
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	done       chan struct{}
	log        *logrus.Entry
}

func newInstance(cfg instance.SetupConfig, maxPlayers int) *Instance {
	return &Instance{
		cfg:        cfg,
		maxPlayers: maxPlayers,
		state:      instance.StateStopped,
		players:    make(map[string]instance.Player),
		log: logrus.WithFields(logrus.Fields{
			"instance": cfg.Name,
			"uuid":     cfg.ID,
		}),
	}
}

func (i *Instance) ID() instance.ID { return i.cfg.ID }

func (i *Instance) Name() string { return i.cfg.Name }

func (i *Instance) Path() string { return i.cfg.Path }

func (i *Instance) Port() int { return i.cfg.Port }

func (i *Instance) State() instance.State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

func (i *Instance) Info() instance.Info {
	i.mu.Lock()
	defer i.mu.Unlock()
	return instance.Info{
		ID:             i.cfg.ID,
		Name:           i.cfg.Name,
		Description:    i.cfg.Description,
		GameType:       i.cfg.GameType,
		Flavour:        i.cfg.Flavour,
		Version:        i.cfg.Version,
		Port:           i.cfg.Port,
		State:          i.state,
		PlayerCount:    len(i.players),
		MaxPlayerCount: i.maxPlayers,
		CreationTime:   i.cfg.CreationTime,
		Path:           i.cfg.Path,
	}
}

// Start launches the server process. The instance must be Stopped.
func (i *Instance) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state != instance.StateStopped {
		return fmt.Errorf("cannot start instance in state %s", i.state)
	}

	jar := filepath.Join(i.cfg.Path, "server.jar")
	if _, err := os.Stat(jar); err != nil {
		return fmt.Errorf("server jar missing: %w", err)
	}

	args := []string{
		fmt.Sprintf("-Xms%dM", i.cfg.MinRAMMB),
		fmt.Sprintf("-Xmx%dM", i.cfg.MaxRAMMB),
	}
	args = append(args, i.cfg.CmdArgs...)
	args = append(args, "-jar", "server.jar", "nogui")

	cmd := exec.Command("java", args...)
	cmd.Dir = i.cfg.Path

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server process: %w", err)
	}

	i.cmd = cmd
	i.stdin = stdin
	i.done = make(chan struct{})
	i.state = instance.StateRunning
	i.log.WithField("pid", cmd.Process.Pid).Info("server process started")

	go i.followOutput(stdout)
	go i.watch(cmd, i.done)

	return nil
}

// followOutput tracks player joins and leaves from the server log.
var (
	joinPattern  = regexp.MustCompile(`\]: (\w+)\[.*\] logged in`)
	leavePattern = regexp.MustCompile(`\]: (\w+) left the game`)
)

func (i *Instance) followOutput(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if m := joinPattern.FindStringSubmatch(line); m != nil {
			i.mu.Lock()
			i.players[m[1]] = instance.Player{Name: m[1]}
			i.mu.Unlock()
		} else if m := leavePattern.FindStringSubmatch(line); m != nil {
			i.mu.Lock()
			delete(i.players, m[1])
			i.mu.Unlock()
		}
	}
}

// watch reaps the server process and settles the instance state when it
// exits, whether through Stop or a crash.
func (i *Instance) watch(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()
	close(done)

	i.mu.Lock()
	crashed := i.state == instance.StateRunning
	i.state = instance.StateStopped
	i.players = make(map[string]instance.Player)
	i.cmd = nil
	i.stdin = nil
	restart := crashed && i.cfg.RestartOnCrash
	i.mu.Unlock()

	if crashed {
		i.log.WithError(err).Warn("server process exited unexpectedly")
		if restart {
			i.log.Info("restart_on_crash set, restarting server")
			if err := i.Start(context.Background()); err != nil {
				i.log.WithError(err).Error("crash restart failed")
			}
		}
		return
	}
	i.log.Info("server process stopped")
}

// Stop asks the server to shut down and waits for the process to exit.
func (i *Instance) Stop(ctx context.Context) error {
	i.mu.Lock()
	if i.state != instance.StateRunning {
		i.mu.Unlock()
		return fmt.Errorf("cannot stop instance in state %s", i.state)
	}
	i.state = instance.StateStopping
	stdin := i.stdin
	cmd := i.cmd
	done := i.done
	i.mu.Unlock()

	if _, err := io.WriteString(stdin, "stop\n"); err != nil {
		i.log.WithError(err).Warn("stop command write failed, killing process")
		cmd.Process.Kill()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		cmd.Process.Kill()
		return ctx.Err()
	case <-time.After(30 * time.Second):
		i.log.Warn("server did not stop in time, killing process")
		cmd.Process.Kill()
		<-done
		return nil
	}
}

func (i *Instance) PlayerCount() (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.players), nil
}

func (i *Instance) MaxPlayerCount() (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.maxPlayers, nil
}

// SetMaxPlayerCount updates the limit and persists it to the marker file and
// server.properties. Takes effect on next server start.
func (i *Instance) SetMaxPlayerCount(count int) error {
	if count < 0 {
		return fmt.Errorf("max player count must not be negative")
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	prev := i.maxPlayers
	i.maxPlayers = count
	if err := i.persistLocked(); err != nil {
		i.maxPlayers = prev
		return err
	}
	return writeServerProperties(i.cfg, count)
}

func (i *Instance) Players() ([]instance.Player, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]instance.Player, 0, len(i.players))
	for _, p := range i.players {
		out = append(out, p)
	}
	return out, nil
}

// persistLocked rewrites the marker file. Caller holds i.mu.
func (i *Instance) persistLocked() error {
	data, err := json.MarshalIndent(persisted{SetupConfig: i.cfg, MaxPlayers: i.maxPlayers}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(i.cfg.Path, instance.ConfigFileName), data, 0o644)
}

func writeServerProperties(cfg instance.SetupConfig, maxPlayers int) error {
	content := fmt.Sprintf(
		"server-port=%d\nmax-players=%d\nmotd=%s\nenable-query=true\n",
		cfg.Port, maxPlayers, cfg.Name,
	)
	return os.WriteFile(filepath.Join(cfg.Path, "server.properties"), []byte(content), 0o644)
}
