package minecraft

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/outpost-sh/outpost/internal/instance"
)

const defaultManifestURL = "https://launchermeta.mojang.com/mc/game/version_manifest.json"

// Factory provisions Minecraft instances.
type Factory struct {
	// ManifestURL is the Mojang version manifest endpoint. Overridable for
	// tests and mirrors.
	ManifestURL string
	Client      *http.Client
}

func NewFactory() *Factory {
	return &Factory{
		ManifestURL: defaultManifestURL,
		Client:      &http.Client{Timeout: 5 * time.Minute},
	}
}

// Create materializes an instance directory from the config: eula,
// server.properties, the server jar, and finally the marker file. The marker
// is written last so that its presence always means a completed creation.
// On error the directory is left for the caller to discard.
func (f *Factory) Create(ctx context.Context, cfg instance.SetupConfig) (instance.Instance, error) {
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create instance directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(cfg.Path, "eula.txt"), []byte("eula=true\n"), 0o644); err != nil {
		return nil, err
	}
	if err := writeServerProperties(cfg, defaultMaxPlayers); err != nil {
		return nil, err
	}

	if err := f.downloadServerJar(ctx, cfg.Flavour, cfg.Version, filepath.Join(cfg.Path, "server.jar")); err != nil {
		return nil, fmt.Errorf("failed to fetch server jar: %w", err)
	}

	inst := newInstance(cfg, defaultMaxPlayers)
	inst.mu.Lock()
	err := inst.persistLocked()
	inst.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to write instance config: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"instance": cfg.Name,
		"uuid":     cfg.ID,
		"path":     cfg.Path,
	}).Info("instance provisioned")
	return inst, nil
}

// Restore loads every instance with a marker file under instancesDir.
// Directories without a marker are half-provisioned leftovers and skipped.
func (f *Factory) Restore(instancesDir string) ([]instance.Instance, error) {
	entries, err := os.ReadDir(instancesDir)
	if err != nil {
		return nil, err
	}

	var out []instance.Instance
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		markerPath := filepath.Join(instancesDir, entry.Name(), instance.ConfigFileName)
		data, err := os.ReadFile(markerPath)
		if err != nil {
			logrus.WithField("dir", entry.Name()).Warn("instance directory without config marker, skipping")
			continue
		}

		var p persisted
		if err := json.Unmarshal(data, &p); err != nil {
			logrus.WithError(err).WithField("dir", entry.Name()).Error("corrupt instance config, skipping")
			continue
		}
		// The directory may have been moved since it was written.
		p.SetupConfig.Path = filepath.Join(instancesDir, entry.Name())
		out = append(out, newInstance(p.SetupConfig, p.MaxPlayers))
	}
	return out, nil
}

// Mojang version manifest shapes, reduced to the fields used here.
type versionManifest struct {
	Latest struct {
		Release string `json:"release"`
	} `json:"latest"`
	Versions []struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"versions"`
}

type versionDetail struct {
	Downloads struct {
		Server struct {
			URL string `json:"url"`
		} `json:"server"`
	} `json:"downloads"`
}

func (f *Factory) downloadServerJar(ctx context.Context, flavour, version, dest string) error {
	if flavour != "" && flavour != "vanilla" {
		return fmt.Errorf("unsupported flavour %q", flavour)
	}

	var manifest versionManifest
	if err := f.getJSON(ctx, f.ManifestURL, &manifest); err != nil {
		return err
	}

	if version == "" || version == "latest" {
		version = manifest.Latest.Release
	}
	var detailURL string
	for _, v := range manifest.Versions {
		if v.ID == version {
			detailURL = v.URL
			break
		}
	}
	if detailURL == "" {
		return fmt.Errorf("unknown version %q", version)
	}

	var detail versionDetail
	if err := f.getJSON(ctx, detailURL, &detail); err != nil {
		return err
	}
	if detail.Downloads.Server.URL == "" {
		return fmt.Errorf("version %q has no server download", version)
	}

	return f.downloadFile(ctx, detail.Downloads.Server.URL, dest)
}

func (f *Factory) getJSON(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (f *Factory) downloadFile(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
