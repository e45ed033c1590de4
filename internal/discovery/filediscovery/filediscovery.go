// Package filediscovery implements discovery.Provider by walking a
// directory of manifest.yaml/manifest.json files — the Go-native analogue
// of the teacher's filesystem plugin scan (discoverDynamicPlugins). Change
// notification is push-based via fsnotify rather than polling.
package filediscovery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/kb-labs/plugin-gateway/internal/logger"
	"github.com/kb-labs/plugin-gateway/internal/manifest"
	"github.com/kb-labs/plugin-gateway/internal/registry"
)

// Provider scans Dir for one manifest file per plugin subdirectory.
type Provider struct {
	Dir     string
	watcher *fsnotify.Watcher
}

// New builds a filesystem-backed discovery provider rooted at dir.
func New(dir string) *Provider {
	return &Provider{Dir: dir}
}

var manifestNames = []string{"manifest.yaml", "manifest.yml", "manifest.json"}

// Scan walks Dir, reading one manifest file per immediate subdirectory.
// Malformed manifests are recorded as per-plugin discovery errors rather
// than aborting the whole scan (§3 RegistrySnapshot.errors, §4.9 error
// policy).
func (p *Provider) Scan(ctx context.Context) (*registry.Snapshot, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &registry.Snapshot{}, nil
		}
		return nil, fmt.Errorf("reading discovery dir %s: %w", p.Dir, err)
	}

	snap := &registry.Snapshot{}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pluginRoot := filepath.Join(p.Dir, entry.Name())

		manifestPath, ok := findManifestFile(pluginRoot)
		if !ok {
			continue
		}

		m, err := loadManifest(manifestPath)
		if err != nil {
			snap.Errors = append(snap.Errors, registry.DiscoveryError{
				PluginID: entry.Name(),
				Error:    truncate(err.Error(), 120),
			})
			snap.Corrupted = true
			continue
		}
		m.PluginRoot = pluginRoot

		snap.Manifests = append(snap.Manifests, registry.ManifestEntry{
			PluginID:   m.ID,
			Manifest:   m,
			PluginRoot: pluginRoot,
			Source:     "filesystem",
		})
	}

	return snap, nil
}

func findManifestFile(pluginRoot string) (string, bool) {
	for _, name := range manifestNames {
		candidate := filepath.Join(pluginRoot, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

func loadManifest(path string) (manifest.ManifestV3, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return manifest.ManifestV3{}, err
	}

	var m manifest.ManifestV3
	if filepath.Ext(path) == ".json" {
		if err := json.Unmarshal(data, &m); err != nil {
			return manifest.ManifestV3{}, err
		}
		return m, nil
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return manifest.ManifestV3{}, err
	}
	return m, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// Watch starts an fsnotify watcher over Dir (non-recursive per-plugin
// subdirectories are added as they're discovered) and invokes onSignal
// whenever a write/create/remove event fires.
func (p *Provider) Watch(ctx context.Context, onSignal func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	p.watcher = watcher

	if err := watcher.Add(p.Dir); err != nil {
		logger.Discovery().Warn().Err(err).Str("dir", p.Dir).Msg("could not watch discovery dir")
	}
	if entries, err := os.ReadDir(p.Dir); err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				_ = watcher.Add(filepath.Join(p.Dir, entry.Name()))
			}
		}
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					onSignal()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Discovery().Warn().Err(err).Msg("fsnotify watch error")
			}
		}
	}()

	return nil
}

// Close releases the fsnotify watcher, if one was started.
func (p *Provider) Close() error {
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}
