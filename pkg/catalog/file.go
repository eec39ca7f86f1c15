package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"ship-status-dash/pkg/types"
)

// FileProvider serves the catalog from a YAML config file, optionally reloading it when the file changes.
type FileProvider struct {
	path   string
	logger *logrus.Logger

	mu     sync.RWMutex
	config *types.Config
}

// NewFileProvider loads and validates the config file at path.
func NewFileProvider(path string, logger *logrus.Logger) (*FileProvider, error) {
	config, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	logger.Infof("Loaded configuration with %d components", len(config.Components))
	return &FileProvider{
		path:   path,
		logger: logger,
		config: config,
	}, nil
}

// LoadConfig reads, parses and validates a catalog config file.
func LoadConfig(path string) (*types.Config, error) {
	configFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config types.Config
	if err := yaml.Unmarshal(configFile, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return &config, nil
}

// ListComponents returns a copy of the most recently loaded catalog.
func (p *FileProvider) ListComponents(ctx context.Context) ([]types.Component, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return types.CloneComponents(p.config.Components), nil
}

// Config returns a copy of the most recently loaded configuration.
func (p *FileProvider) Config() *types.Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &types.Config{Components: types.CloneComponents(p.config.Components)}
}

// Reload re-reads the config file. On failure the previously loaded catalog is kept.
func (p *FileProvider) Reload() error {
	config, err := LoadConfig(p.path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.config = config
	p.mu.Unlock()
	p.logger.WithField("config_path", p.path).Infof("Reloaded configuration with %d components", len(config.Components))
	return nil
}

// Watch reloads the catalog whenever the config file is written or replaced, until ctx is done.
// The parent directory is watched, and the file's symlinks are re-resolved on every event in it,
// so editors that swap the file and config-map updates that swap the ..data symlink are both seen.
func (p *FileProvider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", p.path, err)
	}

	target := filepath.Clean(p.path)
	resolved, _ := filepath.EvalSymlinks(p.path)
	logger := p.logger.WithField("config_path", p.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			current, _ := filepath.EvalSymlinks(p.path)
			swapped := current != "" && current != resolved
			written := filepath.Clean(event.Name) == target &&
				(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename))
			if !swapped && !written {
				continue
			}
			if current != "" {
				resolved = current
			}
			if err := p.Reload(); err != nil {
				logger.WithField("error", err).Warn("Failed to reload config file, keeping previous catalog")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithField("error", err).Warn("Config watcher error")
		}
	}
}
