// Package plugins manages user-defined metric plugins: definitions are
// validated remotely before they are accepted, persisted locally, and
// executions are cached content-addressed so unchanged code never reruns.
package plugins

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okrause/seriesdash/internal/logger"
	"github.com/okrause/seriesdash/internal/models"
	"github.com/okrause/seriesdash/internal/store"
)

// PluginCaller is the remote surface the service needs.
type PluginCaller interface {
	ValidatePlugin(ctx context.Context, code string) (bool, string, error)
	ExecutePlugin(ctx context.Context, code, category string, files []string, window models.Window) (map[string]map[string]float64, error)
}

// Config holds configuration for the plugin service.
type Config struct {
	CacheTTL time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{CacheTTL: time.Hour}
}

// ErrInvalidCode is returned by Add when the server rejects the plugin.
type ErrInvalidCode struct {
	Reason string
}

func (e *ErrInvalidCode) Error() string {
	if e.Reason == "" {
		return "plugin code rejected by the service"
	}
	return "plugin code rejected: " + e.Reason
}

// Service owns the plugin definitions and their execution cache.
type Service struct {
	caller PluginCaller
	store  *store.Store
	config Config

	mu      sync.RWMutex
	plugins []models.Plugin
}

// New creates the service and loads persisted plugin definitions.
func New(caller PluginCaller, st *store.Store, config Config) *Service {
	if config.CacheTTL == 0 {
		config = DefaultConfig()
	}

	s := &Service{caller: caller, store: st, config: config}

	if st != nil {
		var saved []models.Plugin
		if ok, err := st.Load(store.KeyPlugins, &saved); err != nil {
			logger.Warn("failed to load plugin definitions", "error", err)
		} else if ok {
			s.plugins = saved
		}
	}
	return s
}

// Plugins returns the defined plugins in definition order.
func (s *Service) Plugins() []models.Plugin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Plugin(nil), s.plugins...)
}

// Get returns a plugin by name.
func (s *Service) Get(name string) (models.Plugin, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.plugins {
		if p.Name == name {
			return p, true
		}
	}
	return models.Plugin{}, false
}

// Add validates code against the service and, when accepted, stores the
// plugin under name. An existing plugin of the same name is replaced; its
// cached executions stay behind but are unreachable, the hash covers the
// code.
func (s *Service) Add(ctx context.Context, name, code string) (models.Plugin, error) {
	if name == "" {
		return models.Plugin{}, fmt.Errorf("plugin name must not be empty")
	}

	valid, reason, err := s.caller.ValidatePlugin(ctx, code)
	if err != nil {
		return models.Plugin{}, fmt.Errorf("failed to validate plugin %q: %w", name, err)
	}
	if !valid {
		return models.Plugin{}, &ErrInvalidCode{Reason: reason}
	}

	plugin := models.Plugin{Name: name, Code: code, CreatedAt: time.Now()}

	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	for i, p := range s.plugins {
		if p.Name == name {
			s.plugins[i] = plugin
			replaced = true
			break
		}
	}
	if !replaced {
		s.plugins = append(s.plugins, plugin)
	}
	s.persistLocked()

	logger.Info("plugin defined", "name", name, "replaced", replaced)
	return plugin, nil
}

// Remove deletes a plugin definition by name.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.plugins {
		if p.Name == name {
			s.plugins = append(s.plugins[:i], s.plugins[i+1:]...)
			s.persistLocked()
			return true
		}
	}
	return false
}

func (s *Service) persistLocked() {
	if s.store == nil {
		return
	}
	if err := s.store.Save(store.KeyPlugins, s.plugins); err != nil {
		logger.Warn("failed to persist plugin definitions", "error", err)
	}
}

// Run executes a plugin over one category's files, serving from the cache
// when a fresh entry exists for the exact code, file set and window.
func (s *Service) Run(ctx context.Context, p models.Plugin, category string, files []string, window models.Window) (map[string]map[string]float64, error) {
	hash := cacheHash(p.Code, category, files, window)

	if results, ok := s.cacheGet(hash); ok {
		logger.Debug("plugin cache hit", "plugin", p.Name, "category", category)
		return results, nil
	}

	results, err := s.caller.ExecutePlugin(ctx, p.Code, category, files, window)
	if err != nil {
		return nil, err
	}

	s.cachePut(hash, results)
	return results, nil
}
