package armsim

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
)

type EngineEntry struct {
	engine    *Engine
	config    *Config
	refCount  int64 // Atomic reference counter
	lastError error
	mu        sync.RWMutex
}

// EngineRegistry shares engines between collaborators by name. The first
// Acquire creates the engine; it is closed when the last holder releases it.
type EngineRegistry struct {
	entries map[string]*EngineEntry // engine name -> entry
	mu      sync.RWMutex
}

func NewEngineRegistry() *EngineRegistry {
	return &EngineRegistry{
		entries: make(map[string]*EngineEntry),
	}
}

// Acquire returns the engine registered under name, creating it from config
// when absent. Asking for an existing name with a different config is a
// conflict.
func (r *EngineRegistry) Acquire(name string, config *Config, logger logging.Logger, opts ...Option) (*Engine, error) {
	if config == nil {
		config = &Config{}
	}
	config = config.Clone()
	config.Name = name
	if _, _, err := config.Validate(name); err != nil {
		return nil, err
	}

	r.mu.RLock()
	entry, exists := r.entries[name]
	r.mu.RUnlock()

	if exists {
		return r.getExistingEngine(entry, config)
	}

	return r.createNewEngine(name, config, logger, opts...)
}

func (r *EngineRegistry) getExistingEngine(entry *EngineEntry, config *Config) (*Engine, error) {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.engine == nil {
		if entry.lastError != nil {
			return nil, fmt.Errorf("cached engine creation error: %w", entry.lastError)
		}
		return nil, fmt.Errorf("engine %q is not available", config.Name)
	}

	if !configsEqual(entry.config, config) {
		currentRefCount := atomic.LoadInt64(&entry.refCount)
		return nil, fmt.Errorf("conflict: existing engine %q uses different config (refCount: %d)", config.Name, currentRefCount)
	}

	atomic.AddInt64(&entry.refCount, 1)
	return entry.engine, nil
}

func (r *EngineRegistry) createNewEngine(name string, config *Config, logger logging.Logger, opts ...Option) (*Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, exists := r.entries[name]; exists && entry.engine != nil {
		return r.getExistingEngine(entry, config)
	}

	entry := &EngineEntry{config: config}

	engine, err := NewEngine(config, logger, opts...)
	if err != nil {
		entry.lastError = err
		r.entries[name] = entry
		return nil, fmt.Errorf("failed to create engine %q: %w", name, err)
	}

	entry.engine = engine
	atomic.StoreInt64(&entry.refCount, 1)
	r.entries[name] = entry

	engine.logger.Debugf("registered engine %q", name)
	return engine, nil
}

// Release drops one reference and closes the engine at zero.
func (r *EngineRegistry) Release(ctx context.Context, name string) error {
	r.mu.RLock()
	entry, exists := r.entries[name]
	r.mu.RUnlock()

	if !exists {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if atomic.AddInt64(&entry.refCount, -1) > 0 {
		return nil
	}

	var err error
	if entry.engine != nil {
		err = entry.engine.Close(ctx)
	}

	r.mu.Lock()
	delete(r.entries, name)
	r.mu.Unlock()

	entry.engine = nil
	entry.config = nil
	atomic.StoreInt64(&entry.refCount, 0)
	entry.lastError = nil
	return err
}

// ForceClose closes the engine regardless of outstanding references.
func (r *EngineRegistry) ForceClose(ctx context.Context, name string) error {
	r.mu.Lock()
	entry, exists := r.entries[name]
	if exists {
		delete(r.entries, name)
	}
	r.mu.Unlock()

	if !exists {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	var err error
	if entry.engine != nil {
		err = entry.engine.Close(ctx)
		entry.engine = nil
		entry.config = nil
		atomic.StoreInt64(&entry.refCount, 0)
		entry.lastError = nil
	}

	return err
}

// CloseAll force closes every engine and folds their errors together.
func (r *EngineRegistry) CloseAll(ctx context.Context) error {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.RUnlock()

	var err error
	for _, name := range names {
		err = multierr.Combine(err, r.ForceClose(ctx, name))
	}
	return err
}

// Status returns the reference count, whether a live engine exists and a
// short summary of its config.
func (r *EngineRegistry) Status(name string) (int64, bool, string) {
	r.mu.RLock()
	entry, exists := r.entries[name]
	r.mu.RUnlock()

	if !exists {
		return 0, false, ""
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()

	currentRefCount := atomic.LoadInt64(&entry.refCount)
	hasEngine := entry.engine != nil
	configSummary := ""

	if entry.config != nil {
		modelInfo := "default"
		if len(entry.config.DH) > 0 || len(entry.config.Joints) > 0 || entry.config.Workspace != nil {
			modelInfo = "custom"
		}
		configSummary = fmt.Sprintf("Model: %s, Steps: %d, Min move: %v",
			modelInfo, entry.config.InterpolationSteps, entry.config.MinMoveDuration)
	}

	return currentRefCount, hasEngine, configSummary
}

var defaultRegistry = NewEngineRegistry()

// GetSharedEngine acquires name from the package registry.
func GetSharedEngine(name string, config *Config, logger logging.Logger) (*Engine, error) {
	return defaultRegistry.Acquire(name, config, logger)
}

func ReleaseSharedEngine(ctx context.Context, name string) error {
	return defaultRegistry.Release(ctx, name)
}

func SharedEngineStatus(name string) (int64, bool, string) {
	return defaultRegistry.Status(name)
}
