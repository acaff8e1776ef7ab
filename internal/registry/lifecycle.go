package registry

import (
	"context"
	"fmt"
	"sync"
)

// LifecycleHook runs alongside a client's background work. Relays register one
// so that starting and stopping the client starts and stops them.
type LifecycleHook interface {
	// OnStart is called when the client starts. An error aborts the start.
	OnStart(ctx context.Context) error

	// OnStop is called when the client stops or closes.
	OnStop(ctx context.Context) error
}

// LifecycleHookFunc adapts plain functions to LifecycleHook. Nil functions are no-ops.
type LifecycleHookFunc struct {
	OnStartFunc func(ctx context.Context) error
	OnStopFunc  func(ctx context.Context) error
}

// OnStart calls OnStartFunc if it's not nil.
func (f LifecycleHookFunc) OnStart(ctx context.Context) error {
	if f.OnStartFunc != nil {
		return f.OnStartFunc(ctx)
	}
	return nil
}

// OnStop calls OnStopFunc if it's not nil.
func (f LifecycleHookFunc) OnStop(ctx context.Context) error {
	if f.OnStopFunc != nil {
		return f.OnStopFunc(ctx)
	}
	return nil
}

// LifecycleManager runs registered hooks in order on start and in reverse order on stop.
type LifecycleManager struct {
	mu      sync.RWMutex
	hooks   []LifecycleHook
	running bool
}

// NewLifecycleManager creates a new lifecycle manager.
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{
		hooks: make([]LifecycleHook, 0),
	}
}

// RegisterHook adds a hook. A hook registered while the manager is running is
// started immediately.
func (lm *LifecycleManager) RegisterHook(ctx context.Context, hook LifecycleHook) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lm.running {
		if err := hook.OnStart(ctx); err != nil {
			return fmt.Errorf("failed to start hook: %w", err)
		}
	}
	lm.hooks = append(lm.hooks, hook)
	return nil
}

// Start runs every OnStart hook. When one fails, the hooks already started are
// stopped again and the error is returned.
func (lm *LifecycleManager) Start(ctx context.Context) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lm.running {
		return nil
	}
	for i, hook := range lm.hooks {
		if err := hook.OnStart(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = lm.hooks[j].OnStop(ctx)
			}
			return fmt.Errorf("failed to start hook %d: %w", i, err)
		}
	}
	lm.running = true
	return nil
}

// Stop runs every OnStop hook in reverse registration order. All hooks run even
// when some fail; the failures are returned together.
func (lm *LifecycleManager) Stop(ctx context.Context) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if !lm.running {
		return nil
	}
	lm.running = false

	var errs []error
	for i := len(lm.hooks) - 1; i >= 0; i-- {
		if err := lm.hooks[i].OnStop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during stop: %v", errs)
	}
	return nil
}

// IsRunning reports whether Start has succeeded without a later Stop.
func (lm *LifecycleManager) IsRunning() bool {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.running
}

// HookCount returns the number of registered hooks.
func (lm *LifecycleManager) HookCount() int {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return len(lm.hooks)
}
