package circuitbreaker

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// KillSwitch halts all new trading until explicitly reset.
//
// Activation is one-way: only Reset clears it. Check-then-act sequences that
// must not interleave with an activation run inside Guard.
type KillSwitch struct {
	active atomic.Bool // lock-free reads for hot paths

	mu          sync.RWMutex
	reason      string
	activatedAt time.Time
	callbacks   []func(reason string)

	logger *zap.Logger
	now    func() time.Time
}

// Config holds kill switch configuration.
type Config struct {
	Logger *zap.Logger
}

// Status is the kill switch state for HTTP endpoints.
type Status struct {
	Active      bool      `json:"active"`
	Reason      string    `json:"reason,omitempty"`
	ActivatedAt time.Time `json:"activated_at,omitempty"`
}

// New creates an inactive kill switch.
func New(cfg *Config) (ks *KillSwitch, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	ks = &KillSwitch{
		logger: cfg.Logger,
		now:    time.Now,
	}

	KillSwitchActive.Set(0)
	cfg.Logger.Info("kill-switch-initialized")

	return ks, nil
}

// Activate halts trading. Activating an active switch only logs a warning.
// Callbacks run after the lock is released.
func (k *KillSwitch) Activate(reason string) {
	k.mu.Lock()
	if k.active.Load() {
		k.mu.Unlock()
		k.logger.Warn("kill-switch-already-active",
			zap.String("reason", reason))
		return
	}

	k.active.Store(true)
	k.reason = reason
	k.activatedAt = k.now()
	callbacks := make([]func(string), len(k.callbacks))
	copy(callbacks, k.callbacks)
	k.mu.Unlock()

	KillSwitchActive.Set(1)
	KillSwitchActivationsTotal.Inc()

	k.logger.Error("kill-switch-activated",
		zap.String("reason", reason))

	for _, cb := range callbacks {
		k.runCallback(cb, reason)
	}
}

func (k *KillSwitch) runCallback(cb func(string), reason string) {
	defer func() {
		if r := recover(); r != nil {
			k.logger.Error("kill-switch-callback-panic",
				zap.Any("panic", r))
		}
	}()
	cb(reason)
}

// Reset re-enables trading.
func (k *KillSwitch) Reset() {
	k.mu.Lock()
	if !k.active.Load() {
		k.mu.Unlock()
		k.logger.Warn("kill-switch-already-inactive")
		return
	}

	k.active.Store(false)
	k.reason = ""
	k.activatedAt = time.Time{}
	k.mu.Unlock()

	KillSwitchActive.Set(0)
	KillSwitchResetsTotal.Inc()

	k.logger.Warn("kill-switch-reset")
}

// IsActive reports whether trading is halted.
func (k *KillSwitch) IsActive() bool {
	return k.active.Load()
}

// Reason returns the activation reason, or "" when inactive.
func (k *KillSwitch) Reason() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.reason
}

// OnActivate registers a callback fired on each activation.
func (k *KillSwitch) OnActivate(cb func(reason string)) {
	k.mu.Lock()
	k.callbacks = append(k.callbacks, cb)
	k.mu.Unlock()
}

// Guard runs fn with the current state while holding off activation.
// fn must not call Activate or Reset.
func (k *KillSwitch) Guard(fn func(active bool) error) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return fn(k.active.Load())
}

// GetStatus returns the current state.
func (k *KillSwitch) GetStatus() Status {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return Status{
		Active:      k.active.Load(),
		Reason:      k.reason,
		ActivatedAt: k.activatedAt,
	}
}
