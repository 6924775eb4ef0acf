package detourgo

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fengyoulin/detourgo/internal/inst"
	"github.com/fengyoulin/detourgo/internal/mem"
)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger attaches a logger to the registry. Without it the registry is
// silent.
func WithLogger(log *zap.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// WithDecodeWindow sets how many bytes past a target are read while searching
// for the patch boundary. Values too small to fit a patch plus one maximal
// instruction are ignored.
func WithDecodeWindow(n int) Option {
	return func(r *Registry) {
		if n >= patchSize+inst.MaxLen {
			r.window = n
		}
	}
}

// Registry owns every hook it installs. All mutations are serialized by a
// single lock; steady-state calls through installed patches and trampolines
// never take it.
type Registry struct {
	mu     sync.Mutex
	hooks  map[uintptr]*Hook
	log    *zap.Logger
	window int
	closed bool
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		hooks:  make(map[uintptr]*Hook),
		log:    zap.NewNop(),
		window: decodeWindow,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry, created on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = New()
	})
	return defaultReg
}

// Install hooks the function at target with the detour at detour, in the
// disabled state, and returns the trampoline entry point for calling the
// unmodified original. The patch is not written until Enable.
func (r *Registry) Install(target, detour uintptr) (uintptr, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ErrClosed
	}
	if _, ok := r.hooks[target]; ok {
		return 0, errors.WithMessagef(ErrAlreadyInstalled, "target %#x", target)
	}
	exec, err := mem.IsExecutable(target)
	if err != nil {
		return 0, errors.WithMessagef(ErrMemoryProtect, "%v", err)
	}
	if !exec {
		return 0, errors.WithMessagef(ErrNotExecutable, "target %#x", target)
	}

	window := mem.Read(target, r.window)
	block, entry, cut, err := buildTrampoline(target, detour, window)
	if err != nil {
		return 0, err
	}

	patch, err := jumpRel32(target, patchDest(block.Addr(), detour))
	if err != nil {
		_ = block.Free()
		return 0, errors.WithMessagef(ErrAllocation, "%v", err)
	}

	h := &Hook{
		target:     target,
		detour:     detour,
		original:   append([]byte(nil), window[:patchSize]...),
		patch:      patch,
		block:      block,
		trampoline: entry,
	}
	r.hooks[target] = h

	r.log.Debug("hook installed",
		zap.String("target", hex(target)),
		zap.String("detour", hex(detour)),
		zap.String("trampoline", hex(entry)),
		zap.Int("cut", cut),
	)
	return entry, nil
}

// Enable writes the detour patch for target. Enabling an enabled hook is a
// no-op.
func (r *Registry) Enable(target uintptr) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setEnabled(target, true)
}

// Disable restores the original bytes at target. Disabling a disabled hook
// is a no-op.
func (r *Registry) Disable(target uintptr) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setEnabled(target, false)
}

func (r *Registry) setEnabled(target uintptr, want bool) error {
	if r.closed {
		return ErrClosed
	}
	h, ok := r.hooks[target]
	if !ok {
		return errors.WithMessagef(ErrNotInstalled, "target %#x", target)
	}
	if h.poisoned {
		return errors.WithMessagef(ErrThreadOperation, "hook at %#x is in an unknown state", target)
	}
	if h.enabled == want {
		return nil
	}
	if err := r.flip([]*Hook{h}, []bool{want}); err != nil {
		return err
	}
	r.log.Debug("hook toggled", zap.String("target", hex(target)), zap.Bool("enabled", want))
	return nil
}

// flip transitions the given hooks to the wanted states under one freeze.
// Hooks already in the wanted state must be filtered out by the caller.
func (r *Registry) flip(hooks []*Hook, want []bool) error {
	writes := make([]codeWrite, len(hooks))
	for i, h := range hooks {
		data := h.original
		if want[i] {
			data = h.patch
		}
		writes[i] = codeWrite{addr: h.target, data: data, expect: h.current()}
	}
	if err := applyWrites(writes); err != nil {
		if errors.Is(err, ErrThreadOperation) {
			for _, h := range hooks {
				h.poisoned = true
			}
		}
		return err
	}
	for i, h := range hooks {
		h.enabled = want[i]
	}
	return nil
}

// Uninstall disables the hook at target if needed, frees its trampoline and
// forgets it. The target bytes end up identical to their pre-install state.
func (r *Registry) Uninstall(target uintptr) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	h, ok := r.hooks[target]
	if !ok {
		return errors.WithMessagef(ErrNotInstalled, "target %#x", target)
	}
	if h.poisoned {
		return errors.WithMessagef(ErrThreadOperation, "hook at %#x is in an unknown state", target)
	}
	if h.enabled {
		if err := r.flip([]*Hook{h}, []bool{false}); err != nil {
			return err
		}
	}
	delete(r.hooks, target)
	err := h.block.Free()
	if err != nil {
		err = errors.WithMessagef(ErrAllocation, "free trampoline: %v", err)
	}
	r.log.Debug("hook uninstalled", zap.String("target", hex(target)))
	return err
}

// EnableAll enables every installed hook under a single freeze. All hooks
// transition or none do.
func (r *Registry) EnableAll() error {
	return r.flipAll(true)
}

// DisableAll disables every installed hook under a single freeze. All hooks
// transition or none do.
func (r *Registry) DisableAll() error {
	return r.flipAll(false)
}

func (r *Registry) flipAll(want bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	var hooks []*Hook
	var wants []bool
	for _, h := range r.hooks {
		if h.poisoned {
			return errors.WithMessagef(ErrThreadOperation, "hook at %#x is in an unknown state", h.target)
		}
		if h.enabled != want {
			hooks = append(hooks, h)
			wants = append(wants, want)
		}
	}
	if len(hooks) == 0 {
		return nil
	}
	if err := r.flip(hooks, wants); err != nil {
		return err
	}
	r.log.Debug("hooks toggled", zap.Int("count", len(hooks)), zap.Bool("enabled", want))
	return nil
}

// QueueEnable marks the hook at target to be enabled by the next ApplyQueued,
// without touching any code.
func (r *Registry) QueueEnable(target uintptr) error {
	return r.queue(target, queueEnable)
}

// QueueDisable marks the hook at target to be disabled by the next
// ApplyQueued, without touching any code.
func (r *Registry) QueueDisable(target uintptr) error {
	return r.queue(target, queueDisable)
}

func (r *Registry) queue(target uintptr, q queuedState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	h, ok := r.hooks[target]
	if !ok {
		return errors.WithMessagef(ErrNotInstalled, "target %#x", target)
	}
	h.queued = q
	return nil
}

// ApplyQueued performs every queued transition under a single freeze. All
// pending transitions apply or none do; queue marks are consumed either way
// only on success.
func (r *Registry) ApplyQueued() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	var hooks []*Hook
	var wants []bool
	for _, h := range r.hooks {
		if h.queued == queueNone {
			continue
		}
		if h.poisoned {
			return errors.WithMessagef(ErrThreadOperation, "hook at %#x is in an unknown state", h.target)
		}
		want := h.queued == queueEnable
		if h.enabled != want {
			hooks = append(hooks, h)
			wants = append(wants, want)
		}
	}
	if len(hooks) > 0 {
		if err := r.flip(hooks, wants); err != nil {
			return err
		}
	}
	for _, h := range r.hooks {
		h.queued = queueNone
	}
	return nil
}

// Close disables every hook, frees every trampoline and shuts the registry
// down. Further calls on a closed registry fail with ErrClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	var errs error
	var hooks []*Hook
	var wants []bool
	for _, h := range r.hooks {
		if h.enabled && !h.poisoned {
			hooks = append(hooks, h)
			wants = append(wants, false)
		}
	}
	if len(hooks) > 0 {
		errs = multierr.Append(errs, r.flip(hooks, wants))
	}
	for _, h := range r.hooks {
		if h.poisoned || h.enabled {
			// Leave live or unknown code alone rather than unmap the block a
			// running thread may be inside.
			continue
		}
		errs = multierr.Append(errs, h.block.Free())
	}
	r.hooks = make(map[uintptr]*Hook)
	r.closed = true
	return errs
}

func hex(v uintptr) string {
	return fmt.Sprintf("%#x", v)
}
