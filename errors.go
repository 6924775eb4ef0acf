package detourgo

import (
	"errors"
)

var (
	// ErrAlreadyInstalled means a hook already exists for the target address.
	ErrAlreadyInstalled = errors.New("hook already installed for target")
	// ErrNotInstalled means no hook exists for the target address.
	ErrNotInstalled = errors.New("no hook installed for target")
	// ErrUnsupportedInstruction means the prologue could not be decoded or
	// relocated safely.
	ErrUnsupportedInstruction = errors.New("unsupported instruction in prologue")
	// ErrAllocation means executable memory for the trampoline could not be
	// obtained.
	ErrAllocation = errors.New("trampoline allocation failed")
	// ErrMemoryProtect means a page protection change failed.
	ErrMemoryProtect = errors.New("memory protection change failed")
	// ErrThreadOperation means the freeze/patch/resume step failed; the hook
	// involved must not be retried.
	ErrThreadOperation = errors.New("thread freeze or patch verification failed")
	// ErrNotExecutable means the target address is not inside an executable
	// mapping.
	ErrNotExecutable = errors.New("target is not executable")
	// ErrDifferentType means target and detour funcs are of different types.
	ErrDifferentType = errors.New("inputs are of different type")
	// ErrInputType means inputs are not func type.
	ErrInputType = errors.New("inputs are not func type")
	// ErrClosed means the registry has been shut down.
	ErrClosed = errors.New("registry is closed")
)
