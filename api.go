package detourgo

// Package-level operations on the default registry.

// Install hooks target with detour in the default registry and returns the
// trampoline entry point. The hook starts disabled.
func Install(target, detour uintptr) (uintptr, error) {
	return Default().Install(target, detour)
}

// Enable writes the detour patch for target.
func Enable(target uintptr) error {
	return Default().Enable(target)
}

// Disable restores the original bytes at target.
func Disable(target uintptr) error {
	return Default().Disable(target)
}

// Uninstall removes the hook at target and restores its original bytes.
func Uninstall(target uintptr) error {
	return Default().Uninstall(target)
}

// EnableAll enables every hook in the default registry as one atomic event.
func EnableAll() error {
	return Default().EnableAll()
}

// DisableAll disables every hook in the default registry as one atomic event.
func DisableAll() error {
	return Default().DisableAll()
}

// QueueEnable marks target to be enabled by ApplyQueued.
func QueueEnable(target uintptr) error {
	return Default().QueueEnable(target)
}

// QueueDisable marks target to be disabled by ApplyQueued.
func QueueDisable(target uintptr) error {
	return Default().QueueDisable(target)
}

// ApplyQueued applies every queued transition as one atomic event.
func ApplyQueued() error {
	return Default().ApplyQueued()
}
