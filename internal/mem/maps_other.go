//go:build !linux && !windows

package mem

// IsExecutable has no cheap portable answer outside Linux; assume the caller
// handed in a real code address.
func IsExecutable(addr uintptr) (bool, error) {
	return true, nil
}
