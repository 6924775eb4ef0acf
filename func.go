package detourgo

import (
	"reflect"
	"unsafe"
)

type eface struct {
	typ  unsafe.Pointer
	data unsafe.Pointer
}

type funcval struct {
	fn uintptr
}

// InstallFunc hooks target with detour, both ordinary top-level funcs of
// identical type, and returns a callable func value of that same type which
// invokes the unmodified original through the trampoline. The hook starts
// disabled; pass the returned func to the detour's closure before enabling.
//
// Closures are not supported as detours: the patch jumps to raw code, so the
// detour must not need a context register.
func (r *Registry) InstallFunc(target, detour interface{}) (interface{}, error) {
	vt := reflect.ValueOf(target)
	vd := reflect.ValueOf(detour)
	if vt.Kind() != reflect.Func || vd.Kind() != reflect.Func {
		return nil, ErrInputType
	}
	if vt.Type() != vd.Type() {
		return nil, ErrDifferentType
	}

	entry, err := r.Install(vt.Pointer(), vd.Pointer())
	if err != nil {
		return nil, err
	}

	// Wrap the trampoline entry in a funcval carrying the target's type, the
	// same shape the runtime uses for ordinary func values.
	fv := &funcval{fn: entry}
	var original interface{}
	e := (*eface)(unsafe.Pointer(&original))
	e.typ = (*eface)(unsafe.Pointer(&target)).typ
	e.data = unsafe.Pointer(fv)
	return original, nil
}

// InstallFunc installs a typed hook in the default registry.
func InstallFunc(target, detour interface{}) (interface{}, error) {
	return Default().InstallFunc(target, detour)
}
