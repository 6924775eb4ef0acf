// Package detourgo is an inline-hooking engine for x86 and x86-64 code.
// Given the address of a compiled function it redirects calls into a
// caller-supplied detour, while a generated trampoline keeps the original
// behavior callable from inside the detour.
//
// How a hook works:
//
//	TARGET FUNCTION
//	 - the first instructions are overwritten by a 5-byte jump (the patch)
//
//	RELAY (x86-64 only)
//	 - a register-free absolute jump placed next to the trampoline,
//	   so the 5-byte patch can reach a detour anywhere in the address space
//
//	TRAMPOLINE
//	 - holds the instructions the patch displaced, relocated so relative
//	   operands still point at their original destinations
//	 - ends with a jump back to the rest of the target function
//	 - calling it behaves exactly like calling the unhooked target
//
// Hooks are owned by a Registry. Install creates a hook in the disabled
// state and hands back the trampoline; Enable and Disable flip the live
// patch; Uninstall restores the original bytes exactly. Every flip happens
// with the world stopped, so no thread ever executes a half-written
// instruction sequence. EnableAll, DisableAll and the Queue/ApplyQueued
// operations batch several flips into one stop.
//
// The engine patches native-convention prologues. It never inspects argument
// types; pairing a detour's signature with its target is the caller's
// problem, with InstallFunc as a reflect-checked convenience for ordinary Go
// funcs.
//
// On Go 1.23 and newer, build with -ldflags=-checklinkname=0 for the
// stop-the-world freeze.
package detourgo
