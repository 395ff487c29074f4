// Package lua wraps gopher-lua for sandboxed plugin execution.
//
// Each plugin owns exactly one State for its lifetime. A State is built from
// a sandbox.Config: only the allowed stdlib modules are opened, dangerous
// globals are stripped, require is replaced with an allow-list version, and
// every call runs under the config's wall-clock timeout via the VM's context
// support.
//
// # State
//
//	state, err := lua.NewState(sandbox.Default())
//	if err != nil {
//	    return err
//	}
//	defer state.Close()
//
//	value, err := state.EvalFile("plugin.lua")
//
// gopher-lua cannot enforce a hard memory ceiling (there is no allocator
// hook), so the config's memory limit is advisory for this backend. The
// instruction limit is enforced cooperatively: the VM checks its context
// between instructions, so a runaway loop is cancelled at the deadline
// rather than at an exact instruction count.
//
// # Bridge
//
// The Bridge converts values across the Go/Lua boundary in both directions,
// handling nested tables, array detection, and circular references.
package lua
