package lua

import (
	"context"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/tuiplug/internal/plugin/sandbox"
)

// State wraps gopher-lua for sandboxed plugin execution.
//
// IMPORTANT: gopher-lua's LState is not goroutine-safe. The mutex in this
// struct serializes access from Go code, but Lua execution itself is
// single-threaded.
//
// The sandbox config's memory limit is advisory only - gopher-lua does not
// provide an allocator hook to enforce hard memory limits. The timeout is
// enforced via the VM's context support: the interpreter checks the context
// between instructions, so even a tight Lua loop is cancelled at the
// deadline.
type State struct {
	L *lua.LState

	mu     sync.Mutex
	cfg    sandbox.Config
	closed bool
}

// NewState creates a sandboxed Lua state. Only the standard libraries the
// config allows are opened, dangerous globals are stripped, and require is
// replaced with an allow-list version.
func NewState(cfg sandbox.Config) (*State, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // opened selectively below
	})

	s := &State{L: L, cfg: cfg}
	s.openLibraries()
	s.installRestrictions()

	return s, nil
}

// openLibraries opens the base and package libraries plus whatever the
// config allows. The package library is always opened because require lives
// there; installRestrictions neuters its disk loaders afterwards.
func (s *State) openLibraries() {
	lua.OpenBase(s.L)
	lua.OpenPackage(s.L)

	openers := map[string]lua.LGFunction{
		"string":    lua.OpenString,
		"table":     lua.OpenTable,
		"math":      lua.OpenMath,
		"os":        lua.OpenOs,
		"io":        lua.OpenIo,
		"debug":     lua.OpenDebug,
		"coroutine": lua.OpenCoroutine,
		// "utf8" has no gopher-lua implementation; allowing it is a no-op.
	}

	for name, open := range openers {
		if s.cfg.IsModuleAllowed(name) {
			open(s.L)
		}
	}
}

// installRestrictions removes sandbox escape hatches from the global
// environment.
func (s *State) installRestrictions() {
	// Remove functions that load arbitrary code.
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		s.L.SetGlobal(name, lua.LNil)
	}

	s.installSafeRequire()

	// The package table itself stays hidden unless explicitly allowed;
	// require keeps working through the closure installed above.
	if !s.cfg.IsModuleAllowed("package") {
		s.L.SetGlobal("package", lua.LNil)
	}
}

// installSafeRequire replaces require with a version that only loads
// modules the config allows, plus anything preloaded from Go via
// PreloadModule. package.path and package.cpath are cleared so nothing can
// be loaded from disk.
func (s *State) installSafeRequire() {
	var preload *lua.LTable
	if pkg, ok := s.L.GetGlobal("package").(*lua.LTable); ok {
		s.L.SetField(pkg, "path", lua.LString(""))
		s.L.SetField(pkg, "cpath", lua.LString(""))
		if p, ok := s.L.GetField(pkg, "preload").(*lua.LTable); ok {
			preload = p
		}
	}

	originalRequire := s.L.GetGlobal("require")

	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)

		allowed := s.cfg.IsModuleAllowed(name) ||
			(preload != nil && preload.RawGetString(name) != lua.LNil)
		if !allowed {
			L.RaiseError("module %q is not available", name)
			return 0 // unreachable, RaiseError does not return
		}

		L.Push(originalRequire)
		L.Push(lua.LString(name))
		L.Call(1, 1)
		return 1
	}))
}

// EvalFile loads and runs a Lua file, returning the chunk's return value.
// A chunk that returns nothing yields lua.LNil.
func (s *State) EvalFile(path string) (lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil, ErrStateClosed
	}

	fn, err := s.L.LoadFile(path)
	if err != nil {
		return lua.LNil, fmt.Errorf("load %s: %w", path, err)
	}

	var result lua.LValue = lua.LNil
	err = s.callWithTimeout(func() error {
		s.L.Push(fn)
		if err := s.L.PCall(0, 1, nil); err != nil {
			return err
		}
		result = s.L.Get(-1)
		s.L.Pop(1)
		return nil
	})
	if err != nil {
		return lua.LNil, err
	}
	return result, nil
}

// EvalString loads and runs a chunk of Lua source, returning the chunk's
// return value.
func (s *State) EvalString(code string) (lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil, ErrStateClosed
	}

	fn, err := s.L.LoadString(code)
	if err != nil {
		return lua.LNil, fmt.Errorf("load chunk: %w", err)
	}

	var result lua.LValue = lua.LNil
	err = s.callWithTimeout(func() error {
		s.L.Push(fn)
		if err := s.L.PCall(0, 1, nil); err != nil {
			return err
		}
		result = s.L.Get(-1)
		s.L.Pop(1)
		return nil
	})
	if err != nil {
		return lua.LNil, err
	}
	return result, nil
}

// CallValue calls a Lua function value with the given arguments. Returns an
// empty slice (not nil) if the function returns no values.
func (s *State) CallValue(fn lua.LValue, args ...lua.LValue) ([]lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}
	if fn == nil || fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("%w: got %s", ErrNotFunction, luaTypeName(fn))
	}

	stackTop := s.L.GetTop()

	var results []lua.LValue
	err := s.callWithTimeout(func() error {
		s.L.Push(fn)
		for _, arg := range args {
			s.L.Push(arg)
		}
		if err := s.L.PCall(len(args), lua.MultRet, nil); err != nil {
			return err
		}

		nRet := s.L.GetTop() - stackTop
		results = make([]lua.LValue, 0, nRet)
		for i := 0; i < nRet; i++ {
			results = append(results, s.L.Get(stackTop+i+1))
		}
		s.L.Pop(nRet)
		return nil
	})
	if err != nil {
		// Discard anything the failed call left behind.
		if top := s.L.GetTop(); top > stackTop {
			s.L.Pop(top - stackTop)
		}
		return nil, err
	}
	return results, nil
}

// Call calls a global Lua function by name.
func (s *State) Call(name string, args ...lua.LValue) ([]lua.LValue, error) {
	s.mu.Lock()
	fn := s.L.GetGlobal(name)
	s.mu.Unlock()

	if fn == lua.LNil {
		return nil, fmt.Errorf("function %q not found", name)
	}
	return s.CallValue(fn, args...)
}

// callWithTimeout runs fn under the configured timeout with panic recovery.
// A deadline hit is reported as ErrTimeout.
func (s *State) callWithTimeout(fn func() error) (err error) {
	if s.cfg.Timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()
		s.L.SetContext(ctx)
		defer s.L.RemoveContext()

		defer func() {
			if ctx.Err() != nil {
				err = fmt.Errorf("%w after %s", ErrTimeout, s.cfg.Timeout)
			}
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

func luaTypeName(v lua.LValue) string {
	if v == nil {
		return "nil"
	}
	return v.Type().String()
}

// GetGlobal returns a global variable value.
func (s *State) GetGlobal(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil
	}
	return s.L.GetGlobal(name)
}

// SetGlobal sets a global variable.
func (s *State) SetGlobal(name string, value lua.LValue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.L.SetGlobal(name, value)
}

// RegisterModule registers a global table with the given functions.
func (s *State) RegisterModule(name string, funcs map[string]lua.LGFunction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	mod := s.L.SetFuncs(s.L.NewTable(), funcs)
	s.L.SetGlobal(name, mod)
}

// Config returns the sandbox config this state was built with.
func (s *State) Config() sandbox.Config {
	return s.cfg
}

// LuaState returns the underlying gopher-lua state.
//
// WARNING: Direct access bypasses the mutex and the sandbox. The caller is
// responsible for synchronization.
func (s *State) LuaState() *lua.LState {
	return s.L
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the Lua state. Safe to call more than once; after Close,
// other methods return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
