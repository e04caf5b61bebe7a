package hook

import (
	"context"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultCallTimeout bounds a single hook call.
const DefaultCallTimeout = time.Second

// State is a sandboxed Lua state. gopher-lua states are not goroutine-safe;
// State serializes every call.
type State struct {
	L *lua.LState

	mu      sync.Mutex
	timeout time.Duration
	closed  bool
}

// newState opens the base, table, string and math libraries only. io, os,
// debug and package stay closed, and the functions that load code from
// files or strings are removed.
func newState(timeout time.Duration, print func(string)) *State {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}

	if print != nil {
		L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
			top := L.GetTop()
			text := ""
			for i := 1; i <= top; i++ {
				if i > 1 {
					text += "\t"
				}
				text += L.ToStringMeta(L.Get(i)).String()
			}
			print(text)
			return 0
		}))
	}

	return &State{L: L, timeout: timeout}
}

// DoFile runs a script. The base libraries are available to it; the
// script usually only defines hook functions.
func (s *State) DoFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	return s.protect(func() error {
		fn, err := s.L.LoadFile(path)
		if err != nil {
			return err
		}
		s.L.Push(fn)
		return s.L.PCall(0, lua.MultRet, nil)
	})
}

// DoString runs a chunk of Lua code.
func (s *State) DoString(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return s.protect(func() error { return s.L.DoString(code) })
}

// HasFunction reports whether the global name is a function.
func (s *State) HasFunction(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	return s.L.GetGlobal(name).Type() == lua.LTFunction
}

// Call calls a global function and returns its results. The call is
// abandoned after the state's timeout.
func (s *State) Call(fn string, args ...lua.LValue) ([]lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}

	fnVal := s.L.GetGlobal(fn)
	if fnVal.Type() != lua.LTFunction {
		return nil, fmt.Errorf("%w: %s", ErrNoFunction, fn)
	}

	if s.timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.L.SetContext(ctx)
		defer s.L.RemoveContext()
	}

	stackTop := s.L.GetTop()
	s.L.Push(fnVal)
	for _, arg := range args {
		s.L.Push(arg)
	}

	if err := s.protect(func() error { return s.L.PCall(len(args), lua.MultRet, nil) }); err != nil {
		s.L.SetTop(stackTop)
		return nil, fmt.Errorf("%s: %w", fn, err)
	}

	nRet := s.L.GetTop() - stackTop
	results := make([]lua.LValue, 0, nRet)
	for i := 1; i <= nRet; i++ {
		results = append(results, s.L.Get(stackTop+i))
	}
	s.L.Pop(nRet)
	return results, nil
}

func (s *State) protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Close releases the Lua state.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.L.Close()
		s.closed = true
	}
	return nil
}
