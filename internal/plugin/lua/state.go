// SPDX-License-Identifier: MPL-2.0

package lua

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// ErrStateClosed is returned when a closed module is called.
var ErrStateClosed = errors.New("lua state is closed")

// State wraps one interpreter. All access goes through the mutex; gopher-lua
// states are not safe for concurrent use.
type State struct {
	mu     sync.Mutex
	L      *lua.LState
	closed bool

	// out receives print output. It is swapped per call.
	out io.Writer
}

// NewState creates an interpreter with the standard libraries and a print
// function that writes to out.
func NewState(out io.Writer) *State {
	if out == nil {
		out = io.Discard
	}
	s := &State{L: lua.NewState(), out: out}
	s.L.SetGlobal("print", s.L.NewFunction(s.print))
	return s
}

// Close releases the interpreter. It waits for a running call to return.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.L.Close()
}

// IsClosed reports whether Close has been called.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// DoFile executes a file with panic recovery.
func (s *State) DoFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return s.doWithRecovery(func() error {
		return s.L.DoFile(path)
	})
}

// Call invokes fn with string arguments. Output of print goes to out for the
// duration of the call. A function that returns false followed by a message
// is reported as a failure carrying that message.
func (s *State) Call(ctx context.Context, fn *lua.LFunction, out io.Writer, args []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	prevOut := s.out
	if out != nil {
		s.out = out
	}
	defer func() { s.out = prevOut }()

	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	top := s.L.GetTop()
	s.L.Push(fn)
	for _, a := range args {
		s.L.Push(lua.LString(a))
	}

	err := s.doWithRecovery(func() error {
		return s.L.PCall(len(args), lua.MultRet, nil)
	})
	if err != nil {
		s.L.SetTop(top)
		return err
	}

	nRet := s.L.GetTop() - top
	defer s.L.SetTop(top)
	if nRet >= 1 && s.L.Get(top+1) == lua.LFalse {
		msg := "command reported failure"
		if nRet >= 2 {
			msg = s.L.Get(top + 2).String()
		}
		return errors.New(msg)
	}
	return nil
}

// doWithRecovery turns Go panics raised inside the VM into errors.
func (s *State) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// print mirrors the Lua builtin: tab-separated arguments and a newline.
func (s *State) print(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	_, _ = io.WriteString(s.out, strings.Join(parts, "\t")+"\n")
	return 0
}

// globalString returns a global as a string, or "" when it is not a string
// or number.
func (s *State) globalString(name string) string {
	switch v := s.L.GetGlobal(name).(type) {
	case lua.LString:
		return string(v)
	case lua.LNumber:
		return v.String()
	default:
		return ""
	}
}
