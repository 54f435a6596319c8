// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/pscli/pscli/internal/command"
	"github.com/pscli/pscli/internal/protect"
	"github.com/pscli/pscli/internal/runtime"
)

const (
	// MetaAll lists every command outside the menu group.
	MetaAll = "all"
	// MenuGroup is hidden from the full list and shown with a banner.
	MenuGroup = "menu"

	titleAll     = "ALL MODULES (HIDDEN: MENU)"
	titleModules = "ALL MODULES, TOOLS AND ALIASES"
	titleMenu    = "2026© Terminal psCLI MENU (Type 'all' to see all available modules or a group name.)"
)

// reloadVerbs re-read settings, rescan and redisplay.
var reloadVerbs = map[string]struct{}{"refresh": {}, "reload": {}, "r": {}, "f5": {}}

const (
	// OutcomeListed means a list meta-verb ran.
	OutcomeListed Outcome = iota
	// OutcomeReloaded means a reload meta-verb ran.
	OutcomeReloaded
	// OutcomeRan means the handler completed without error (or a detached
	// process was started).
	OutcomeRan
	// OutcomeUnknown means nothing matched the trigger.
	OutcomeUnknown
	// OutcomeDenied means the protection gate rejected the call.
	OutcomeDenied
	// OutcomeFailed means the handler failed.
	OutcomeFailed
)

type (
	// Outcome classifies what Execute did.
	Outcome int

	// Result summarises one Execute call.
	Result struct {
		Outcome Outcome
		Trigger string
		// Name is the canonical command, empty for meta-verbs and unknowns.
		Name string
		// Err is the reported failure, nil for Listed, Reloaded and Ran.
		Err error
	}

	// Session binds the dispatcher to one user's streams and prompter.
	Session struct {
		d        *Dispatcher
		Stdin    io.Reader
		Stdout   io.Writer
		Stderr   io.Writer
		Prompter protect.Prompter
	}
)

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeListed:
		return "listed"
	case OutcomeReloaded:
		return "reloaded"
	case OutcomeRan:
		return "ran"
	case OutcomeUnknown:
		return "unknown"
	case OutcomeDenied:
		return "denied"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// OK reports whether the outcome is not a failure.
func (o Outcome) OK() bool { return o <= OutcomeRan }

// ExitCode maps r to a process status: 0 when OK, 127 for unknown
// triggers, 126 when denied, the child's status for a process that exited
// non-zero, and 1 for any other failure.
func (r Result) ExitCode() int {
	switch r.Outcome {
	case OutcomeListed, OutcomeReloaded, OutcomeRan:
		return 0
	case OutcomeUnknown:
		return 127
	case OutcomeDenied:
		return 126
	}
	var exitErr *runtime.ExitCodeError
	if errors.As(r.Err, &exitErr) && exitErr.Code > 0 {
		return int(exitErr.Code)
	}
	return 1
}

// NewSession creates a session over the given streams.
func (d *Dispatcher) NewSession(stdin io.Reader, stdout, stderr io.Writer, p protect.Prompter) *Session {
	return &Session{d: d, Stdin: stdin, Stdout: stdout, Stderr: stderr, Prompter: p}
}

// Dispatcher returns the dispatcher the session belongs to.
func (s *Session) Dispatcher() *Dispatcher { return s.d }

// Execute resolves and runs trigger with args passed verbatim.
func (s *Session) Execute(ctx context.Context, trigger string, args ...string) Result {
	st := s.d.State()
	key := strings.ToLower(strings.TrimSpace(trigger))

	if res, ok := s.meta(ctx, st, trigger, key); ok {
		return res
	}

	started := s.d.opts.Now()
	res := s.run(ctx, st, trigger, args)
	s.record(ctx, Event{
		Trigger:   trigger,
		Name:      res.Name,
		Args:      args,
		Outcome:   res.Outcome,
		Err:       res.Err,
		StartedAt: started,
		Duration:  s.d.opts.Now().Sub(started),
	})
	return res
}

// meta handles the meta-verbs. They are checked before any lookup so a
// plugin can never shadow them.
func (s *Session) meta(ctx context.Context, st *State, trigger, key string) (Result, bool) {
	listed := Result{Outcome: OutcomeListed, Trigger: trigger}
	switch {
	case key == MetaAll:
		s.ShowAll()
		return listed, true
	case st != nil && st.Registry.HasGroup(key):
		s.ShowGroup(key)
		return listed, true
	}
	if _, ok := reloadVerbs[key]; ok {
		if err := s.d.Reload(ctx); err != nil {
			s.notice(Notice{Kind: NoticeFailed, Text: fmt.Sprintf("[RUNTIME ERROR] '%s': %v", trigger, err), Err: err})
			return Result{Outcome: OutcomeFailed, Trigger: trigger, Err: err}, true
		}
		if s.d.State().Registry.HasGroup(MenuGroup) {
			s.ShowMenu()
		} else {
			s.ShowAll()
		}
		return Result{Outcome: OutcomeReloaded, Trigger: trigger}, true
	}
	return Result{}, false
}

func (s *Session) run(ctx context.Context, st *State, trigger string, args []string) Result {
	if st == nil {
		return s.unknown(trigger)
	}
	name := st.Registry.Resolve(trigger)
	d, ok := st.Registry.Lookup(name)
	if !ok {
		return s.unknown(trigger)
	}

	if err := s.d.gate.Check(ctx, d, s.Prompter); err != nil {
		s.notice(Notice{Kind: NoticeDenied, Text: "[!] Incorrect password", Err: err})
		return Result{Outcome: OutcomeDenied, Trigger: trigger, Name: name, Err: err}
	}

	ectx := runtime.NewExecutionContext(s.handlerContext(ctx), d, args)
	ectx.Stdin, ectx.Stdout, ectx.Stderr = s.Stdin, s.Stdout, s.Stderr
	if err := runSafely(st.Runtimes, ectx); err != nil {
		herr := &HandlerError{Trigger: trigger, Name: name, Err: err}
		s.notice(Notice{Kind: NoticeFailed, Text: "[RUNTIME ERROR] " + herr.Error(), Err: herr})
		return Result{Outcome: OutcomeFailed, Trigger: trigger, Name: name, Err: herr}
	}
	return Result{Outcome: OutcomeRan, Trigger: trigger, Name: name}
}

// handlerContext is the context handlers run under. It carries the
// session's prompter and the session itself as the module runner.
func (s *Session) handlerContext(ctx context.Context) context.Context {
	return command.WithModuleRunner(protect.WithPrompter(ctx, s.Prompter), s)
}

// RunModule runs the command loaded from the module file named module. When
// the file registered several commands, the one named after the module is
// picked. The command's own protection still applies. Nothing is reported
// to the presenter; the caller gets the error.
func (s *Session) RunModule(ctx context.Context, module string, inv *command.Invocation) error {
	st := s.d.State()
	key := strings.ToLower(strings.TrimSpace(module))
	if st == nil || key == "" {
		return &UnknownModuleError{Module: module}
	}
	candidates := st.Registry.Descriptors(func(d command.Descriptor) bool {
		return d.Module() == key
	})
	var d command.Descriptor
	switch {
	case len(candidates) == 0:
		return &UnknownModuleError{Module: module}
	case len(candidates) == 1:
		d = candidates[0]
	default:
		i := slices.IndexFunc(candidates, func(c command.Descriptor) bool { return strings.EqualFold(c.Name, key) })
		if i < 0 {
			names := make([]string, len(candidates))
			for j, c := range candidates {
				names[j] = c.Name
			}
			return &AmbiguousModuleError{Module: module, Commands: names}
		}
		d = candidates[i]
	}

	if err := s.d.gate.Check(ctx, d, s.Prompter); err != nil {
		return err
	}

	if inv == nil {
		inv = &command.Invocation{}
	}
	ectx := runtime.NewExecutionContext(s.handlerContext(ctx), d, inv.Args)
	ectx.Stdin, ectx.Stdout, ectx.Stderr = s.Stdin, s.Stdout, s.Stderr
	if inv.Stdin != nil {
		ectx.Stdin = inv.Stdin
	}
	if inv.Stdout != nil {
		ectx.Stdout = inv.Stdout
	}
	if inv.Stderr != nil {
		ectx.Stderr = inv.Stderr
	}
	if err := runSafely(st.Runtimes, ectx); err != nil {
		return &HandlerError{Trigger: module, Name: d.Name, Err: err}
	}
	return nil
}

// runSafely is the last line of defence: nothing a handler does may take the
// dispatcher down.
func runSafely(reg *runtime.Registry, ectx *runtime.ExecutionContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &runtime.PanicError{Value: r}
		}
	}()
	return reg.Run(ectx)
}

func (s *Session) unknown(trigger string) Result {
	err := &UnknownCommandError{Trigger: trigger}
	s.notice(Notice{Kind: NoticeUnknown, Text: fmt.Sprintf("[?] Unknown command or group: '%s'", trigger), Err: err})
	return Result{Outcome: OutcomeUnknown, Trigger: trigger, Err: err}
}

// ShowAll lists every command outside the menu group.
func (s *Session) ShowAll() {
	s.list(View{Title: titleAll}, func(d command.Descriptor) bool {
		return !strings.EqualFold(d.Meta.Group, MenuGroup)
	}, "general")
}

// ShowGroup lists the commands of one group.
func (s *Session) ShowGroup(group string) {
	group = strings.ToLower(group)
	v := View{Title: "GROUP VIEW: " + strings.ToUpper(group), Group: group}
	if group == MenuGroup {
		v.Title, v.Menu = titleMenu, true
	}
	s.list(v, func(d command.Descriptor) bool {
		return strings.EqualFold(d.Meta.Group, group)
	}, group)
}

// ShowModules lists every command, the menu group included.
func (s *Session) ShowModules() {
	s.list(View{Title: titleModules}, nil, "general")
}

// ShowMenu lists the menu group with its banner.
func (s *Session) ShowMenu() { s.ShowGroup(MenuGroup) }

func (s *Session) list(v View, keep func(command.Descriptor) bool, emptyName string) {
	st := s.d.State()
	if st == nil {
		s.notice(Notice{Kind: NoticeEmptyGroup, Text: fmt.Sprintf("[!] No modules in group: %s.", emptyName)})
		return
	}
	if st.Settings != nil {
		v.Clear = st.Settings.UI.ClearOnMenu
	}
	for _, d := range st.Registry.Descriptors(keep) {
		v.Rows = append(v.Rows, Row{Descriptor: d, Aliases: st.Registry.AliasesFor(d.Name)})
	}
	if len(v.Rows) == 0 {
		s.notice(Notice{Kind: NoticeEmptyGroup, Text: fmt.Sprintf("[!] No modules in group: %s.", emptyName)})
		return
	}
	if err := s.d.opts.Presenter.List(s.Stdout, v); err != nil {
		s.d.logger.Debug("list output failed", "error", err)
	}
}

func (s *Session) notice(n Notice) {
	s.d.opts.Presenter.Notice(s.Stderr, n)
}

func (s *Session) record(ctx context.Context, ev Event) {
	if s.d.opts.Recorder == nil {
		return
	}
	if st := s.d.State(); st != nil && st.Settings != nil && !st.Settings.History.Enabled {
		return
	}
	if err := s.d.opts.Recorder.Record(ctx, ev); err != nil && !errors.Is(err, context.Canceled) {
		s.d.logger.Debug("history not recorded", "error", err)
	}
}
