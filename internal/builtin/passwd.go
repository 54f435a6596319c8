// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pscli/pscli/internal/command"
	"github.com/pscli/pscli/internal/protect"
)

// maxAttempts bounds password retries in passwd.
const maxAttempts = 3

var (
	// ErrAccessDenied is returned when every attempt was wrong.
	ErrAccessDenied = errors.New("access denied")
	// ErrPasswordMismatch is returned when the confirmation differs.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrNoPrompter is returned when passwd needs input and none is bound.
	ErrNoPrompter = errors.New("passwd needs an interactive session")
	// ErrNoModuleRunner is returned by `passwd mod` outside a dispatcher.
	ErrNoModuleRunner = errors.New("passwd mod needs a dispatcher to run modules")
)

const passwdHelp = `passwd [subcommand] [names...]

  help | h | ?              show this help
  reset | default           reset the password to the default
  change | set              change the password
  protect | link <cmd...>   add commands to the protected set
  unprotect | unlink <cmd>  remove commands from the protected set
  mod | module <name> [args...]
                            run a module file, asking for the password
                            once when the module is protected
  protect-mod <name...>     add module files to the protected modules
  unprotect-mod <name...>   remove module files from the protected modules
  list                      list protected commands and modules
  clear                     empty the protected command set

Without a subcommand passwd asks for the password and shows the list.
`

type passwd struct {
	protected *protect.ProtectedStore
	passwords *protect.PasswordStore
	logger    *slog.Logger
}

func (p *passwd) run(ctx context.Context, inv *command.Invocation) error {
	w := inv.Stdout
	if w == nil {
		w = io.Discard
	}
	if len(inv.Args) == 0 {
		if err := p.login(ctx, w); err != nil {
			return err
		}
		return p.list(w)
	}

	sub, names := strings.ToLower(inv.Args[0]), inv.Args[1:]
	switch sub {
	case "help", "h", "?":
		_, err := io.WriteString(w, passwdHelp)
		return err
	case "list":
		return p.list(w)
	case "protect", "link":
		if len(names) == 0 {
			return usage(sub)
		}
		if err := p.protected.Protect(names...); err != nil {
			return err
		}
		fmt.Fprintf(w, "Protected: %s\n", strings.ToLower(strings.Join(names, ", ")))
		return nil
	case "protect-mod":
		if len(names) == 0 {
			return usage(sub)
		}
		if err := p.protected.ProtectModule(names...); err != nil {
			return err
		}
		fmt.Fprintf(w, "Protected modules: %s\n", strings.ToLower(strings.Join(names, ", ")))
		return nil
	case "mod", "module":
		if len(names) == 0 {
			return usage(sub)
		}
		return p.runModule(ctx, inv, names[0], names[1:])
	}

	// Everything below weakens or replaces the protection, so it needs the
	// current password first.
	switch sub {
	case "reset", "default":
		if err := p.verifyOnce(ctx); err != nil {
			return err
		}
		if err := p.passwords.Reset(); err != nil {
			return err
		}
		fmt.Fprintln(w, "Password reset to default.")
	case "change", "set":
		return p.change(ctx, w)
	case "unprotect", "unlink":
		if len(names) == 0 {
			return usage(sub)
		}
		if err := p.verifyOnce(ctx); err != nil {
			return err
		}
		if err := p.protected.Unprotect(names...); err != nil {
			return err
		}
		fmt.Fprintf(w, "Unprotected: %s\n", strings.ToLower(strings.Join(names, ", ")))
	case "unprotect-mod":
		if len(names) == 0 {
			return usage(sub)
		}
		if err := p.verifyOnce(ctx); err != nil {
			return err
		}
		if err := p.protected.UnprotectModule(names...); err != nil {
			return err
		}
		fmt.Fprintf(w, "Unprotected modules: %s\n", strings.ToLower(strings.Join(names, ", ")))
	case "clear":
		if err := p.verifyOnce(ctx); err != nil {
			return err
		}
		if err := p.protected.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(w, "Protected command list cleared.")
	default:
		return fmt.Errorf("unknown subcommand %q, try 'passwd help': %w", sub, ErrUsage)
	}
	return nil
}

func (p *passwd) list(w io.Writer) error {
	cmds, err := p.protected.Commands()
	if err != nil {
		return err
	}
	mods, err := p.protected.Modules()
	if err != nil {
		return err
	}
	writeSet(w, "Protected commands:", cmds)
	writeSet(w, "Protected modules:", mods)
	return nil
}

func writeSet(w io.Writer, title string, names []string) {
	fmt.Fprintln(w, title)
	if len(names) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, n := range names {
		fmt.Fprintf(w, "  - %s\n", n)
	}
}

// runModule runs the command loaded from module. A protected module gets a
// single password attempt first.
func (p *passwd) runModule(ctx context.Context, inv *command.Invocation, module string, args []string) error {
	w := inv.Stdout
	if w == nil {
		w = io.Discard
	}
	fmt.Fprintf(w, "=== RUN MODULE: %s ===\n", strings.ToLower(module))
	runner := command.ModuleRunnerFrom(ctx)
	if runner == nil {
		return ErrNoModuleRunner
	}
	guarded, err := p.protected.IsModuleProtected(module)
	if err != nil {
		return err
	}
	if guarded {
		if err := p.verifyOnce(ctx); err != nil {
			var authErr *protect.AuthError
			if errors.As(err, &authErr) {
				authErr.Name = strings.ToLower(module)
			}
			return err
		}
	}
	return runner.RunModule(ctx, module, &command.Invocation{
		Args:   args,
		Stdin:  inv.Stdin,
		Stdout: inv.Stdout,
		Stderr: inv.Stderr,
	})
}

// login allows maxAttempts tries.
func (p *passwd) login(ctx context.Context, w io.Writer) error {
	pr, err := prompter(ctx)
	if err != nil {
		return err
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ok, err := p.ask(ctx, pr, protect.PasswordPrompt)
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintln(w, "Access granted.")
			return nil
		}
		if left := maxAttempts - attempt; left > 0 {
			fmt.Fprintf(w, "Wrong password, %d tries left.\n", left)
		}
	}
	return fmt.Errorf("%w: limit of %d attempts reached", ErrAccessDenied, maxAttempts)
}

func (p *passwd) change(ctx context.Context, w io.Writer) error {
	pr, err := prompter(ctx)
	if err != nil {
		return err
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ok, err := p.ask(ctx, pr, "Current password: ")
		if err != nil {
			return err
		}
		if !ok {
			if left := maxAttempts - attempt; left > 0 {
				fmt.Fprintf(w, "Wrong current password, %d tries left.\n", left)
			}
			continue
		}

		next, err := pr.Password(ctx, "New password: ")
		if err != nil {
			return err
		}
		confirm, err := pr.Password(ctx, "Confirm new password: ")
		if err != nil {
			return err
		}
		if next != confirm {
			return ErrPasswordMismatch
		}
		if err := p.passwords.Set(strings.TrimSpace(next)); err != nil {
			return err
		}
		p.logger.Info("password changed", "path", p.passwords.Path())
		fmt.Fprintln(w, "Password changed.")
		return nil
	}
	return fmt.Errorf("%w: password change blocked", ErrAccessDenied)
}

func (p *passwd) verifyOnce(ctx context.Context) error {
	pr, err := prompter(ctx)
	if err != nil {
		return err
	}
	ok, err := p.ask(ctx, pr, protect.PasswordPrompt)
	if err != nil {
		return err
	}
	if !ok {
		return &protect.AuthError{Name: "passwd", Check: protect.CheckProtected}
	}
	return nil
}

func (p *passwd) ask(ctx context.Context, pr protect.Prompter, prompt string) (bool, error) {
	input, err := pr.Password(ctx, prompt)
	if err != nil {
		return false, err
	}
	return p.passwords.Verify(strings.TrimSpace(input))
}

func prompter(ctx context.Context) (protect.Prompter, error) {
	pr, ok := protect.PrompterFrom(ctx)
	if !ok {
		return nil, ErrNoPrompter
	}
	return pr, nil
}

func usage(sub string) error {
	return fmt.Errorf("passwd %s needs at least one name: %w", sub, ErrUsage)
}
