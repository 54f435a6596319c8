// SPDX-License-Identifier: MPL-2.0

package protect

import "context"

type prompterKey struct{}

// WithPrompter returns a context carrying p for commands that ask for a
// password themselves.
func WithPrompter(ctx context.Context, p Prompter) context.Context {
	if p == nil {
		return ctx
	}
	return context.WithValue(ctx, prompterKey{}, p)
}

// PrompterFrom returns the prompter stored by WithPrompter.
func PrompterFrom(ctx context.Context) (Prompter, bool) {
	p, ok := ctx.Value(prompterKey{}).(Prompter)
	return p, ok
}
