// SPDX-License-Identifier: MPL-2.0

package command

import (
	"context"
	"path/filepath"
	"strings"
)

// ModuleRunner runs the command registered from a module file.
type ModuleRunner interface {
	RunModule(ctx context.Context, module string, inv *Invocation) error
}

type moduleRunnerKey struct{}

// WithModuleRunner returns ctx carrying r.
func WithModuleRunner(ctx context.Context, r ModuleRunner) context.Context {
	return context.WithValue(ctx, moduleRunnerKey{}, r)
}

// ModuleRunnerFrom returns the runner stored in ctx, or nil.
func ModuleRunnerFrom(ctx context.Context) ModuleRunner {
	r, _ := ctx.Value(moduleRunnerKey{}).(ModuleRunner)
	return r
}

// Module returns the lowercase file stem d was loaded from, or "" for
// commands without a source file such as built-ins.
func (d Descriptor) Module() string {
	var src string
	switch h := d.Handler.(type) {
	case Native:
		src = h.Source
	case External:
		src = h.Path
	}
	if src == "" || (strings.Contains(src, ":") && !filepath.IsAbs(src)) {
		return ""
	}
	base := filepath.Base(src)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}
