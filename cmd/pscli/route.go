// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pscli/pscli/internal/command"
	"github.com/pscli/pscli/internal/config"
	"github.com/pscli/pscli/internal/dispatch"
)

// lateSubcommands are added to the root by cobra and fang during Execute.
var lateSubcommands = []string{"help", "completion", "man"}

// routeArgs returns args with "--" inserted before the trigger when the bare
// form names both a pscli subcommand and a loaded command, so the root runs
// the loaded command. Args it cannot parse are returned unchanged, as are
// args that already carry "--".
func (a *App) routeArgs(ctx context.Context, root *cobra.Command, args []string) []string {
	local := &rootFlagValues{}
	fs := pflag.NewFlagSet(root.Name(), pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(false)
	local.bind(fs)
	fs.BoolP("help", "h", false, "")
	fs.Bool("version", false, "")
	if err := fs.Parse(args); err != nil || fs.ArgsLenAtDash() >= 0 {
		return args
	}
	rest := fs.Args()
	if len(rest) == 0 || !isSubcommand(root, rest[0]) || !a.shadows(ctx, local, rest[0]) {
		return args
	}
	routed := slices.Clone(args[:len(args)-len(rest)])
	routed = append(routed, "--")
	return append(routed, rest...)
}

func isSubcommand(root *cobra.Command, name string) bool {
	if slices.Contains(lateSubcommands, name) {
		return true
	}
	for _, c := range root.Commands() {
		if c.Name() == name || c.HasAlias(name) {
			return true
		}
	}
	return false
}

// shadows reports whether name resolves to a scanned command or names a
// group. Built-ins never shadow: `pscli history` stays the subcommand.
func (a *App) shadows(ctx context.Context, flags *rootFlagValues, name string) bool {
	loaded, _ := config.LoadResolved(ctx, loadOptions(flags))
	if loaded == nil {
		return false
	}
	d := dispatch.New(dispatch.Options{
		Settings:     func(context.Context) (*config.Loaded, error) { return loaded, nil },
		LookPath:     a.lookPath,
		Getenv:       a.getenv,
		Now:          a.now,
		ModuleOutput: io.Discard,
		Logger:       slog.New(slog.DiscardHandler),
	})
	defer d.Close()
	if err := d.Load(ctx); err != nil {
		return false
	}
	reg := d.State().Registry
	if reg.HasGroup(name) {
		return true
	}
	desc, ok := reg.Lookup(d.Resolve(name))
	return ok && desc.Provenance != command.ProvenanceBuiltin
}
