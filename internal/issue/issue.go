// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

// Id identifies a catalogued issue page.
type Id int

const (
	UnknownCommandId Id = iota + 1
	IncorrectPasswordId
	PluginsFolderMissingId
	ProcessFailedId
	InterpreterNotFoundId
	SettingsInvalidId
	NativeModuleFailedId
	ServeFailedId
)

type (
	// MarkdownMsg is the markdown body of an issue page.
	MarkdownMsg string

	// Issue is a catalogued help page shown for a class of failure.
	Issue struct {
		id    Id
		slug  string
		mdMsg MarkdownMsg
	}
)

var (
	render = glamour.Render

	unknownCommandIssue = &Issue{
		id:   UnknownCommandId,
		slug: "unknown-command",
		mdMsg: `
# Unknown command or group

The word you typed is not a command, an alias, a group, or a meta-verb.

## Things you can try
- Type ` + "`all`" + ` to list every command outside the menu group
- Type a group name (for example ` + "`games`" + `) to list that group
- Type ` + "`refresh`" + ` after adding files to the plugins folder`,
	}

	incorrectPasswordIssue = &Issue{
		id:   IncorrectPasswordId,
		slug: "incorrect-password",
		mdMsg: `
# Incorrect password

The command is protected and the password did not match. The dispatcher
asks once and does not retry.

## Things you can try
- Run the command again and retype the password
- Reset the password to the default with ` + "`passwd reset`" + `
- Maintenance commands use a separate password: set ` + "`PSCLI_MAINTE_PASS`" + `
  or ` + "`security.mainte_password`" + ` in terminal.json`,
	}

	pluginsFolderMissingIssue = &Issue{
		id:   PluginsFolderMissingId,
		slug: "plugins-folder-missing",
		mdMsg: `
# Plugins folder not found

No commands were discovered because the plugins folder does not exist.

## Things you can try
- Create the folder configured in ` + "`dispatcher.plugins_folder`" + `
- Point ` + "`dispatcher.root_dir`" + ` at your psCli installation`,
	}

	processFailedIssue = &Issue{
		id:   ProcessFailedId,
		slug: "process-failed",
		mdMsg: `
# External command failed

The script or binary exited with a non-zero status.

## Things you can try
- Run the file directly to see its full output
- Check the arguments you passed after the command name`,
	}

	interpreterNotFoundIssue = &Issue{
		id:   InterpreterNotFoundId,
		slug: "interpreter-not-found",
		mdMsg: `
# Interpreter not found

The interpreter for this file type (powershell, cscript, cmd, python3 or sh)
is not on PATH.

## Things you can try
- Install the interpreter or add it to PATH
- Enable ` + "`dispatcher.virtual_shell`" + ` to run .sh files without a system shell`,
	}

	settingsInvalidIssue = &Issue{
		id:   SettingsInvalidId,
		slug: "settings-invalid",
		mdMsg: `
# Settings file rejected

terminal.json is not valid JSON or does not match the settings schema.
Defaults are used until the file is fixed.

## Things you can try
- Run ` + "`pscli config show`" + ` to see the effective settings
- Check value types: ` + "`ui.clear_on_menu`" + ` is a boolean, folders are strings`,
	}

	nativeModuleFailedIssue = &Issue{
		id:   NativeModuleFailedId,
		slug: "native-module-failed",
		mdMsg: `
# Native module failed to load

A .lua module raised an error while loading, so its commands were skipped.

## Things you can try
- Run ` + "`pscli --verbose`" + ` to see the Lua error and line number
- Make sure every ` + "`command{}`" + ` call has a ` + "`run`" + ` function`,
	}

	serveFailedIssue = &Issue{
		id:   ServeFailedId,
		slug: "serve-failed",
		mdMsg: `
# SSH server failed

The remote shell could not listen on the requested address.

## Things you can try
- Pick a free port with ` + "`--addr 127.0.0.1:2323`" + `
- Check that no other pscli serve is running`,
	}

	issues = map[Id]*Issue{
		unknownCommandIssue.id:       unknownCommandIssue,
		incorrectPasswordIssue.id:    incorrectPasswordIssue,
		pluginsFolderMissingIssue.id: pluginsFolderMissingIssue,
		processFailedIssue.id:        processFailedIssue,
		interpreterNotFoundIssue.id:  interpreterNotFoundIssue,
		settingsInvalidIssue.id:      settingsInvalidIssue,
		nativeModuleFailedIssue.id:   nativeModuleFailedIssue,
		serveFailedIssue.id:          serveFailedIssue,
	}
)

// Id returns the issue id.
func (i *Issue) Id() Id { return i.id }

// Slug returns the kebab-case name used on the command line.
func (i *Issue) Slug() string { return i.slug }

// MarkdownMsg returns the raw markdown body.
func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

// Title returns the first heading of the page.
func (i *Issue) Title() string {
	for line := range strings.SplitSeq(string(i.mdMsg), "\n") {
		if title, ok := strings.CutPrefix(line, "# "); ok {
			return title
		}
	}
	return i.slug
}

// Render renders the page for a terminal using the glamour style at
// stylePath ("dark", "light", "notty", or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	return render(string(i.mdMsg), stylePath)
}

// Get returns the issue for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}

// BySlug returns the issue with the given slug, or nil.
func BySlug(slug string) *Issue {
	for _, i := range issues {
		if i.slug == slug {
			return i
		}
	}
	return nil
}

// Values returns every catalogued issue ordered by id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for i := range maps.Values(issues) {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}
