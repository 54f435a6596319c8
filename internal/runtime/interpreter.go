// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrInterpreterNotFound is the sentinel wrapped by InterpreterNotFoundError.
var ErrInterpreterNotFound = errors.New("interpreter not found")

type (
	// LookPathFunc resolves a program name on PATH.
	LookPathFunc func(file string) (string, error)

	// interpreter describes how to run one script extension.
	interpreter struct {
		// candidates are tried in order; the first one on PATH wins.
		candidates []string
		// args are inserted between the interpreter and the script path.
		args []string
	}

	// InterpreterNotFoundError reports a script whose interpreter is
	// missing from PATH.
	InterpreterNotFoundError struct {
		Ext   string
		Tried []string
	}
)

// interpreters maps a script extension to the program that runs it.
// Extensions not listed here are executed directly.
var interpreters = map[string]interpreter{
	".ps1": {candidates: []string{"powershell", "pwsh"}, args: []string{"-NoProfile", "-ExecutionPolicy", "Bypass", "-File"}},
	".vbs": {candidates: []string{"cscript"}, args: []string{"//nologo"}},
	".bat": {candidates: []string{"cmd"}, args: []string{"/c"}},
	".cmd": {candidates: []string{"cmd"}, args: []string{"/c"}},
	".py":  {candidates: []string{"python3", "python"}},
	".sh":  {candidates: []string{"sh", "bash"}},
}

// Error implements the error interface.
func (e *InterpreterNotFoundError) Error() string {
	return fmt.Sprintf("no interpreter for %s scripts (tried %s)", e.Ext, strings.Join(e.Tried, ", "))
}

// Unwrap returns ErrInterpreterNotFound.
func (e *InterpreterNotFoundError) Unwrap() error { return ErrInterpreterNotFound }

// Argv builds the command line for an external handler: the interpreter and
// its fixed flags, the script path, then args verbatim.
func Argv(path, ext string, args []string, lookPath LookPathFunc) ([]string, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	it, ok := interpreters[strings.ToLower(ext)]
	if !ok {
		return append([]string{path}, args...), nil
	}

	prog, err := it.resolve(lookPath)
	if err != nil {
		return nil, &InterpreterNotFoundError{Ext: ext, Tried: it.candidates}
	}
	argv := make([]string, 0, 2+len(it.args)+len(args))
	argv = append(argv, prog)
	argv = append(argv, it.args...)
	argv = append(argv, path)
	return append(argv, args...), nil
}

// MissingInterpreters returns the extensions whose interpreter cannot be
// found, sorted.
func MissingInterpreters(lookPath LookPathFunc) []string {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	var missing []string
	for _, ext := range []string{".bat", ".cmd", ".ps1", ".py", ".sh", ".vbs"} {
		if _, err := interpreters[ext].resolve(lookPath); err != nil {
			missing = append(missing, ext)
		}
	}
	return missing
}

func (it interpreter) resolve(lookPath LookPathFunc) (string, error) {
	for _, c := range it.candidates {
		if p, err := lookPath(c); err == nil {
			return p, nil
		}
	}
	return "", ErrInterpreterNotFound
}
