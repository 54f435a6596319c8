// SPDX-License-Identifier: MPL-2.0

// Package protect implements the password gate that runs before a command is
// dispatched.
//
// Two independent checks apply. A command whose name is in the protected set
// (protected.json) requires the user password kept in the password file. A
// command in the maintenance group requires a second password taken from the
// environment, then settings, then a built-in fallback. Both the protected
// set and the password file are read on every check so edits made by another
// process take effect immediately.
package protect
