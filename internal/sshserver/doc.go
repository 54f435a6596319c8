// SPDX-License-Identifier: MPL-2.0

// Package sshserver exposes the dispatcher over SSH using the Wish library.
//
// Remote users log in with the same password that guards protected
// commands. A session without a command gets the interactive loop; a
// session with a command runs it once and exits with its status.
package sshserver
