// SPDX-License-Identifier: MPL-2.0

// Package repl runs the interactive prompt over a dispatch.Session.
//
// A line is split on '&' into segments that run in order. Each segment is
// split into words with shell quoting rules; the first word is the trigger.
// The loop handles exit, quit, menu and modules itself and hands everything
// else, meta-verbs included, to the session.
package repl
