// SPDX-License-Identifier: MPL-2.0

// Package dispatch is the facade the REPL, the one-shot CLI and the SSH
// server talk to.
//
// A Dispatcher owns an immutable State (the command registry, alias index,
// settings and loaded native modules) built by Load and replaced wholesale by
// Reload. The current State is held in an atomic pointer, so a reload
// triggered by the watcher or another session never exposes a partially
// populated registry; calls already in flight finish against the State they
// started with.
//
// Execute resolves a trigger in a fixed order: the meta-verbs (all, a known
// group name, refresh/reload/r/f5) first, then the alias index, then the
// literal name. A resolved command passes the protection gate and is handed
// to the runtime registry. Every failure is reported to the session and
// summarised in the returned Result; Execute never returns an error.
package dispatch
