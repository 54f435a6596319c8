// SPDX-License-Identifier: MPL-2.0

// Package command defines the command descriptor model and the registry
// snapshot built from one scan.
//
// Names are global: whichever source registers a name last owns it, and an
// alias always wins over a literal command name during resolution.
package command
