// SPDX-License-Identifier: MPL-2.0

// Package history keeps an execution log of dispatched commands in a local
// SQLite database. Meta-verbs are not recorded.
package history
