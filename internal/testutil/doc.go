// SPDX-License-Identifier: MPL-2.0

// Package testutil holds test helpers shared across pscli packages: a fake
// clock, a scripted password prompter and fail-fast file helpers.
package testutil
