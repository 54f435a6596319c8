// SPDX-License-Identifier: MPL-2.0

// Package config loads the dispatcher settings file (terminal.json) with Viper.
//
// The file lives in ~/.polsoft/psCli/settings (or $PSCLI_HOME/settings). It is
// validated against an embedded CUE schema (settings_schema.cue) before it is
// merged over the defaults, so a wrong value type is reported with a file
// position instead of silently decoding to a zero value. Unknown sections are
// allowed because plugins store their own data in the same file.
package config
