// SPDX-License-Identifier: MPL-2.0

// Package lua loads native command modules written in Lua.
//
// Every module runs in its own interpreter state guarded by a mutex. A module
// declares its metadata through the globals __author__, __category__,
// __group__ and __desc__ and registers commands with the command builder:
//
//	command{
//	    name = "run_calculator",
//	    aliases = {"math", "calc"},
//	    doc = "Simple calculator.\nLonger help.",
//	    run = function(...) print(...) end,
//	}
//
// A command without a name takes the module's file name. Modules in the games
// folder may instead expose a main or menu function, which the loader reports
// as the module entry point.
package lua
