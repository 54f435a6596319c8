// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/pscli/pscli/cmd/pscli"

func main() {
	cmd.Execute()
}
