// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/raincoat-go/raincoat/cmd/raincoat"

func main() {
	cmd.Execute()
}
