// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/depcache/depcache/cmd/depcache"

func main() {
	cmd.Execute()
}
