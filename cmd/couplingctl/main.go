// couplingctl is the inspection CLI for the couplingd daemon.
package main

import "github.com/couplingrt/rbbox/cmd/couplingctl/commands"

func main() {
	commands.Execute()
}
