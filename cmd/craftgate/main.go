// CraftGate daemon -- a Minecraft Java Edition login gate (protocol 578).
package main

import "github.com/craftgate/craftgate/cmd/craftgate/commands"

func main() {
	commands.Execute()
}
