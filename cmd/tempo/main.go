// Command tempo is the terminal client for the Tempo calendar assistant.
package main

import "github.com/tempo-ai/tempo-go/internal/cli"

func main() {
	cli.Execute()
}
