// Command shipfloor is the warehouse fulfillment consistency tool.
package main

import "github.com/shipfloor/shipfloor/internal/cli"

func main() {
	cli.Execute()
}
