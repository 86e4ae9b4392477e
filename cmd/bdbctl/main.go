// Command bdbctl is the CLI harness over the BDB core.
package main

import "github.com/javanhut/bdb/cli"

func main() {
	cli.Execute()
}
