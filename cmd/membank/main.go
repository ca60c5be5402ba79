package main

import "github.com/felixgeelhaar/membank/cmd/membank/cli"

func main() {
	cli.Execute()
}
