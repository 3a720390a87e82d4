package main

import "github.com/openmrkt/marketd/internal/cli"

func main() {
	cli.Execute()
}
