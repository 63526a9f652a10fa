// Package main is the entry point for the datamon application
package main

import (
	"github.com/openlabtools/datamon/cmd"
)

func main() {
	cmd.Execute()
}
