package main

import (
	"os"

	anygencmder "github.com/rshanygen/anygen/cmd/anygen"
	"github.com/rshanygen/anygen/pkg/cliui"
)

func main() {
	cmd := anygencmder.NewAnygenCmd()
	if err := cmd.Execute(); err != nil {
		cliui.Errorf(os.Stderr, "%v", err)
		os.Exit(1)
	}
}
