package main

import (
	"os"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
