package main

import (
	"fmt"
	"os"

	"radiorec/cmd/radiorec/cmd"
	"radiorec/internal/config"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration warning: %v\n", err)
	}

	cmd.Execute()
}
