package main

import (
	"fmt"
	"os"

	"github.com/gopm2/gopm2/cmd/gopm2/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
