package main

import (
	"os"

	"github.com/KLM-Nandhu/bentsblog/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
