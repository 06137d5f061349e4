package main

import (
	"os"

	"github.com/seankim-business/accord/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
