package main

import (
	"os"

	"github.com/keneth217/bank/cmd/banking/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
