// cmd/feedmill/main.go
package main

import (
	"os"

	"github.com/averko/feedmill/cmd/feedmill/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
