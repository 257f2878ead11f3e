package main

import (
	"fmt"
	"os"

	"github.com/dvsa/dvsa-auth/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "dvsa: %v\n", err)
		os.Exit(1)
	}
}
