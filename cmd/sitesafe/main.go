package main

import (
	"fmt"
	"os"

	"github.com/elite6108/sitesafe/internal/sitesafecli"
)

func main() {
	if err := sitesafecli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "sitesafe:", err)
		os.Exit(1)
	}
}
