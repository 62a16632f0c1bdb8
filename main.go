package main

import (
	"log"
	"os"

	"github.com/elite6108/sitesafe/internal/sitesafecli"
)

func main() {
	if err := sitesafecli.Execute(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
