package main

import (
	"log"

	"github.com/spigell/o1-screener/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
