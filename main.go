package main

import (
	"log"

	"github.com/mentormatch/mentormatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
