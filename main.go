package main

import (
	"log"

	"github.com/courierhq/dispatchd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatalf("dispatchd: %v", err)
	}
}
