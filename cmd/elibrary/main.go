package main

import (
	"log"

	"github.com/anuragkandulna/crjyouth-elibrary/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
