package main

import (
	"log"

	"github.com/grebenindmitry/babilado-backend/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
