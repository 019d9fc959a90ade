package main

import (
	"context"
	"log"

	"fable/internal/app/bootstrap"
)

// API process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (ports + adapters + use cases).
// 3) Start HTTP server.
//
// @title Fable Story Tournament API
// @version 1.0
// @description Seasons, storyboard slots, clips and votes for the collaborative story tournament.
// @BasePath /
func main() {
	log.Println("fable api starting")
	app, err := bootstrap.BuildAPI()
	if err != nil {
		log.Fatalf("bootstrap api failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("api shutdown close failed: %v", err)
		}
	}()

	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("fable api stopped with error: %v", err)
	}
}
