package main

import (
	"log"

	"github.com/lumora-app/billing-service/config"
	"github.com/lumora-app/billing-service/internal/app"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Config error: %s", err)
	}
	app.Run(cfg)
}
