package main

import (
	"log"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/app"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := app.Run(cfg); err != nil {
		log.Fatalf("app: %v", err)
	}
}
