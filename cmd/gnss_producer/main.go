package main

import (
	"log"

	"github.com/relabs-tech/gnss_receiver/internal/app"
	"github.com/relabs-tech/gnss_receiver/internal/config"
)

func main() {
	log.Println("starting gnss-receiver producer (UBX/NMEA → MQTT)")

	// Load configuration
	if err := config.InitGlobal("gnss_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunGNSSProducer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
