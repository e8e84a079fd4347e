// Web сервер для Kubernetes - читає конфігурацію зі змінних середовища VIDEOGEN_*
package main

import (
	"log"

	"github.com/sabalioglu/vidgen/internal/config"
)

func main() {
	cfg, err := config.LoadEnvConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := config.StartServer(cfg); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
