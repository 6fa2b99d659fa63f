package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"markerhub/internal/config"
	"markerhub/services/markerarchivist"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.Namespace = getEnv("MARKER_NAMESPACE", cfg.Namespace)
	cfg.KafkaBrokers = getEnvBrokers("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.Neo4j.URI = getEnv("NEO4J_URI", cfg.Neo4j.URI)
	cfg.Neo4j.User = getEnv("NEO4J_USER", cfg.Neo4j.User)
	cfg.Neo4j.Password = getEnv("NEO4J_PASSWORD", cfg.Neo4j.Password)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutting down marker archivist...")
		cancel()
	}()

	service, err := markerarchivist.NewService(cfg)
	if err != nil {
		log.Fatalf("Failed to create marker archivist: %v", err)
	}
	service.Start(ctx)
	<-ctx.Done()
	service.Stop()
	log.Println("Marker archivist stopped.")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBrokers(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		brokers := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				brokers = append(brokers, trimmed)
			}
		}
		if len(brokers) > 0 {
			return brokers
		}
	}
	return fallback
}
