package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/collablearn/relay/internal/auth"
	"github.com/collablearn/relay/internal/membership"
	"github.com/collablearn/relay/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log.Println("Starting collablearn relay...")

	config := server.NewConfigFromEnv()
	server.SetConfig(config)

	if config.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	verifier := auth.NewJWTVerifier(config.JWTSecret, "collablearn")

	redisClient := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
	oracle := membership.NewRedisOracle(redisClient)

	registry := prometheus.NewRegistry()
	metrics := server.NewMetrics(registry)

	hub := server.NewHub(metrics)
	go hub.Run()

	monitor := server.NewHealthMonitor(hub, config.PingInterval)
	monitor.Start()

	router := server.SetupRoutes(hub, verifier, oracle,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	httpServer := server.CreateServer(config.Port, router)

	go func() {
		if err := server.StartServer(httpServer); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	monitor.Stop()

	if err := hub.Shutdown(shutdownTimeout); err != nil {
		log.Printf("Hub shutdown error: %v", err)
	}

	if err := redisClient.Close(); err != nil {
		log.Printf("Redis close error: %v", err)
	}

	log.Println("Relay stopped")
}
