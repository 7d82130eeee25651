package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ajkula/sendcoordinator/adapter/inbound/rest"
	"github.com/ajkula/sendcoordinator/adapter/inbound/websocket"
	"github.com/ajkula/sendcoordinator/adapter/outbound/auth"
	"github.com/ajkula/sendcoordinator/adapter/outbound/filewatcher"
	"github.com/ajkula/sendcoordinator/adapter/outbound/logging"
	"github.com/ajkula/sendcoordinator/adapter/outbound/machineid"
	"github.com/ajkula/sendcoordinator/config"
	"github.com/ajkula/sendcoordinator/domain/port/outbound"
	"github.com/ajkula/sendcoordinator/domain/service"
	"github.com/ajkula/sendcoordinator/transport/grpctransport"
	"github.com/ajkula/sendcoordinator/transport/mock"
)

func main() {
	var configPath string
	var generateConfig bool
	var showVersion bool

	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.BoolVar(&generateConfig, "generate-config", false, "Generate default configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Println("sendcoordinator version 1.0.0")
		os.Exit(0)
	}

	if generateConfig {
		cfg := config.DefaultConfig()
		cfg.Providers = []config.ProviderConfig{
			{Name: "primary", Kind: "mock", FailureRate: 0.1, LatencyMs: 20},
			{Name: "fallback", Kind: "mock", FailureRate: 0, LatencyMs: 20},
		}
		if err := config.SaveConfig(cfg, configPath); err != nil {
			fmt.Printf("Error generating config file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration file generated at: %s\n", configPath)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewSlogAdapter(cfg)
	logger.Info("Starting sendcoordinator...")

	machineIDService := machineid.NewHardwareMachineID()
	if id, err := machineIDService.GetMachineID(); err != nil {
		logger.Warn("Failed to resolve machine ID", "error", err)
	} else {
		logger.Info("Node identity", "nodeID", cfg.General.NodeID, "machineID", id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transports, err := buildTransports(cfg)
	if err != nil {
		logger.Error("Failed to build providers", "error", err)
		os.Exit(1)
	}

	baseDelay, maxDelay, breakerCooldown, rateWindow, drainInterval := cfg.EngineConfigDurations()
	coordinator := service.NewCoordinatorService(transports, service.EngineConfig{
		MaxRetries:       cfg.Engine.MaxRetries,
		BaseDelay:        baseDelay,
		MaxDelay:         maxDelay,
		BreakerThreshold: cfg.Engine.BreakerThreshold,
		BreakerCooldown:  breakerCooldown,
		RateMaxRequests:  cfg.Engine.RateMaxRequests,
		RateWindow:       rateWindow,
		DrainInterval:    drainInterval,
	}, logger)
	defer coordinator.Shutdown()

	if cfg.Security.EnableAuthentication && cfg.Security.AdminPasswordHash == "" {
		bootstrapAdmin(cfg, logger)
		if err := config.SaveConfig(cfg, configPath); err != nil {
			logger.Error("Failed to persist bootstrapped admin credentials", "error", err)
		}
	}

	var grpcDemo *grpctransport.Server
	if cfg.GRPC.Enabled {
		grpcDemo = grpctransport.NewServer(mock.New("grpc-demo", 0, 10*time.Millisecond))
		addr := fmt.Sprintf("%s:%d", cfg.GRPC.Address, cfg.GRPC.Port)
		bound, err := grpcDemo.Start(addr)
		if err != nil {
			logger.Error("Failed to start gRPC demo server", "error", err)
		} else {
			logger.Info("gRPC demo server listening", "address", bound)
		}
		defer grpcDemo.Stop()
	}

	fileWatcher, err := filewatcher.NewFSWatcher()
	if err != nil {
		logger.Error("Failed to create file watcher", "error", err)
		os.Exit(1)
	}

	reloader := config.NewHotReloader(fileWatcher, configPath, func(newCfg *config.Config) {
		logger.Info("Configuration reloaded", "path", configPath)

		newBaseDelay, newMaxDelay, newBreakerCooldown, newRateWindow, newDrainInterval := newCfg.EngineConfigDurations()
		coordinator.UpdateTuning(service.EngineConfig{
			MaxRetries:       newCfg.Engine.MaxRetries,
			BaseDelay:        newBaseDelay,
			MaxDelay:         newMaxDelay,
			BreakerThreshold: newCfg.Engine.BreakerThreshold,
			BreakerCooldown:  newBreakerCooldown,
			RateMaxRequests:  newCfg.Engine.RateMaxRequests,
			RateWindow:       newRateWindow,
			DrainInterval:    newDrainInterval,
		})

		*cfg = *newCfg
	}, logger)
	if err := reloader.Start(ctx); err != nil {
		logger.Error("Failed to start config hot-reload", "error", err)
	}
	defer reloader.Stop()

	router := mux.NewRouter()

	if cfg.HTTP.Enabled {
		passwords := auth.NewPasswordService()
		tokens := auth.NewTokenService(cfg.HTTP.JWT.Secret, time.Duration(cfg.HTTP.JWT.ExpirationMinutes)*time.Minute)

		authHandler := rest.NewAuthHandler(passwords, tokens, cfg, logger)
		authMiddleware := rest.NewAuthMiddleware(tokens, cfg)

		restHandler := rest.NewHandler(coordinator)
		restHandler.SetupRoutes(router)
		router.HandleFunc("/v1/auth/login", authHandler.Login).Methods(http.MethodPost)
		router.Use(authMiddleware.Middleware)

		wsHandler := websocket.NewHandler(coordinator, logger)
		router.HandleFunc("/v1/events", wsHandler.HandleConnection)

		router.Walk(func(route *mux.Route, router *mux.Router, ancestors []*mux.Route) error {
			pathTemplate, err := route.GetPathTemplate()
			if err != nil {
				return nil
			}
			methods, _ := route.GetMethods()
			logger.Info("ROUTE", "path", pathTemplate, "methods", methods)
			return nil
		})

		httpAddr := fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)
		server := &http.Server{
			Addr:         httpAddr,
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		go func() {
			logger.Info("HTTP server listening", "address", httpAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "error", err)
			}
		}()

		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", "error", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("sendcoordinator started successfully")

	sig := <-sigChan
	logger.Info("Received signal, shutting down gracefully...", "signal", sig)

	cancel()
	logger.Info("Server shutdown complete")
}

// buildTransports constructs the configured provider set in list order,
// the order used as the fallback sequence (spec.md §6).
func buildTransports(cfg *config.Config) ([]outbound.Transport, error) {
	transports := make([]outbound.Transport, 0, len(cfg.Providers))

	for _, p := range cfg.Providers {
		switch p.Kind {
		case "mock":
			transports = append(transports, mock.New(p.Name, p.FailureRate, time.Duration(p.LatencyMs)*time.Millisecond))
		case "grpc":
			client, err := grpctransport.Dial(p.Name, p.Address, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", p.Name, err)
			}
			transports = append(transports, client)
		default:
			return nil, fmt.Errorf("provider %s: unknown kind %q", p.Name, p.Kind)
		}
	}

	return transports, nil
}

// bootstrapAdmin fills in a default admin password on first run, mirroring
// the teacher's auto-bootstrap convention but scoped to the single admin
// principal this service carries instead of a user store.
func bootstrapAdmin(cfg *config.Config, logger outbound.Logger) {
	passwords := auth.NewPasswordService()

	salt, err := passwords.NewSalt()
	if err != nil {
		logger.Error("Failed to generate admin salt", "error", err)
		return
	}

	hash := passwords.HashPassword("admin", salt)
	cfg.Security.AdminPasswordHash = auth.EncodeSalt(salt) + hash

	logger.Info("Default admin credentials bootstrapped",
		"username", cfg.Security.AdminUsername,
		"password", "admin",
		"action", "change the password hash in config after first login")
}
