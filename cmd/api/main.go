package main

import (
	"context"
	"log"
	"time"

	"sentinal-assist/config"
	"sentinal-assist/internal/handler"
	"sentinal-assist/internal/llm"
	"sentinal-assist/internal/metrics"
	"sentinal-assist/internal/redis"
	"sentinal-assist/internal/repository"
	"sentinal-assist/internal/server"
	"sentinal-assist/internal/services"
	"sentinal-assist/internal/websocket"
	"sentinal-assist/pkg/database"
	"sentinal-assist/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	l := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(l)
	defer func() { _ = l.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checks := map[string]server.HealthCheck{}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	var userRepo repository.UserRepository
	switch cfg.UserStore {
	case config.StorePostgres:
		pool, err := database.Connect(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()
		if err := repository.InitSchema(ctx, pool); err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}
		userRepo = repository.NewUserRepository(pool)
		checks["postgres"] = func(ctx context.Context) error { return database.HealthCheck(ctx, pool) }
		l.Infof("Users stored in postgres %s:%s/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)
	default:
		userRepo = repository.NewMemoryUserRepository()
		l.Infof("Users stored in memory")
	}

	var otpStore repository.OTPStore
	switch cfg.OTPStore {
	case config.StoreRedis:
		client := redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		if err := redis.Ping(ctx, client); err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		otpStore = redis.NewOTPStore(client)
		checks["redis"] = func(ctx context.Context) error { return redis.Ping(ctx, client) }
		l.Infof("OTP codes stored in redis %s:%s", cfg.RedisHost, cfg.RedisPort)
	default:
		mem := repository.NewMemoryOTPStore()
		if cfg.OTPTTL > 0 {
			go mem.RunJanitor(ctx, time.Minute)
		}
		otpStore = mem
		l.Infof("OTP codes stored in memory")
	}

	var tokens services.TokenIssuer
	if cfg.TokenMode == config.TokenModeJWT {
		tokens = services.NewJWTTokenIssuer(cfg.JWTSecret, time.Duration(cfg.JWTExpiryMin)*time.Minute, nil)
	} else {
		tokens = services.NewMockTokenIssuer(nil)
	}

	authService := services.NewAuthService(userRepo, otpStore,
		services.WithCodeHasher(services.NewBcryptHasher(cfg.OTPHashCost)),
		services.WithTokenIssuer(tokens),
		services.WithOTPTTL(cfg.OTPTTL),
		services.WithLogger(l),
		services.WithAuthMetrics(collector),
	)

	var chatClient services.ChatClient
	if cfg.LLMProvider == config.ProviderEcho {
		chatClient = llm.EchoClient{}
		l.Warnf("LLM_PROVIDER=echo: chat replies echo the prompt")
	} else {
		if cfg.LLMAPIKey == "" {
			l.Warnf("LLM_API_KEY is empty; chat requests will likely be rejected upstream")
		}
		chatClient = llm.NewClient(llm.Config{
			BaseURL:     cfg.LLMBaseURL,
			APIKey:      cfg.LLMAPIKey,
			Model:       cfg.LLMModel,
			Temperature: cfg.LLMTemperature,
			Timeout:     cfg.LLMTimeout,
		})
	}
	chatService := services.NewChatService(chatClient).WithMetrics(collector)

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		Chat:    handler.NewChatHandler(chatService, l),
		ChatWS:  websocket.NewChatHandler(chatService, cfg.CORSOrigins, l),
		Metrics: collector,
	}, checks)

	if err := srv.Start(); err != nil {
		l.Errorf("Server exited with error: %s", err)
	}
}
