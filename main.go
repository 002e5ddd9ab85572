package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-hub/internal/auth"
	"chat-hub/internal/config"
	"chat-hub/internal/db"
	"chat-hub/internal/handlers"
	"chat-hub/internal/middleware"
	"chat-hub/internal/observability"
	"chat-hub/internal/rabbitmq"
	"chat-hub/internal/repositories"
	"chat-hub/internal/services"
	"chat-hub/internal/telemetry"
	"chat-hub/internal/ws"
)

const healthInterval = 10 * time.Second

func main() {
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	ctx := context.Background()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.ServiceName, cfg.AppEnv, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	log.Printf("event publisher mode=%s reason=%q", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))
	observability.SetPublisher(publisher)
	auditEmitter := telemetry.NewAuditEmitter(publisher, telemetry.AuditRoutingKey, cfg.ServiceName, cfg.AppEnv)

	st, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect to store: %v", err)
	}

	roomRepo := repositories.NewRoomRepo(st)
	messageRepo := repositories.NewMessageRepo(st)
	chatService := services.NewChatService(roomRepo, messageRepo, st, cfg.IsDev())

	verifier := auth.NewVerifier(cfg.JWTSecret)
	hub := ws.NewHub()
	gateway := ws.NewGateway(hub, chatService, verifier, auditEmitter)
	chatHandler := handlers.NewChatHandler(chatService)

	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// middlewares
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(gin.Logger(), gin.Recovery())

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.GET("/ws", gateway.Handle)
	router.GET("/chats", authMiddleware, chatHandler.ListChats)
	router.GET("/chats/:room_id/messages", authMiddleware, chatHandler.GetChatMessages)
	router.GET("/healthz", func(c *gin.Context) {
		if err := st.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, auditEmitter, chatService, authMiddleware, cfg.IsDev())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("chat service listening on :%s env=%s store=%s", cfg.Port, cfg.AppEnv, cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	var health *observability.HealthServer
	healthCtx, stopHealth := context.WithCancel(ctx)
	if cfg.GRPCHealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			log.Fatalf("failed to listen for grpc health: %v", err)
		}
		health = observability.NewHealthServer(cfg.ServiceName, st.Ping)
		go health.Run(healthCtx, healthInterval)
		go func() {
			log.Printf("grpc health listening on %s", cfg.GRPCHealthAddr)
			if err := health.Serve(lis); err != nil {
				log.Printf("grpc health stopped: %v", err)
			}
		}()
	}

	wait := gfshutdown.GracefulShutdown(
		ctx,
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
			"grpc-health": func(ctx context.Context) error {
				stopHealth()
				if health == nil {
					return nil
				}
				return health.Shutdown(ctx)
			},
			"store": func(ctx context.Context) error {
				return st.Close()
			},
			"publisher": func(ctx context.Context) error {
				return publisher.Close()
			},
			"tracer": func(ctx context.Context) error {
				return shutdownTracer(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("chat service exited with code: %d", exitCode)
	os.Exit(exitCode)
}
