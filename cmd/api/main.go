package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"checkin/internal/attendance"
	"checkin/internal/bootstrap"
	"checkin/internal/cloudinary"
	"checkin/internal/config"
	"checkin/internal/credential"
	"checkin/internal/handler"
	"checkin/internal/httpmiddleware"
	"checkin/internal/queue"
	"checkin/internal/roster"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backends, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer backends.Close()

	loc := cfg.Location()
	repo := attendance.NewRepository(backends.Store)
	svc := attendance.NewService(repo, attendance.Options{
		Queue:      backends.Queue,
		Claimer:    backends.Claimer,
		Parser:     roster.NewParser(),
		Location:   loc,
		TimeLayout: cfg.RegisteredTimeLayout,
	})

	// The memory queue has no external worker; drain it here.
	if backends.InProcessQueue() {
		go func() {
			if err := queue.Run(ctx, backends.Queue, repo.SaveBookkeeping); err != nil {
				log.Printf("bookkeeping consumer stopped: %v", err)
			}
		}()
	}

	if n := svc.Load(ctx); n > 0 {
		log.Printf("restored %d check-ins from %s", n, backends.Store.Name())
	}

	var cdnClient *cloudinary.Client
	if cfg.CloudinaryConfigured() {
		cdnClient = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured, card publishing disabled")
	}

	codec := credential.NewCodec(cfg.CredentialSigningKey)
	if !codec.Signed() {
		log.Println("CREDENTIAL_SIGNING_KEY not set, QR payloads are unsigned")
	}

	health := map[string]handler.HealthCheck{}
	if backends.DB != nil {
		health["db"] = backends.DB.Healthy
	}
	if backends.Redis != nil {
		health["redis"] = backends.Redis.Healthy
	}

	h := handler.New(svc, codec, credential.NewRenderer(cfg.QRServiceURL, cfg.QRSkip), handler.Options{
		Cloud:      cdnClient,
		Location:   loc,
		TimeLayout: cfg.RegisteredTimeLayout,
		Health:     health,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", httpmiddleware.StationHeader},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	h.Routes(r, limiter.GinMiddleware())

	if index := filepath.Join(cfg.WebDir, "index.html"); fileExists(index) {
		r.StaticFile("/", index)
		r.Static("/static", filepath.Join(cfg.WebDir, "static"))
	}

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s (store: %s)", cfg.HTTPPort, backends.Store.Name())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
