package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rajatk8400/gochat/internal/cache"
	cachememory "github.com/Rajatk8400/gochat/internal/cache/memory"
	"github.com/Rajatk8400/gochat/internal/config"
	"github.com/Rajatk8400/gochat/internal/handler"
	"github.com/Rajatk8400/gochat/internal/logger"
	"github.com/Rajatk8400/gochat/internal/middleware"
	"github.com/Rajatk8400/gochat/internal/push"
	"github.com/Rajatk8400/gochat/internal/startup"
	"github.com/Rajatk8400/gochat/internal/store"
	"github.com/Rajatk8400/gochat/internal/store/postgres"
	"github.com/Rajatk8400/gochat/internal/ws"
	"github.com/Rajatk8400/gochat/migrations"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL and an in-memory cache")
	flag.Parse()

	logger.Info("starting chat sync service")
	cfg := config.Load()

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 4

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second, "")
	defer pool.Close()

	runMigrations(pool)
	if *migrate && !*dev {
		return
	}

	// Presence is connection-scoped; anything left from a crash is stale.
	resetCtx, resetCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if _, err := pool.Exec(resetCtx, "UPDATE users SET is_online = false"); err != nil {
		logger.Errorf("reset online status: %v", err)
	}
	resetCancel()
	logger.Info("database connected, migrations applied")

	stores := store.Stores{
		Messages:      postgres.NewMessageRepo(pool),
		Conversations: postgres.NewConversationRepo(pool),
		Users:         postgres.NewUserRepo(pool),
		Subscriptions: postgres.NewSubscriptionRepo(pool),
	}

	var convCache cache.ConversationCache
	if *dev {
		convCache = cachememory.New(cfg.Cache.TTL())
	} else {
		convCache = startup.ConnectCacheWithRetry(cfg.Redis.URL, cfg.Cache.TTL(), 30*time.Second, "")
	}
	defer convCache.Close()

	vapidKeys, err := push.EnsureVAPIDKeys(cfg.PushVAPIDKeysFile)
	if err != nil {
		logger.Errorf("vapid keys: %v", err)
		os.Exit(1)
	}
	notifier := push.NewNotifier(stores.Subscriptions, vapidKeys, "mailto:admin@localhost")

	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := ws.NewHub(stores, cfg.MaxWSConnections, notifier, cacheInvalidator{convCache})

	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	wsTuning := ws.Tuning{
		SendBufferSize: cfg.WSSendBufferSize,
		WriteTimeout:   time.Duration(cfg.WSWriteTimeout) * time.Second,
		PongTimeout:    time.Duration(cfg.WSPongTimeout) * time.Second,
		MaxMessageSize: int64(cfg.WSMaxMessageSize),
	}

	convH := handler.NewConversationHandler(stores, convCache)
	msgH := handler.NewMessageHandler(stores, hub, cfg.ReactionsUniquePerUser)
	userH := handler.NewUserHandler(stores)
	pushH := handler.NewPushHandler(stores.Subscriptions, vapidKeys.PublicKey)
	configH := handler.NewConfigHandler(cfg)
	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins, wsTuning)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(middleware.RecoverJSON)
	// Never compress WebSocket traffic: the wrapped ResponseWriter loses
	// http.Hijacker and the upgrade fails with a 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Get("/api/config/chat", configH.GetChatConfig)
	r.Get("/api/push/vapid-key", pushH.VAPIDPublicKey)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.AuthServiceURL, nil))
		r.Get("/api/users/me", userH.Me)
		r.Get("/api/users/search", userH.Search)
		r.Get("/api/users/{id}", userH.Get)
		r.Get("/api/conversations", convH.List)
		r.Post("/api/conversations/direct", convH.OpenDirect)
		r.Post("/api/conversations/group", convH.CreateGroup)
		r.Get("/api/conversations/{id}", convH.Get)
		r.Get("/api/conversations/{id}/messages", convH.Messages)
		r.Post("/api/messages/{id}/react", msgH.React)
		r.Post("/api/messages/{id}/read", msgH.MarkRead)
		r.Delete("/api/messages/{id}", msgH.Delete)
		r.Post("/api/push/subscribe", pushH.Subscribe)
		r.Delete("/api/push/subscribe", pushH.Unsubscribe)
		r.Get("/ws", wsH.ServeWS)
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

// cacheInvalidator adapts the conversation cache to the hub, which treats
// invalidation as fire-and-forget.
type cacheInvalidator struct {
	cache cache.ConversationCache
}

func (ci cacheInvalidator) InvalidateConversations(ctx context.Context, userID string) {
	if err := ci.cache.Invalidate(ctx, userID); err != nil {
		logger.Errorf("cache invalidate %s: %v", userID, err)
	}
}

func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := fs.Glob(migrations.Files, "*.sql")
	if err != nil {
		logger.Errorf("list migrations: %v", err)
		os.Exit(1)
	}
	for _, name := range entries {
		data, err := fs.ReadFile(migrations.Files, name)
		if err != nil {
			logger.Errorf("read migration %s: %v", name, err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", name, err)
			os.Exit(1)
		}
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "gochat"
		password = "gochat_secret"
		database = "gochat"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
