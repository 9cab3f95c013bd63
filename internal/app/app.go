// Package app はサブコマンドの解析と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/trackbox/internal/auth"
	"github.com/hitoshi/trackbox/internal/blob"
	"github.com/hitoshi/trackbox/internal/config"
	"github.com/hitoshi/trackbox/internal/database"
	"github.com/hitoshi/trackbox/internal/handler"
	"github.com/hitoshi/trackbox/internal/logger"
	"github.com/hitoshi/trackbox/internal/metrics"
	"github.com/hitoshi/trackbox/internal/middleware"
	"github.com/hitoshi/trackbox/internal/repository"
	"github.com/hitoshi/trackbox/internal/track"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再初期化
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		var rest []string
		if len(args) > 1 {
			rest = args[1:]
		}
		return runMigrate(cfg, rest)
	default:
		return runServe(cfg)
	}
}

// runServe はHTTPサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	log := slog.Default()

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	healthChecker := database.NewHealthChecker(db)
	if err := healthChecker.Check(context.Background()); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	trackRepo := repository.NewPostgresTrackRepo(db)

	// 4. 認証サービスクライアントの初期化
	if cfg.AuthBaseURL == "" {
		slog.Warn("PUBLIC_NEON_AUTH_URL is not set; all requests are treated as unauthenticated")
	}
	authClient := auth.NewClient(&http.Client{Timeout: cfg.AuthTimeout}, cfg.AuthBaseURL)
	resolver := auth.NewResolver(authClient, userRepo, log)

	// 5. Blob Storageの初期化
	store, err := newBlobStore(context.Background(), cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize blob storage: %w", err)
	}
	if !cfg.BlobConfigured() {
		slog.Warn("blob storage credentials are not set; uploads will be rejected",
			slog.String("backend", cfg.BlobBackend),
		)
	}

	// 6. ドメインサービスの初期化
	trackService := track.NewService(trackRepo, store, collector, log, track.Options{
		AddRandomSuffix: cfg.BlobAddRandomSuffix,
	})

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.UploadRateLimiterConfig(cfg.UploadRatePerMin))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:          log,
		SessionResolver: resolver,
		RateLimiter:     rateLimiter,
		BaseURL:         cfg.BaseURL,
		TrackService:    trackService,
		MaxUploadBytes:  cfg.MaxUploadBytes,
		HealthChecker:   healthChecker,
		Metrics:         collector,
		MetricsHandler:  metrics.Handler(reg),
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      cfg.BlobTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("HTTP server stopped gracefully")
	return nil
}

// newBlobStore は設定されたバックエンドのBlob Storeを生成する。
// 資格情報が未設定でもStoreは返し、アップロード時に未設定として扱う。
func newBlobStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (blob.Store, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendS3:
		return blob.NewS3Store(ctx, blob.S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.BlobToken,
			PublicBaseURL:   cfg.S3PublicBaseURL,
		}, log)
	case config.BlobBackendHTTP, "":
		return blob.NewHTTPStore(&http.Client{Timeout: cfg.BlobTimeout}, log, cfg.BlobAPIURL, cfg.BlobToken), nil
	default:
		return nil, fmt.Errorf("unsupported blob backend: %q", cfg.BlobBackend)
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// 引数なしまたはupの場合はすべての未適用マイグレーションを適用する。
// downは直近の1つを戻し、versionは現在のバージョンをログに出力する。
func runMigrate(cfg *config.Config, args []string) error {
	action, ok := ParseMigrateAction(args)
	if !ok {
		return fmt.Errorf("unknown migrate action: %q (want up, down or version)", args[0])
	}

	slog.Info("running database migrations",
		slog.String("action", string(action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch action {
	case MigrateDown:
		if err := database.RollbackMigration(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
		slog.Info("rolled back one migration")
	case MigrateVersion:
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		slog.Info("current migration version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("database migrations completed successfully")
	}

	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	u.RawQuery = ""
	if u.User == nil {
		return u.String()
	}
	u.User = nil
	return strings.Replace(u.String(), "://", "://***@", 1)
}
