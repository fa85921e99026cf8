package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/habitvote/internal/auth"
	"github.com/hitoshi/habitvote/internal/config"
	"github.com/hitoshi/habitvote/internal/database"
	"github.com/hitoshi/habitvote/internal/handler"
	"github.com/hitoshi/habitvote/internal/logger"
	"github.com/hitoshi/habitvote/internal/metrics"
	"github.com/hitoshi/habitvote/internal/middleware"
	"github.com/hitoshi/habitvote/internal/model"
	"github.com/hitoshi/habitvote/internal/repository"
	"github.com/hitoshi/habitvote/internal/security"
	"github.com/hitoshi/habitvote/internal/vote"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Init はアプリケーションの初期化を行う。
// カレントディレクトリの.envを読み込み、設定を読み込んでJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer, configPath string) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, "info")

	// 2. .envは任意。既に設定済みの環境変数は上書きしない
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 3. 設定を読み込む
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. 設定されたレベルでログを再設定する
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Server はAPIサーバーの依存関係を組み立てた結果。
type Server struct {
	Handler     http.Handler
	rateLimiter *middleware.RateLimiter
}

// Close はサーバーが保持するバックグラウンド処理を停止する。
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

// NewServer はDB接続と設定から全依存関係をワイヤリングし、HTTPハンドラーを構築する。
// regにはメトリクスの登録先を指定する。
func NewServer(cfg *config.Config, db *sql.DB, reg *prometheus.Registry, log *slog.Logger) (*Server, error) {
	dialect, err := repository.DialectFor(cfg.DatabaseDriver)
	if err != nil {
		return nil, err
	}

	// 1. メトリクス
	collector := metrics.NewCollector(reg)

	// 2. リポジトリの初期化
	voteRepo := repository.NewSQLVoteRepo(db, dialect)
	identityRepo := repository.NewSQLIdentityRepo(db, dialect)

	// 3. ドメインサービスの初期化
	clock := vote.RealClock{}
	calendar := vote.NewCalendar(cfg.Location)

	ledger := vote.NewLedger(vote.LedgerDeps{
		Votes:          voteRepo,
		Guard:          vote.NewGuard(identityRepo),
		Stats:          vote.NewStatsAggregator(voteRepo, clock, calendar, collector),
		Markup:         security.NewMarkupDetector(),
		Clock:          clock,
		Calendar:       calendar,
		NotesMaxLength: cfg.NotesMaxLength,
		Logger:         log,
		Metrics:        collector,
	})

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitWrite),
		collector,
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Verifier:          auth.NewVerifier(tokenConfig(cfg)),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            log,
		Metrics:           collector,
		HealthChecker:     db,
		Gatherer:          reg,
		VoteService:       handler.NewVoteServiceAdapter(ledger),
	})

	return &Server{Handler: router, rateLimiter: rateLimiter}, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// sqliteはローカル開発用のため、起動時にマイグレーションを適用する
	if cfg.DatabaseDriver == database.DriverSQLite {
		if err := database.MigrateDB(cfg.DatabaseDriver, db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	// 2. 依存関係のワイヤリング
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := NewServer(cfg, db, reg, slog.Default())
	if err != nil {
		return err
	}
	defer srv.Close()

	// 3. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.String("day_boundary_tz", cfg.Location.String()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("driver", cfg.DatabaseDriver),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseDriver, cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// runToken は開発用のアクセストークンを発行してwに出力する。
func runToken(cfg *config.Config, w io.Writer, userID int64, email string) error {
	token, err := auth.NewIssuer(tokenConfig(cfg)).Issue(userID, email)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}
	fmt.Fprintln(w, token)
	return nil
}

// runSeedIdentity はユーザーの主identityを作成し、そのIDをwに出力する。
// 既に主identityがある場合は作成せずに既存のIDを出力する。
func runSeedIdentity(ctx context.Context, cfg *config.Config, w io.Writer, userID int64) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	dialect, err := repository.DialectFor(cfg.DatabaseDriver)
	if err != nil {
		return err
	}
	repo := repository.NewSQLIdentityRepo(db, dialect)

	id, created, err := seedPrimaryIdentity(ctx, repo, userID)
	if err != nil {
		return err
	}
	if created {
		slog.Info("primary identity created", slog.Int64("user_id", userID), slog.Int64("scope_id", id))
	}
	fmt.Fprintln(w, id)
	return nil
}

// seedPrimaryIdentity は主identityがなければ作成し、そのIDと作成したかどうかを返す。
func seedPrimaryIdentity(ctx context.Context, repo repository.IdentityRepository, userID int64) (int64, bool, error) {
	if userID <= 0 {
		return 0, false, fmt.Errorf("user id must be positive: %d", userID)
	}

	existing, err := repo.FindPrimaryByUser(ctx, userID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to find primary identity: %w", err)
	}
	if existing != nil {
		return existing.ID, false, nil
	}

	scope := &model.IdentityScope{UserID: userID, IsPrimary: true}
	if err := repo.Create(ctx, scope); err != nil {
		return 0, false, fmt.Errorf("failed to create primary identity: %w", err)
	}
	return scope.ID, true, nil
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established", slog.String("driver", cfg.DatabaseDriver))
	return db, nil
}

func tokenConfig(cfg *config.Config) auth.TokenConfig {
	return auth.TokenConfig{
		Secret: []byte(cfg.JWTSecret),
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.TokenTTL,
	}
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

// healthcheckPort はヘルスチェック先のポートを環境変数から決定する。
// healthcheckは設定全体を読み込まないため、SERVER_PORTのみを参照する。
func healthcheckPort() string {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		return port
	}
	return "8080"
}
