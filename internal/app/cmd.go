package app

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/hitoshi/habitvote/internal/config"
	"github.com/spf13/cobra"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandToken は開発用のアクセストークンを発行することを示す。
	CommandToken Command = "token"
	// CommandSeedIdentity は開発用に主identityを作成することを示す。
	CommandSeedIdentity Command = "seed-identity"
)

// Run はアプリケーションのメインエントリーポイント。
// ログはlogOutに、tokenなどのコマンド出力はoutに書き込む。
// argsにはos.Args[1:]を渡す。サブコマンド省略時はserveとして起動する。
func Run(logOut, out io.Writer, args []string) error {
	root := NewRootCommand(logOut, out)
	root.SetArgs(args)
	return root.Execute()
}

// NewRootCommand はサブコマンドを登録したルートコマンドを返す。
func NewRootCommand(logOut, out io.Writer) *cobra.Command {
	var configPath string

	// setup はサブコマンドの共通初期化。
	setup := func(cmd Command) (*config.Config, error) {
		cfg, err := Init(logOut, configPath)
		if err != nil {
			return nil, fmt.Errorf("initialization failed: %w", err)
		}
		slog.Info("starting application",
			slog.String("command", string(cmd)),
			slog.String("driver", cfg.DatabaseDriver),
		)
		return cfg, nil
	}

	serveRun := func(cmd *cobra.Command, args []string) error {
		cfg, err := setup(CommandServe)
		if err != nil {
			return err
		}
		return runServe(cfg)
	}

	root := &cobra.Command{
		Use:           "habitvote",
		Short:         "Daily check-in ledger and streak API",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          serveRun,
	}
	root.SetOut(out)
	root.SetErr(logOut)
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to TOML config file (default $HABITVOTE_CONFIG)")

	serveCmd := &cobra.Command{
		Use:   string(CommandServe),
		Short: "Start the API server",
		Args:  cobra.NoArgs,
		RunE:  serveRun,
	}

	migrateCmd := &cobra.Command{
		Use:   string(CommandMigrate),
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(CommandMigrate)
			if err != nil {
				return err
			}
			return runMigrate(cfg)
		},
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	healthcheckCmd := &cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "Check the local /health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealthcheck(healthcheckPort())
		},
	}

	var email string
	tokenCmd := &cobra.Command{
		Use:   string(CommandToken) + " <userId>",
		Short: "Issue a bearer token for local development",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserIDArg(args[0])
			if err != nil {
				return err
			}
			cfg, err := setup(CommandToken)
			if err != nil {
				return err
			}
			return runToken(cfg, cmd.OutOrStdout(), userID, email)
		},
	}
	tokenCmd.Flags().StringVar(&email, "email", "", "email claim to embed in the token")

	seedCmd := &cobra.Command{
		Use:   string(CommandSeedIdentity) + " <userId>",
		Short: "Create a primary identity for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserIDArg(args[0])
			if err != nil {
				return err
			}
			cfg, err := setup(CommandSeedIdentity)
			if err != nil {
				return err
			}
			return runSeedIdentity(cmd.Context(), cfg, cmd.OutOrStdout(), userID)
		},
	}

	root.AddCommand(serveCmd, migrateCmd, healthcheckCmd, tokenCmd, seedCmd)
	return root
}

func parseUserIDArg(raw string) (int64, error) {
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("userId must be a positive integer: %q", raw)
	}
	return userID, nil
}
