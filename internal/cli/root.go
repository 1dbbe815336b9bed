package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/datasense-ai/server/internal/agent/graph"
	"github.com/datasense-ai/server/internal/agent/graph/conversations"
	"github.com/datasense-ai/server/internal/agent/graph/nodes"
	"github.com/datasense-ai/server/internal/agent/model"
	"github.com/datasense-ai/server/internal/agent/repo"
	errx "github.com/datasense-ai/server/internal/core/error"
	"github.com/datasense-ai/server/internal/dataset"
	"github.com/datasense-ai/server/internal/sandbox"
	"github.com/datasense-ai/server/internal/session"
	logx "github.com/datasense-ai/server/pkg/logger"
)

var (
	envFile  string
	dataFile string
	cfg      *AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "datasense",
	Short: "DataSense answers questions about a tabular dataset",
	Long: `DataSense loads a CSV or Excel file and answers natural-language
requests about it with charts, tables and text.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = LoadConfig(envFile)
		if err != nil {
			return err
		}
		logx.Init(logx.LoggerOpts{Environment: cfg.Env(), Level: cfg.LogLevel})
		return nil
	},
}

// Execute runs the root command. It is called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode maps a command error to a process exit status: 0 on success, 2
// when the error carries a client-side status and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if status := errx.StatusOf(err); status >= 400 && status < 500 {
		return 2
	}
	return 1
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVarP(&dataFile, "file", "f", "", "dataset to analyse (.csv, .xls or .xlsx)")
}

func loadDataset() (*dataset.Frame, error) {
	if dataFile == "" {
		return nil, fmt.Errorf("%w: pass --file", session.ErrNoDataset)
	}
	return dataset.LoadFile(dataFile)
}

// openSession wires the model client, sandbox and history store, then starts
// a session over the --file dataset. The returned cleanup releases Redis.
func openSession(ctx context.Context) (*session.Session, func(), error) {
	frame, err := loadDataset()
	if err != nil {
		return nil, nil, err
	}
	if cfg.APIKey == "" {
		return nil, nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	client, err := graph.NewLLMClient(ctx, nodes.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create model client: %w", err)
	}

	evaluator, err := sandbox.NewPythonEvaluator(cfg.Sandbox)
	if err != nil {
		return nil, nil, err
	}

	sessions, cleanup, err := sessionRepository(ctx)
	if err != nil {
		return nil, nil, err
	}

	s, err := session.New(ctx, session.Deps{
		LLM:     client,
		Sandbox: evaluator,
		Agent:   cfg.Agent,
		Summary: cfg.Dataset,
		Turns:   conversations.NewTurnsManager(sessions, cfg.Session),
	}, dataFile, frame)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return s, cleanup, nil
}

func sessionRepository(ctx context.Context) (model.SessionRepository, func(), error) {
	if !cfg.Redis.Enabled() {
		logx.Debug().Msg("REDIS_URL not set; keeping session history in memory")
		return repo.NewMemorySessionRepository(), func() {}, nil
	}
	ttl, err := cfg.SessionTTL()
	if err != nil {
		return nil, nil, err
	}
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	rdb, err := cfg.Redis.New(dialCtx)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	logx.Debug().Msg("Connected to Redis successfully")
	return repo.NewRedisSessionRepository(rdb, ttl), func() { _ = rdb.Close() }, nil
}
