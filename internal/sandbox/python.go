package sandbox

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/datasense-ai/server/internal/dataset"
	logx "github.com/datasense-ai/server/pkg/logger"
)

//go:embed harness.py
var harness []byte

const (
	codeFile   = "analysis.py"
	dataFile   = "data.csv"
	resultFile = "result.json"
	harnessPy  = "harness.py"

	maxStderr = 4 * 1024
)

// Config controls the Python evaluator.
type Config struct {
	Python       string        `envconfig:"SANDBOX_PYTHON" default:"python3"`
	Timeout      time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"60s"`
	MaxCodeBytes int           `envconfig:"SANDBOX_MAX_CODE_BYTES" default:"50000"`
}

// PythonEvaluator runs every snippet in its own interpreter process and
// temporary directory, so nothing carries over between evaluations.
type PythonEvaluator struct {
	cfg       Config
	validator Validator
}

// NewPythonEvaluator resolves the interpreter and returns an evaluator.
func NewPythonEvaluator(cfg Config) (*PythonEvaluator, error) {
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	path, err := exec.LookPath(cfg.Python)
	if err != nil {
		return nil, fmt.Errorf("python interpreter %q not found: %w", cfg.Python, err)
	}
	cfg.Python = path
	return &PythonEvaluator{cfg: cfg, validator: Validator{MaxCodeBytes: cfg.MaxCodeBytes}}, nil
}

// Evaluate implements Evaluator.
func (p *PythonEvaluator) Evaluate(ctx context.Context, code string, df *dataset.Frame) (any, error) {
	if err := p.validator.Validate(code); err != nil {
		return nil, err
	}
	if df == nil {
		return nil, fmt.Errorf("no dataset bound")
	}
	return p.run(ctx, code, df)
}

// run executes already validated code in a fresh interpreter.
func (p *PythonEvaluator) run(ctx context.Context, code string, df *dataset.Frame) (any, error) {
	workDir, err := os.MkdirTemp("", "datasense_py_*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	if err := p.stage(workDir, code, df); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	// -I: isolated mode, ignores PYTHON* variables and the user site directory
	cmd := exec.CommandContext(ctx, p.cfg.Python, "-I", "-B", harnessPy, codeFile, dataFile, resultFile)
	cmd.Dir = workDir
	cmd.Env = scrubbedEnv(workDir)
	cmd.WaitDelay = 2 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logx.Warn().Dur("timeout", p.cfg.Timeout).Msg("Sandbox evaluation timed out")
		return nil, fmt.Errorf("%w after %s", ErrTimeout, p.cfg.Timeout)
	}

	raw, readErr := os.ReadFile(filepath.Join(workDir, resultFile))
	if readErr != nil {
		msg := tail(stderr.String())
		if msg == "" && runErr != nil {
			msg = runErr.Error()
		}
		return nil, &ExecError{Message: msg, Stderr: stderr.String()}
	}

	logx.Debug().Dur("elapsed", elapsed).Int("result_bytes", len(raw)).Msg("Sandbox evaluation finished")
	return Decode(raw)
}

func (p *PythonEvaluator) stage(workDir, code string, df *dataset.Frame) error {
	if err := os.WriteFile(filepath.Join(workDir, harnessPy), harness, 0o600); err != nil {
		return fmt.Errorf("write harness: %w", err)
	}
	if err := os.WriteFile(filepath.Join(workDir, codeFile), []byte(code), 0o600); err != nil {
		return fmt.Errorf("write code: %w", err)
	}
	f, err := os.Create(filepath.Join(workDir, dataFile))
	if err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	defer f.Close()
	if err := df.WriteCSV(f); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	return nil
}

// scrubbedEnv carries no credentials from the parent process.
func scrubbedEnv(workDir string) []string {
	return []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=" + workDir,
		"TMPDIR=" + workDir,
		"MPLCONFIGDIR=" + workDir,
		"LANG=C.UTF-8",
		"PYTHONIOENCODING=utf-8",
	}
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = s[len(s)-maxStderr:]
	}
	lines := strings.Split(s, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

var _ Evaluator = (*PythonEvaluator)(nil)
