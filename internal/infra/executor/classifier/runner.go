package classifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	domain "github.com/bryanwahyu/heartscan/internal/domain/analysis"
	"github.com/bryanwahyu/heartscan/internal/logger"
)

// Runner launches `<interpreter> <script> <file>` once per upload.
type Runner struct {
	interpreter string
	script      string
	timeout     time.Duration
	log         *logger.Logger
}

type Options struct {
	Interpreter string // explicit executable; empty means the venv python for this OS
	VenvDir     string
	Script      string
	Timeout     time.Duration
}

func NewRunner(opts Options, log *logger.Logger) *Runner {
	interp := opts.Interpreter
	if interp == "" {
		interp = InterpreterPath(runtime.GOOS, opts.VenvDir)
	}
	script := opts.Script
	if abs, err := filepath.Abs(script); err == nil {
		script = abs
	}
	return &Runner{
		interpreter: interp,
		script:      script,
		timeout:     opts.Timeout,
		log:         log.With("component", "classifier"),
	}
}

// InterpreterPath picks the virtualenv python for goos.
func InterpreterPath(goos, venvDir string) string {
	if goos == "windows" {
		return filepath.Join(venvDir, "Scripts", "python.exe")
	}
	return filepath.Join(venvDir, "bin", "python")
}

func (r *Runner) Run(ctx context.Context, req domain.RunRequest) (domain.RunResult, error) {
	start := time.Now()
	// a dropped client must not kill the classifier; only the timeout stops it
	ctx = context.WithoutCancel(ctx)
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.interpreter, r.script, req.FilePath)
	// kill leaves grandchildren holding the pipes; stop waiting on them after a grace period
	cmd.WaitDelay = 2 * time.Second

	var outBuf bytes.Buffer
	errLog := &stderrLogger{log: r.log}
	cmd.Stdout = &outBuf
	cmd.Stderr = errLog

	r.log.Info("starting classifier", "interpreter", r.interpreter, "script", r.script, "file", req.FilePath)
	if err := cmd.Start(); err != nil {
		return domain.RunResult{}, fmt.Errorf("%w: %v", domain.ErrLaunch, err)
	}
	waitErr := cmd.Wait()
	errLog.flush()

	res := domain.RunResult{
		Stdout:   outBuf.Bytes(),
		Stderr:   errLog.buf.Bytes(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			r.log.Error("classifier timed out", "file", req.FilePath, "timeout", r.timeout)
			return res, fmt.Errorf("%w after %s", domain.ErrTimeout, r.timeout)
		}
		return res, ctxErr
	}

	var ee *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &ee) {
		return res, fmt.Errorf("wait classifier: %w", waitErr)
	}

	r.log.Info("classifier finished", "exit_code", res.ExitCode, "duration_ms", res.Duration.Milliseconds())
	return res, nil
}

// stderrLogger accumulates stderr and logs it line by line as it arrives.
type stderrLogger struct {
	log     *logger.Logger
	buf     bytes.Buffer
	pending []byte
}

func (w *stderrLogger) Write(p []byte) (int, error) {
	w.buf.Write(p)
	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		w.log.Warn("classifier stderr", "line", string(w.pending[:i]))
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}

func (w *stderrLogger) flush() {
	if len(w.pending) > 0 {
		w.log.Warn("classifier stderr", "line", string(w.pending))
		w.pending = nil
	}
}
