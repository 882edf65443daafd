package invoke

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"arbiter/internal/debate"
	"arbiter/internal/logging"
)

// ExecInvoker runs an external CLI agent (codex, gemini, claude, ...) as a
// subprocess. The prompt is fed on stdin and the agent's stdout is parsed
// into an Opinion. Each call runs under its own timeout.
type ExecInvoker struct {
	Command      string
	Args         []string
	Timeout      time.Duration
	DefaultScore int // used when the response carries no parsable score
}

// NewExecInvoker builds an invoker for the given command line. A zero timeout
// falls back to DefaultTimeout.
func NewExecInvoker(command string, args []string, timeout time.Duration) *ExecInvoker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExecInvoker{
		Command:      command,
		Args:         args,
		Timeout:      timeout,
		DefaultScore: 75,
	}
}

// Invoke runs the backend once. No retries: retry policy belongs to the
// caller.
func (e *ExecInvoker) Invoke(ctx context.Context, prompt, role string) (*debate.Opinion, error) {
	logger := logging.New("invoke")

	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.Command, e.Args...)
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logger.Warn("backend timed out", "role", role, "command", e.Command, "timeout", e.Timeout)
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, e.Command, e.Timeout)
		}
		logger.Warn("backend process failed", "role", role, "command", e.Command, "error", err, "stderr", truncate(stderr.String(), 200))
		return nil, fmt.Errorf("%w: %s: %v", ErrProcess, e.Command, err)
	}

	response := stdout.String()
	if strings.TrimSpace(response) == "" {
		logger.Warn("backend returned empty response", "role", role, "command", e.Command)
		return nil, fmt.Errorf("%w: empty response from %s", ErrMalformedResponse, e.Command)
	}

	op := ParseOpinion(response, role, e.DefaultScore)
	logger.Info("backend responded", "role", role, "score", op.Score, "findings", len(op.Findings), "elapsed", elapsed)
	return op, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
