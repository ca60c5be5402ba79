package docs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const defaultCLITimeout = 2 * time.Minute

// CLIResolver shells out to an external documentation client:
//
//	<bin> <args...> resolve <name>
//	<bin> <args...> fetch <id> [--topic t] [--tokens n]
type CLIResolver struct {
	binaryPath string
	args       []string
	timeout    time.Duration
}

func NewCLIResolver(binaryPath string, args []string, timeout time.Duration) (*CLIResolver, error) {
	if binaryPath == "" {
		return nil, fmt.Errorf("binary path is required for CLI resolver")
	}
	if timeout <= 0 {
		timeout = defaultCLITimeout
	}
	return &CLIResolver{
		binaryPath: binaryPath,
		args:       append([]string(nil), args...),
		timeout:    timeout,
	}, nil
}

func (r *CLIResolver) Name() string {
	return "cli-" + r.binaryPath
}

func (r *CLIResolver) Resolve(ctx context.Context, libraryName string) (string, error) {
	if libraryName == "" {
		return "", fmt.Errorf("library name is required")
	}
	out, err := r.run(ctx, "resolve", libraryName)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(out)
	if id == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, libraryName)
	}
	// First line wins when the client prints candidates.
	if i := strings.IndexByte(id, '\n'); i >= 0 {
		id = strings.TrimSpace(id[:i])
	}
	return id, nil
}

func (r *CLIResolver) Fetch(ctx context.Context, req FetchRequest) (string, error) {
	if req.LibraryID == "" {
		return "", fmt.Errorf("library id is required")
	}
	sub := []string{"fetch", req.LibraryID}
	if req.Topic != "" {
		sub = append(sub, "--topic", req.Topic)
	}
	if req.TokenBudget > 0 {
		sub = append(sub, "--tokens", strconv.Itoa(req.TokenBudget))
	}
	return r.run(ctx, sub...)
}

func (r *CLIResolver) run(ctx context.Context, sub ...string) (string, error) {
	fullArgs := append(append([]string(nil), r.args...), sub...)

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, r.binaryPath, fullArgs...)
	// Grandchildren may hold the output pipe after the client is killed.
	cmd.WaitDelay = time.Second

	// Only stdout is documentation; stderr is kept for error reports.
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("documentation client timed out: %w", err)
		}
		return "", fmt.Errorf("documentation client failed: %w\nOutput: %s%s", err, stderr.String(), stdout.String())
	}
	return stdout.String(), nil
}
