package gitlog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single git invocation.
const DefaultTimeout = 5 * time.Minute

// ErrGitCommand is returned when a git invocation fails.
var ErrGitCommand = errors.New("git command failed")

// Source provides raw history for a working copy.
type Source interface {
	// Log returns the full numstat log in the format Parse expects.
	Log(ctx context.Context, dir string) ([]byte, error)
	// Head returns the commit hash HEAD points at.
	Head(ctx context.Context, dir string) (string, error)
	// LastCommitDate returns the author date of the HEAD commit.
	LastCommitDate(ctx context.Context, dir string) (time.Time, error)
}

// ExecSource runs the git binary.
type ExecSource struct {
	// Binary defaults to "git".
	Binary string
	// Timeout applies per invocation; zero selects DefaultTimeout.
	Timeout time.Duration
}

// NewExecSource creates an ExecSource with the given per-invocation timeout.
func NewExecSource(timeout time.Duration) *ExecSource {
	return &ExecSource{Binary: "git", Timeout: timeout}
}

// Log implements Source.
func (s *ExecSource) Log(ctx context.Context, dir string) ([]byte, error) {
	return s.run(ctx, dir, "log", "--numstat", "--date=iso", "--pretty=format:"+LogFormat)
}

// Head implements Source.
func (s *ExecSource) Head(ctx context.Context, dir string) (string, error) {
	out, err := s.run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(out)), nil
}

// LastCommitDate implements Source.
func (s *ExecSource) LastCommitDate(ctx context.Context, dir string) (time.Time, error) {
	out, err := s.run(ctx, dir, "log", "-1", "--date=iso", "--pretty=format:%ad")
	if err != nil {
		return time.Time{}, err
	}

	date, dateErr := parseDate(string(out))
	if dateErr != nil {
		return time.Time{}, fmt.Errorf("parse last commit date: %w", dateErr)
	}

	return date, nil
}

func (s *ExecSource) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	binary := s.Binary
	if binary == "" {
		binary = "git"
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: git %s: %w", ErrGitCommand, args[0], ctx.Err())
		}

		return nil, fmt.Errorf("%w: git %s: %s", ErrGitCommand, args[0], firstLine(stderr.String(), runErr))
	}

	return stdout.Bytes(), nil
}

func firstLine(stderr string, fallback error) string {
	line, _, _ := strings.Cut(strings.TrimSpace(stderr), "\n")
	if line == "" {
		return fallback.Error()
	}

	return line
}
