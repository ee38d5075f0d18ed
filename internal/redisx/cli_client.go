package redisx

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"clusterops/internal/logger"
)

// CLIClient drives an installed redis-cli, one process per command.
type CLIClient struct {
	binary string
	seed   Endpoint
}

// NewCLIClient resolves binary on PATH (or as a path) and binds it to seed.
func NewCLIClient(binary string, seed Endpoint) (*CLIClient, error) {
	if binary == "" {
		binary = "redis-cli"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoBinary, binary, err)
	}
	return &CLIClient{binary: path, seed: seed}, nil
}

// Binary returns the resolved executable path.
func (c *CLIClient) Binary() string {
	return c.binary
}

// ClusterNodes implements Client.
func (c *CLIClient) ClusterNodes(ctx context.Context) (string, error) {
	return c.Do(ctx, c.seed, "cluster", "nodes")
}

// Do implements Client.
func (c *CLIClient) Do(ctx context.Context, node Endpoint, args ...string) (string, error) {
	argv := append(connArgs(node), args...)
	cmd := exec.CommandContext(ctx, c.binary, argv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("exec: %s", CommandLine(c.binary, argv))
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%s %s: %w", node.Addr(), strings.Join(args, " "), ctxErr)
		}
		return "", fmt.Errorf("%s %s: %w%s", node.Addr(), strings.Join(args, " "), err, stderrSuffix(&stderr))
	}

	out := stdout.String()
	if err := asReplyError(node.Addr(), out); err != nil {
		return "", err
	}
	// redis-cli reports connection failures on stderr with a zero exit code.
	if strings.TrimSpace(out) == "" && stderr.Len() > 0 {
		return "", fmt.Errorf("%s %s: %s", node.Addr(), strings.Join(args, " "), strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Scan implements Client using redis-cli --scan, streaming keys as they
// arrive so memory stays flat on large keyspaces.
//
// redis-cli prints one key per line, so a key containing a newline reaches
// fn as several keys. Use CLIENT_MODE=native for such keyspaces.
//
// Keys are never checked against error-reply prefixes: "ERROR_LOG:1" is a
// valid key. A server error shows up as a single output line of the form
// "<WORD> message", which is only recognized once the stream has ended.
func (c *CLIClient) Scan(ctx context.Context, node Endpoint, fn func(key string) error) error {
	argv := append(connArgs(node), "--scan")
	cmd := exec.CommandContext(ctx, c.binary, argv...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%s scan: %w", node.Addr(), err)
	}

	logger.Debug("exec: %s", CommandLine(c.binary, argv))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s scan: start %s: %w", node.Addr(), c.binary, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 512*1024*1024)
	var (
		fnErr error
		first string
		lines int
	)
	for scanner.Scan() {
		key := scanner.Text()
		if key == "" {
			continue
		}
		lines++
		// Hold the first line back until a second one proves the
		// output is a key listing.
		if lines == 1 {
			first = key
			continue
		}
		if lines == 2 {
			if fnErr = fn(first); fnErr != nil {
				break
			}
		}
		if fnErr = fn(key); fnErr != nil {
			break
		}
	}
	if fnErr == nil && lines == 1 {
		if fnErr = asReplyError(node.Addr(), first); fnErr == nil {
			fnErr = fn(first)
		}
	}
	scanErr := scanner.Err()
	if fnErr != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	waitErr := cmd.Wait()

	switch {
	case fnErr != nil:
		return fnErr
	case ctx.Err() != nil:
		return fmt.Errorf("%s scan: %w", node.Addr(), ctx.Err())
	case scanErr != nil:
		return fmt.Errorf("%s scan: read output: %w", node.Addr(), scanErr)
	case waitErr != nil:
		return fmt.Errorf("%s scan: %w%s", node.Addr(), waitErr, stderrSuffix(&stderr))
	}
	return nil
}

// Close implements Client. Processes are not pooled, so there is nothing to release.
func (c *CLIClient) Close() error {
	return nil
}

func connArgs(e Endpoint) []string {
	args := []string{"-h", e.Host, "-p", strconv.Itoa(e.Port)}
	if e.Password != "" {
		args = append(args, "-a", e.Password, "--no-auth-warning")
	}
	if e.TLS {
		args = append(args, "--tls")
		if e.TLSInsecure {
			args = append(args, "--insecure")
		}
	}
	return args
}

// CommandLine renders binary+argv for diagnostics with the -a value masked.
func CommandLine(binary string, argv []string) string {
	parts := make([]string, 0, len(argv)+1)
	parts = append(parts, binary)
	for i := 0; i < len(argv); i++ {
		parts = append(parts, argv[i])
		if argv[i] == "-a" && i+1 < len(argv) {
			parts = append(parts, "****")
			i++
		}
	}
	return strings.Join(parts, " ")
}

func stderrSuffix(stderr *bytes.Buffer) string {
	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		return ""
	}
	return ": " + msg
}

// IsReplyError reports whether err carries a server error reply.
func IsReplyError(err error) bool {
	var re *ReplyError
	return errors.As(err, &re)
}
