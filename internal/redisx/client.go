// Package redisx is the single boundary through which clusterops talks to
// Redis. Everything above it sees text replies and typed errors; whether
// they came from an exec'd redis-cli or a native connection is a
// construction-time choice.
package redisx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Endpoint describes how to reach one cluster.
type Endpoint struct {
	Host        string
	Port        int
	Password    string
	TLS         bool
	TLSInsecure bool
}

// Addr returns host:port.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// At returns a copy of e pointed at another node of the same cluster.
// A zero port keeps the cluster's configured port.
func (e Endpoint) At(host string, port int) Endpoint {
	e.Host = host
	if port > 0 {
		e.Port = port
	}
	return e
}

// Client runs commands against a cluster and its individual nodes.
type Client interface {
	// ClusterNodes returns the raw CLUSTER NODES reply from the seed endpoint.
	ClusterNodes(ctx context.Context) (string, error)
	// Do runs one command on node and returns its reply as text.
	Do(ctx context.Context, node Endpoint, args ...string) (string, error)
	// Scan walks every key held by node, calling fn once per key.
	Scan(ctx context.Context, node Endpoint, fn func(key string) error) error
	Close() error
}

// Mode selects a Client implementation.
type Mode string

const (
	ModeCLI    Mode = "cli"
	ModeNative Mode = "native"
)

// ParseMode accepts "cli" and "native", case-insensitive.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeCLI:
		return ModeCLI, nil
	case ModeNative:
		return ModeNative, nil
	}
	return "", fmt.Errorf("unknown client mode %q (want cli or native)", s)
}

// Options configures New.
type Options struct {
	Mode Mode
	// Binary is the redis-cli executable for ModeCLI.
	Binary string
	// DialTimeout bounds connection setup for ModeNative.
	DialTimeout time.Duration
	// QPS caps per-node commands per second; 0 means unlimited.
	QPS float64
}

// ReplyError is an error reply from the server, e.g. "ERR unknown command".
type ReplyError struct {
	Node  string
	Reply string
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("%s replied: %s", e.Node, e.Reply)
}

// ErrNoBinary is returned when the configured redis-cli cannot be found.
var ErrNoBinary = errors.New("redisx: redis client binary not found")

// New builds the Client for seed according to opts.
func New(seed Endpoint, opts Options) (Client, error) {
	var (
		c   Client
		err error
	)
	switch opts.Mode {
	case ModeCLI, "":
		c, err = NewCLIClient(opts.Binary, seed)
	case ModeNative:
		c = NewNativeClient(seed, opts.DialTimeout)
	default:
		return nil, fmt.Errorf("redisx: unknown mode %q", opts.Mode)
	}
	if err != nil {
		return nil, err
	}
	if opts.QPS > 0 {
		c = Throttle(c, opts.QPS)
	}
	return c, nil
}

var errorReplyPrefixes = []string{
	"ERR", "WRONGPASS", "NOAUTH", "NOPERM", "LOADING", "BUSY",
	"MISCONF", "READONLY", "CLUSTERDOWN", "(error)",
}

// asReplyError recognizes error replies that redis-cli prints on stdout.
// The error word must be followed by a space or end the reply, so data
// such as "ERROR_LOG:1" or "BUSY:lock" is not mistaken for an error.
func asReplyError(node, out string) error {
	s := strings.TrimSpace(out)
	for _, p := range errorReplyPrefixes {
		if s == p || strings.HasPrefix(s, p+" ") {
			return &ReplyError{Node: node, Reply: s}
		}
	}
	return nil
}
