package redisx

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"clusterops/internal/logger"
)

const scanBatch = 1000

// NativeClient speaks RESP directly through go-redis, keeping one
// connection per node for the lifetime of the run.
type NativeClient struct {
	seed        Endpoint
	dialTimeout time.Duration

	mu      sync.Mutex
	clients map[string]*redis.Client
	closed  bool
}

// NewNativeClient returns a client for seed. Connections are opened lazily.
func NewNativeClient(seed Endpoint, dialTimeout time.Duration) *NativeClient {
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	return &NativeClient{
		seed:        seed,
		dialTimeout: dialTimeout,
		clients:     make(map[string]*redis.Client),
	}
}

func (c *NativeClient) node(e Endpoint) (*redis.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("redisx: native client closed")
	}
	addr := e.Addr()
	if rdb, ok := c.clients[addr]; ok {
		return rdb, nil
	}
	opts := &redis.Options{
		Addr:        addr,
		Password:    e.Password,
		DialTimeout: c.dialTimeout,
		// Admin commands are issued once per node; retries would repeat
		// BGSAVE/FLUSHALL behind the operator's back.
		MaxRetries: -1,
		PoolSize:   1,
	}
	if e.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			ServerName:         e.Host,
			InsecureSkipVerify: e.TLSInsecure, //nolint:gosec // operator opt-in
		}
	}
	rdb := redis.NewClient(opts)
	c.clients[addr] = rdb
	return rdb, nil
}

// ClusterNodes implements Client.
func (c *NativeClient) ClusterNodes(ctx context.Context) (string, error) {
	rdb, err := c.node(c.seed)
	if err != nil {
		return "", err
	}
	logger.Debug("native: %s CLUSTER NODES", c.seed.Addr())
	out, err := rdb.ClusterNodes(ctx).Result()
	if err != nil {
		return "", wrapNative(c.seed, "cluster nodes", err)
	}
	return out, nil
}

// Do implements Client.
func (c *NativeClient) Do(ctx context.Context, node Endpoint, args ...string) (string, error) {
	rdb, err := c.node(node)
	if err != nil {
		return "", err
	}
	argv := make([]interface{}, len(args))
	for i, a := range args {
		argv[i] = a
	}
	logger.Debug("native: %s %s", node.Addr(), strings.ToUpper(strings.Join(args, " ")))
	reply, err := rdb.Do(ctx, argv...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", wrapNative(node, strings.Join(args, " "), err)
	}
	return replyText(reply), nil
}

// Scan implements Client with SCAN, the same cursor loop the migration
// comparator uses.
func (c *NativeClient) Scan(ctx context.Context, node Endpoint, fn func(key string) error) error {
	rdb, err := c.node(node)
	if err != nil {
		return err
	}
	logger.Debug("native: %s SCAN 0 COUNT %d", node.Addr(), scanBatch)
	iter := rdb.Scan(ctx, 0, "", scanBatch).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return wrapNative(node, "scan", err)
	}
	return nil
}

// Close implements Client.
func (c *NativeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var firstErr error
	for addr, rdb := range c.clients {
		if err := rdb.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.clients, addr)
	}
	return firstErr
}

func wrapNative(node Endpoint, cmd string, err error) error {
	var rerr redis.Error
	if errors.As(err, &rerr) {
		return &ReplyError{Node: node.Addr(), Reply: rerr.Error()}
	}
	return fmt.Errorf("%s %s: %w", node.Addr(), cmd, err)
}

// replyText flattens a RESP reply the way redis-cli prints it without a TTY.
func replyText(reply interface{}) string {
	switch v := reply.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case []interface{}:
		lines := make([]string, 0, len(v))
		for _, item := range v {
			lines = append(lines, replyText(item))
		}
		return strings.Join(lines, "\n")
	case map[interface{}]interface{}:
		lines := make([]string, 0, len(v)*2)
		for k, item := range v {
			lines = append(lines, replyText(k), replyText(item))
		}
		return strings.Join(lines, "\n")
	default:
		return fmt.Sprint(v)
	}
}
