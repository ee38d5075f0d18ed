package ops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"clusterops/internal/cluster"
	"clusterops/internal/logger"
	"clusterops/internal/redisx"
	"clusterops/internal/spool"
)

// ErrPartial means the action finished but at least one node failed.
var ErrPartial = errors.New("action incomplete")

// ErrFlushNotConfirmed is returned when flush runs without confirmation.
var ErrFlushNotConfirmed = errors.New("flush deletes every key on every primary; rerun with --yes to confirm or --dry-run to preview")

// Options tunes a Runner.
type Options struct {
	// DryRun prints the per-node commands instead of running them.
	DryRun bool
	// Confirmed must be set for destructive actions.
	Confirmed bool
	// Table renders keys, memory and dups reports as tables.
	Table bool
	// CommandTimeout bounds each per-node command; 0 means no bound.
	CommandTimeout time.Duration
	// DiscoveryTimeout bounds the topology query.
	DiscoveryTimeout time.Duration
	// SpoolDir is where dups creates its temporary directory.
	SpoolDir string
	// Codec compresses dups spool files.
	Codec spool.Codec
	// RunID names the dups spool directory.
	RunID string
}

// NodeResult is the outcome of one per-node command.
type NodeResult struct {
	Node  cluster.Node
	Reply string
	Value int64
	Err   error
}

// Runner executes actions against one cluster, one node at a time in
// discovery order.
type Runner struct {
	client   redisx.Client
	seed     redisx.Endpoint
	discover *cluster.Discoverer
	out      io.Writer
	opts     Options

	// withPort is set when the listed nodes do not all share the seed's
	// port, so every label carries one.
	withPort bool
}

// NewRunner binds client (already pointed at seed) to an output stream.
func NewRunner(client redisx.Client, seed redisx.Endpoint, out io.Writer, opts Options) *Runner {
	return &Runner{
		client:   client,
		seed:     seed,
		discover: &cluster.Discoverer{Client: client, Timeout: opts.DiscoveryTimeout},
		out:      out,
		opts:     opts,
	}
}

type handler func(r *Runner, ctx context.Context) error

var handlers = map[Action]handler{
	BGSave:    (*Runner).runBGSave,
	Dups:      (*Runner).runDups,
	Flush:     (*Runner).runFlush,
	Keys:      (*Runner).runKeys,
	Memory:    (*Runner).runMemory,
	Primaries: (*Runner).runPrimaries,
	Replicas:  (*Runner).runReplicas,
}

// Run executes a.
func (r *Runner) Run(ctx context.Context, a Action) error {
	h, ok := handlers[a]
	if !ok {
		return &UnknownActionError{Name: a.String()}
	}
	logger.Debug("running %s against %s", a, r.seed.Addr())
	return h(r, ctx)
}

// primaries discovers primaries and warns when there are none.
func (r *Runner) primaries(ctx context.Context) ([]cluster.Node, error) {
	nodes, err := r.discover.ListNodesByRole(ctx, cluster.RolePrimary)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		logger.Warn("no primaries discovered via %s", r.seed.Addr())
	}
	r.labelPorts(nodes)
	return nodes, nil
}

// confirm refuses destructive actions unless confirmed or dry-run.
func (r *Runner) confirm(a Action) error {
	if a.Destructive() && !r.opts.Confirmed && !r.opts.DryRun {
		return ErrFlushNotConfirmed
	}
	return nil
}

// endpoint returns the connection parameters for n.
func (r *Runner) endpoint(n cluster.Node) redisx.Endpoint {
	return n.Endpoint(r.seed)
}

// labelPorts decides how nodes are labelled for one listing: bare hosts
// when every node listens on the seed's port, host:port for all of them
// otherwise.
func (r *Runner) labelPorts(nodes []cluster.Node) {
	r.withPort = false
	for _, n := range nodes {
		if n.Port != 0 && n.Port != r.seed.Port {
			r.withPort = true
			return
		}
	}
}

// label names n in output.
func (r *Runner) label(n cluster.Node) string {
	if !r.withPort || n.Port == 0 {
		return n.Host
	}
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

func (r *Runner) nodeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.CommandTimeout > 0 {
		return context.WithTimeout(ctx, r.opts.CommandTimeout)
	}
	return context.WithCancel(ctx)
}

// each runs args on every node in order. A failing node is logged and
// recorded; the loop stops early only when ctx is cancelled.
func (r *Runner) each(ctx context.Context, nodes []cluster.Node, args []string, before func(cluster.Node), after func(NodeResult)) ([]NodeResult, error) {
	results := make([]NodeResult, 0, len(nodes))
	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if r.opts.DryRun {
			r.printDryRun(n, args...)
			results = append(results, NodeResult{Node: n})
			continue
		}
		if before != nil {
			before(n)
		}

		nctx, cancel := r.nodeContext(ctx)
		reply, err := r.client.Do(nctx, r.endpoint(n), args...)
		cancel()
		if err != nil {
			logger.WithNode(r.label(n)).Errorf("%s failed: %v", args[0], err)
		}
		res := NodeResult{Node: n, Reply: reply, Err: err}
		if after != nil {
			after(res)
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) printDryRun(n cluster.Node, args ...string) {
	fmt.Fprintf(r.out, "[dry-run] %s: %s\n", r.label(n), strings.Join(args, " "))
}

// partial turns failed results into an ErrPartial error.
func partial(a Action, results []NodeResult) error {
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s failed on %d of %d nodes", ErrPartial, a, failed, len(results))
}
