package ops

import (
	"context"
	"fmt"
	"strings"

	"clusterops/internal/cluster"
	"clusterops/internal/logger"
)

// BGSave triggers a background save on every primary.
func (r *Runner) BGSave(ctx context.Context) ([]NodeResult, error) {
	nodes, err := r.primaries(ctx)
	if err != nil {
		return nil, err
	}
	return r.each(ctx, nodes, []string{"bgsave"}, func(n cluster.Node) {
		fmt.Fprintf(r.out, "Starting bgsave on %s\n", r.label(n))
	}, r.printReply)
}

func (r *Runner) runBGSave(ctx context.Context) error {
	results, err := r.BGSave(ctx)
	if err != nil {
		return err
	}
	return partial(BGSave, results)
}

// FlushAll erases every key on every primary. It refuses to run unless
// the runner was built with Confirmed or DryRun.
func (r *Runner) FlushAll(ctx context.Context) ([]NodeResult, error) {
	if err := r.confirm(Flush); err != nil {
		return nil, err
	}
	nodes, err := r.primaries(ctx)
	if err != nil {
		return nil, err
	}
	if !r.opts.DryRun && len(nodes) > 0 {
		warnf(r.out, "Flushing all keys on %d primaries of %s\n", len(nodes), r.seed.Addr())
	}
	return r.each(ctx, nodes, []string{"flushall"}, func(n cluster.Node) {
		fmt.Fprintf(r.out, "Flushing %s\n", r.label(n))
	}, r.printReply)
}

func (r *Runner) runFlush(ctx context.Context) error {
	results, err := r.FlushAll(ctx)
	if err != nil {
		return err
	}
	return partial(Flush, results)
}

// printReply echoes what a node answered. Failures are already on the
// diagnostic stream.
func (r *Runner) printReply(res NodeResult) {
	if res.Err != nil {
		return
	}
	if reply := strings.TrimSpace(res.Reply); reply != "" {
		fmt.Fprintf(r.out, "%s: %s\n", r.label(res.Node), reply)
	}
}

// ListNodes returns the nodes with role, in discovery order.
func (r *Runner) ListNodes(ctx context.Context, role cluster.Role) ([]cluster.Node, error) {
	nodes, err := r.discover.ListNodesByRole(ctx, role)
	if err != nil {
		return nil, err
	}
	r.labelPorts(nodes)
	logger.Debug("%d %s nodes", len(nodes), role)
	return nodes, nil
}

func (r *Runner) runPrimaries(ctx context.Context) error {
	return r.printNodes(ctx, cluster.RolePrimary)
}

func (r *Runner) runReplicas(ctx context.Context) error {
	return r.printNodes(ctx, cluster.RoleReplica)
}

func (r *Runner) printNodes(ctx context.Context, role cluster.Role) error {
	nodes, err := r.ListNodes(ctx, role)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		fmt.Fprintln(r.out, r.label(n))
	}
	return nil
}
