package ops

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"clusterops/internal/logger"
	"clusterops/internal/units"
)

// Tally is the outcome of a per-primary counting action. Failed nodes are
// excluded from Total rather than zeroing it.
type Tally struct {
	Results []NodeResult
	Total   int64
	Failed  int
}

func (t *Tally) add(res NodeResult) {
	t.Results = append(t.Results, res)
	if res.Err != nil {
		t.Failed++
		return
	}
	t.Total += res.Value
}

// CountKeys runs DBSIZE on every primary.
func (r *Runner) CountKeys(ctx context.Context) (Tally, error) {
	return r.tally(ctx, []string{"dbsize"}, parseCount)
}

// UsedMemory reads used_memory_human from INFO memory on every primary,
// in whole megabytes.
func (r *Runner) UsedMemory(ctx context.Context) (Tally, error) {
	return r.tally(ctx, []string{"info", "memory"}, parseUsedMemoryMB)
}

func (r *Runner) tally(ctx context.Context, args []string, parse func(string) (int64, error)) (Tally, error) {
	var t Tally
	nodes, err := r.primaries(ctx)
	if err != nil {
		return t, err
	}
	results, err := r.each(ctx, nodes, args, nil, nil)
	if r.opts.DryRun {
		return Tally{Results: results}, err
	}
	for _, res := range results {
		if res.Err == nil {
			res.Value, res.Err = parse(res.Reply)
			if res.Err != nil {
				logger.WithNode(r.label(res.Node)).Warnf("%s: %v", strings.Join(args, " "), res.Err)
			}
		}
		t.add(res)
	}
	return t, err
}

func (r *Runner) runKeys(ctx context.Context) error {
	t, err := r.CountKeys(ctx)
	if err != nil {
		return err
	}
	if r.opts.DryRun {
		return nil
	}
	r.printTally(t, "Keys", "Total keys", "")
	return partial(Keys, t.Results)
}

func (r *Runner) runMemory(ctx context.Context) error {
	t, err := r.UsedMemory(ctx)
	if err != nil {
		return err
	}
	if r.opts.DryRun {
		return nil
	}
	r.printTally(t, "Memory (MB)", "Total memory", " MB")
	return partial(Memory, t.Results)
}

// parseCount reads a DBSIZE reply. redis-cli prints a bare integer when
// stdout is not a terminal; the "(integer) " form is accepted too.
func parseCount(reply string) (int64, error) {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "(integer) ")
	if s == "" {
		return 0, errors.New("empty key count")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected key count %q", s)
	}
	return n, nil
}

const usedMemoryHumanField = "used_memory_human:"

// parseUsedMemoryMB extracts used_memory_human from an INFO memory reply
// and truncates it to whole megabytes.
func parseUsedMemoryMB(info string) (int64, error) {
	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, usedMemoryHumanField) {
			continue
		}
		mb, err := units.ParseMB(strings.TrimPrefix(line, usedMemoryHumanField))
		if err != nil {
			return 0, err
		}
		return int64(mb), nil
	}
	return 0, fmt.Errorf("%s missing from INFO memory", strings.TrimSuffix(usedMemoryHumanField, ":"))
}
