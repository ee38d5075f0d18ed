package ops

import (
	"context"
	"fmt"
	"sort"

	"clusterops/internal/cluster"
	"clusterops/internal/logger"
	"clusterops/internal/spool"
)

// Duplicate is a key present on more than one primary.
type Duplicate struct {
	Key   string
	Nodes []string
}

// DupsReport is the outcome of FindDuplicates.
type DupsReport struct {
	Duplicates []Duplicate
	// Results holds one entry per primary; Value is the number of keys
	// scanned on that node.
	Results []NodeResult
}

// FindDuplicates scans every primary's keyspace into a private spool
// directory, then reports keys seen on more than one node. The spool is
// removed before returning, whatever the outcome.
func (r *Runner) FindDuplicates(ctx context.Context) (rep DupsReport, err error) {
	nodes, err := r.primaries(ctx)
	if err != nil {
		return rep, err
	}
	if r.opts.DryRun {
		for _, n := range nodes {
			r.printDryRun(n, "--scan")
			rep.Results = append(rep.Results, NodeResult{Node: n})
		}
		return rep, nil
	}

	sp, err := spool.New(r.opts.SpoolDir, r.opts.RunID, r.opts.Codec)
	if err != nil {
		return rep, err
	}
	defer func() {
		if rmErr := sp.Remove(); rmErr != nil {
			logger.Error("remove spool %s: %v", sp.Dir(), rmErr)
			if err == nil {
				err = rmErr
			}
		}
	}()
	logger.Debug("spooling keys under %s", sp.Dir())

	files := make([]string, len(nodes))
	for i, n := range nodes {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		res, path := r.spoolNode(ctx, sp, n)
		files[i] = path
		rep.Results = append(rep.Results, res)
	}

	rep.Duplicates, err = r.mergeSpool(sp, nodes, files, rep.Results)
	return rep, err
}

// spoolNode writes n's keys to a new spool file. The file path is "" when
// the node failed.
func (r *Runner) spoolNode(ctx context.Context, sp *spool.Spool, n cluster.Node) (NodeResult, string) {
	label := r.label(n)
	w, err := sp.Create(label)
	if err != nil {
		return NodeResult{Node: n, Err: err}, ""
	}

	nctx, cancel := r.nodeContext(ctx)
	scanErr := r.client.Scan(nctx, r.endpoint(n), w.WriteKey)
	cancel()
	closeErr := w.Close()

	res := NodeResult{Node: n, Value: w.Count()}
	switch {
	case scanErr != nil:
		res.Err = scanErr
	case closeErr != nil:
		res.Err = fmt.Errorf("write spool file: %w", closeErr)
	}
	if res.Err != nil {
		logger.WithNode(label).Errorf("key scan failed: %v", res.Err)
		return res, ""
	}
	logger.WithNode(label).Debugf("scanned %d keys", res.Value)
	return res, w.Path()
}

// mergeSpool counts, for each key, the distinct nodes whose file holds it.
// SCAN may return a key more than once on the same node; that is not a
// duplicate.
func (r *Runner) mergeSpool(sp *spool.Spool, nodes []cluster.Node, files []string, results []NodeResult) ([]Duplicate, error) {
	seen := make(map[string][]int)
	for i, path := range files {
		if path == "" || results[i].Err != nil {
			continue
		}
		rd, err := sp.Open(path)
		if err != nil {
			return nil, fmt.Errorf("merge %s: %w", r.label(nodes[i]), err)
		}
		for rd.Next() {
			key := rd.Key()
			idx := seen[key]
			if len(idx) > 0 && idx[len(idx)-1] == i {
				continue
			}
			seen[key] = append(idx, i)
		}
		readErr := rd.Err()
		rd.Close()
		if readErr != nil {
			return nil, fmt.Errorf("merge %s: %w", r.label(nodes[i]), readErr)
		}
	}

	var dups []Duplicate
	for key, idx := range seen {
		if len(idx) < 2 {
			continue
		}
		d := Duplicate{Key: key, Nodes: make([]string, len(idx))}
		for j, i := range idx {
			d.Nodes[j] = r.label(nodes[i])
		}
		dups = append(dups, d)
	}
	sort.Slice(dups, func(i, j int) bool { return dups[i].Key < dups[j].Key })
	return dups, nil
}

func (r *Runner) runDups(ctx context.Context) error {
	rep, err := r.FindDuplicates(ctx)
	if err != nil {
		return err
	}
	if r.opts.DryRun {
		return nil
	}
	r.printDuplicates(rep.Duplicates, len(rep.Results))
	return partial(Dups, rep.Results)
}
