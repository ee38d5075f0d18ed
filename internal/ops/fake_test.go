package ops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"

	"clusterops/internal/redisx"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type fakeNode struct {
	host    string
	port    int
	primary bool
}

var (
	nodeA = fakeNode{"10.0.0.1", 6379, true}
	nodeB = fakeNode{"10.0.0.2", 6379, true}
	nodeC = fakeNode{"10.0.0.3", 6379, true}
	repl1 = fakeNode{"10.0.1.1", 6379, false}
	repl2 = fakeNode{"10.0.1.2", 6379, false}
)

func (n fakeNode) addr() string {
	return fmt.Sprintf("%s:%d", n.host, n.port)
}

// topology renders CLUSTER NODES text, interleaving roles like a real cluster.
func topology(nodes ...fakeNode) string {
	var b strings.Builder
	for i, n := range nodes {
		if n.primary {
			fmt.Fprintf(&b, "id%d %s:%d@1%d master - 0 0 %d connected %d-%d\n", i, n.host, n.port, n.port, i, i*100, i*100+99)
		} else {
			fmt.Fprintf(&b, "id%d %s:%d@1%d slave id0 0 0 %d connected\n", i, n.host, n.port, n.port, i)
		}
	}
	return b.String()
}

type fakeClient struct {
	nodes    string
	nodesErr error

	replies map[string]string
	errs    map[string]error
	keys    map[string][]string
	onScan  func(addr string)

	nodesCalls int
	calls      []string
	ctxs       []context.Context
}

func (f *fakeClient) ClusterNodes(ctx context.Context) (string, error) {
	f.nodesCalls++
	return f.nodes, f.nodesErr
}

func (f *fakeClient) Do(ctx context.Context, node redisx.Endpoint, args ...string) (string, error) {
	f.calls = append(f.calls, node.Addr()+" "+strings.Join(args, " "))
	f.ctxs = append(f.ctxs, ctx)
	if err := f.errs[node.Addr()]; err != nil {
		return "", err
	}
	return f.replies[node.Addr()], nil
}

func (f *fakeClient) Scan(ctx context.Context, node redisx.Endpoint, fn func(string) error) error {
	f.calls = append(f.calls, node.Addr()+" --scan")
	if f.onScan != nil {
		f.onScan(node.Addr())
	}
	if err := f.errs[node.Addr()]; err != nil {
		return err
	}
	for _, k := range f.keys[node.Addr()] {
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeClient) Close() error { return nil }

var seed = redisx.Endpoint{Host: "10.0.0.1", Port: 6379, Password: "pw"}

func newTestRunner(f *fakeClient, opts Options) (*Runner, *bytes.Buffer) {
	var out bytes.Buffer
	return NewRunner(f, seed, &out, opts), &out
}

var errNodeDown = errors.New("connection refused")
