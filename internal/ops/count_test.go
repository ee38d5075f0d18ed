package ops

import (
	"context"
	"errors"
	"strings"
	"testing"

	"clusterops/internal/units"
)

func TestCountKeysSumsPrimaries(t *testing.T) {
	f := &fakeClient{
		nodes: topology(nodeA, repl1, nodeB, nodeC),
		replies: map[string]string{
			nodeA.addr(): "100\n",
			nodeB.addr(): "(integer) 250",
			nodeC.addr(): "0",
			repl1.addr(): "999",
		},
	}
	r, out := newTestRunner(f, Options{})

	if err := r.Run(context.Background(), Keys); err != nil {
		t.Fatalf("Run(keys): %v", err)
	}
	want := "10.0.0.1: 100\n10.0.0.2: 250\n10.0.0.3: 0\nTotal keys: 350\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
	for _, c := range f.calls {
		if !strings.HasSuffix(c, " dbsize") || strings.HasPrefix(c, repl1.host) {
			t.Errorf("unexpected call %q", c)
		}
	}
}

func TestCountKeysExcludesFailedNode(t *testing.T) {
	f := &fakeClient{
		nodes:   topology(nodeA, nodeB, nodeC),
		replies: map[string]string{nodeA.addr(): "100", nodeC.addr(): "250"},
		errs:    map[string]error{nodeB.addr(): errNodeDown},
	}
	r, out := newTestRunner(f, Options{})

	tally, err := r.CountKeys(context.Background())
	if err != nil {
		t.Fatalf("CountKeys: %v", err)
	}
	if tally.Total != 350 || tally.Failed != 1 || len(tally.Results) != 3 {
		t.Errorf("tally = %+v, want total 350 with 1 failure", tally)
	}

	out.Reset()
	err = r.Run(context.Background(), Keys)
	if !errors.Is(err, ErrPartial) {
		t.Fatalf("Run(keys) error = %v, want ErrPartial", err)
	}
	text := out.String()
	if !strings.Contains(text, "10.0.0.2: error: connection refused") {
		t.Errorf("failed node not reported:\n%s", text)
	}
	if !strings.Contains(text, "Total keys: 350 (partial: 1 of 3 nodes failed)") {
		t.Errorf("partial total not reported:\n%s", text)
	}
}

func TestCountKeysBadReplyFailsNode(t *testing.T) {
	f := &fakeClient{
		nodes:   topology(nodeA, nodeB),
		replies: map[string]string{nodeA.addr(): "", nodeB.addr(): "42"},
	}
	r, _ := newTestRunner(f, Options{})

	tally, err := r.CountKeys(context.Background())
	if err != nil {
		t.Fatalf("CountKeys: %v", err)
	}
	if tally.Total != 42 || tally.Failed != 1 {
		t.Errorf("tally = %+v, want total 42 with 1 failure", tally)
	}
}

func TestCountKeysThousandsSeparator(t *testing.T) {
	f := &fakeClient{
		nodes:   topology(nodeA, nodeB),
		replies: map[string]string{nodeA.addr(): "1000000", nodeB.addr(): "234567"},
	}
	r, out := newTestRunner(f, Options{})

	if err := r.Run(context.Background(), Keys); err != nil {
		t.Fatalf("Run(keys): %v", err)
	}
	if !strings.Contains(out.String(), "Total keys: 1,234,567\n") {
		t.Errorf("output = %q", out.String())
	}
}

func TestKeysTable(t *testing.T) {
	f := &fakeClient{
		nodes:   topology(nodeA, nodeB),
		replies: map[string]string{nodeA.addr(): "10", nodeB.addr(): "20"},
	}
	r, out := newTestRunner(f, Options{Table: true})

	if err := r.Run(context.Background(), Keys); err != nil {
		t.Fatalf("Run(keys --table): %v", err)
	}
	text := out.String()
	for _, s := range []string{"Node", "Keys", "10.0.0.1", "total", "30"} {
		if !strings.Contains(text, s) {
			t.Errorf("table missing %q:\n%s", s, text)
		}
	}
}

func TestKeysDryRun(t *testing.T) {
	f := &fakeClient{nodes: topology(nodeA, nodeB)}
	r, out := newTestRunner(f, Options{DryRun: true})

	if err := r.Run(context.Background(), Keys); err != nil {
		t.Fatalf("Run(keys --dry-run): %v", err)
	}
	if len(f.calls) != 0 {
		t.Errorf("dry run issued commands: %v", f.calls)
	}
	if got, want := out.String(), "[dry-run] 10.0.0.1: dbsize\n[dry-run] 10.0.0.2: dbsize\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

const infoMemory = "# Memory\r\nused_memory:536870912\r\nused_memory_human:%s\r\nused_memory_rss:1000\r\n"

func info(human string) string {
	return strings.Replace(infoMemory, "%s", human, 1)
}

func TestUsedMemorySumsMegabytes(t *testing.T) {
	f := &fakeClient{
		nodes: topology(nodeA, nodeB),
		replies: map[string]string{
			nodeA.addr(): info("512.00M"),
			nodeB.addr(): info("1.20G"),
		},
	}
	r, out := newTestRunner(f, Options{})

	tally, err := r.UsedMemory(context.Background())
	if err != nil {
		t.Fatalf("UsedMemory: %v", err)
	}
	if tally.Results[0].Value != 512 || tally.Results[1].Value != 1228 || tally.Total != 1740 {
		t.Errorf("tally = %+v, want 512 + 1228 = 1740", tally)
	}

	if err := r.Run(context.Background(), Memory); err != nil {
		t.Fatalf("Run(memory): %v", err)
	}
	if !strings.Contains(out.String(), "Total memory: 1,740 MB\n") {
		t.Errorf("output = %q", out.String())
	}
	for _, c := range f.calls {
		if !strings.HasSuffix(c, " info memory") {
			t.Errorf("unexpected call %q", c)
		}
	}
}

func TestUsedMemoryUnknownUnitIsFormatError(t *testing.T) {
	f := &fakeClient{
		nodes: topology(nodeA, nodeB),
		replies: map[string]string{
			nodeA.addr(): info("900.00K"),
			nodeB.addr(): info("2.00M"),
		},
	}
	r, _ := newTestRunner(f, Options{})

	tally, err := r.UsedMemory(context.Background())
	if err != nil {
		t.Fatalf("UsedMemory: %v", err)
	}
	var ferr *units.FormatError
	if !errors.As(tally.Results[0].Err, &ferr) {
		t.Fatalf("node A error = %v, want *units.FormatError", tally.Results[0].Err)
	}
	if tally.Total != 2 || tally.Failed != 1 {
		t.Errorf("tally = %+v, want total 2 with 1 failure", tally)
	}
}

func TestParseUsedMemoryMissingField(t *testing.T) {
	if _, err := parseUsedMemoryMB("# Memory\r\nused_memory:1\r\n"); err == nil {
		t.Error("expected error for missing used_memory_human")
	}
}

func TestUsedMemoryNonFiniteIsFormatError(t *testing.T) {
	for _, human := range []string{"NaNM", "InfG", "1e9G"} {
		f := &fakeClient{
			nodes: topology(nodeA, nodeB),
			replies: map[string]string{
				nodeA.addr(): info(human),
				nodeB.addr(): info("3.00M"),
			},
		}
		r, _ := newTestRunner(f, Options{})

		tally, err := r.UsedMemory(context.Background())
		if err != nil {
			t.Fatalf("UsedMemory: %v", err)
		}
		var ferr *units.FormatError
		if !errors.As(tally.Results[0].Err, &ferr) {
			t.Errorf("%s: node A error = %v, want *units.FormatError", human, tally.Results[0].Err)
		}
		if tally.Total != 3 {
			t.Errorf("%s: total = %d, want 3", human, tally.Total)
		}
	}
}
