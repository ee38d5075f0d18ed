package ops

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"clusterops/internal/spool"
)

func dupsClient() *fakeClient {
	return &fakeClient{
		nodes: topology(nodeA, repl1, nodeB, nodeC),
		keys: map[string][]string{
			nodeA.addr(): {"k1", "k2", "k3"},
			nodeB.addr(): {"k2", "k4"},
			nodeC.addr(): {"k2", "k5"},
			repl1.addr(): {"k1"},
		},
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	if len(entries) != 0 {
		t.Errorf("spool left behind in %s: %v", dir, entries)
	}
}

func TestFindDuplicates(t *testing.T) {
	for _, codec := range []spool.Codec{spool.None, spool.Zstd, spool.LZ4} {
		t.Run(string(codec), func(t *testing.T) {
			dir := t.TempDir()
			f := dupsClient()
			r, out := newTestRunner(f, Options{SpoolDir: dir, Codec: codec, RunID: "t1"})

			rep, err := r.FindDuplicates(context.Background())
			if err != nil {
				t.Fatalf("FindDuplicates: %v", err)
			}
			want := []Duplicate{{Key: "k2", Nodes: []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}}}
			if !reflect.DeepEqual(rep.Duplicates, want) {
				t.Errorf("duplicates = %+v, want %+v", rep.Duplicates, want)
			}
			if rep.Results[0].Value != 3 || rep.Results[1].Value != 2 {
				t.Errorf("scan counts = %+v", rep.Results)
			}
			for _, c := range f.calls {
				if strings.HasPrefix(c, repl1.host) {
					t.Errorf("replica scanned: %q", c)
				}
			}
			assertEmptyDir(t, dir)

			if err := r.Run(context.Background(), Dups); err != nil {
				t.Fatalf("Run(dups): %v", err)
			}
			if got, want := out.String(), "Duplicate keys found (1):\nk2\n"; got != want {
				t.Errorf("output = %q, want %q", got, want)
			}
		})
	}
}

func TestFindDuplicatesIgnoresRepeatsOnOneNode(t *testing.T) {
	f := &fakeClient{
		nodes: topology(nodeA, nodeB),
		keys: map[string][]string{
			nodeA.addr(): {"k1", "k1", "odd\nkey", "\"quoted"},
			nodeB.addr(): {"k2", "odd\nkey", "\"quoted"},
		},
	}
	r, out := newTestRunner(f, Options{SpoolDir: t.TempDir()})

	rep, err := r.FindDuplicates(context.Background())
	if err != nil {
		t.Fatalf("FindDuplicates: %v", err)
	}
	var keys []string
	for _, d := range rep.Duplicates {
		keys = append(keys, d.Key)
	}
	if want := []string{"\"quoted", "odd\nkey"}; !reflect.DeepEqual(keys, want) {
		t.Errorf("duplicate keys = %q, want %q", keys, want)
	}
	if out.Len() != 0 {
		t.Errorf("FindDuplicates wrote output: %q", out.String())
	}
}

func TestFindDuplicatesNone(t *testing.T) {
	f := &fakeClient{
		nodes: topology(nodeA, nodeB),
		keys:  map[string][]string{nodeA.addr(): {"a"}, nodeB.addr(): {"b"}},
	}
	r, out := newTestRunner(f, Options{SpoolDir: t.TempDir()})

	if err := r.Run(context.Background(), Dups); err != nil {
		t.Fatalf("Run(dups): %v", err)
	}
	if got, want := out.String(), "No duplicate keys found across 2 primaries\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestFindDuplicatesFailedScanIsPartial(t *testing.T) {
	dir := t.TempDir()
	f := dupsClient()
	f.errs = map[string]error{nodeC.addr(): errNodeDown}
	r, _ := newTestRunner(f, Options{SpoolDir: dir})

	rep, err := r.FindDuplicates(context.Background())
	if err != nil {
		t.Fatalf("FindDuplicates: %v", err)
	}
	want := []Duplicate{{Key: "k2", Nodes: []string{"10.0.0.1", "10.0.0.2"}}}
	if !reflect.DeepEqual(rep.Duplicates, want) {
		t.Errorf("duplicates = %+v, want %+v", rep.Duplicates, want)
	}
	if err := r.Run(context.Background(), Dups); !errors.Is(err, ErrPartial) {
		t.Errorf("Run(dups) error = %v, want ErrPartial", err)
	}
	assertEmptyDir(t, dir)
}

func TestFindDuplicatesRemovesSpoolOnMergeFailure(t *testing.T) {
	dir := t.TempDir()
	f := dupsClient()
	f.onScan = func(addr string) {
		if addr != nodeC.addr() {
			return
		}
		// Lose node A's file before the merge reads it.
		matches, _ := filepath.Glob(filepath.Join(dir, "clusterops-*", nodeA.host+"-*"))
		for _, m := range matches {
			os.Remove(m)
		}
	}
	r, _ := newTestRunner(f, Options{SpoolDir: dir, RunID: "t2"})

	if _, err := r.FindDuplicates(context.Background()); err == nil {
		t.Fatal("expected merge error")
	}
	assertEmptyDir(t, dir)
}

func TestFindDuplicatesDryRun(t *testing.T) {
	dir := t.TempDir()
	f := dupsClient()
	r, out := newTestRunner(f, Options{DryRun: true, SpoolDir: dir})

	if err := r.Run(context.Background(), Dups); err != nil {
		t.Fatalf("Run(dups --dry-run): %v", err)
	}
	if len(f.calls) != 0 {
		t.Errorf("dry run issued commands: %v", f.calls)
	}
	if !strings.Contains(out.String(), "[dry-run] 10.0.0.3: --scan\n") {
		t.Errorf("output = %q", out.String())
	}
	assertEmptyDir(t, dir)
}
