// Package spool stores per-node key listings in temporary files so a
// keyspace never has to sit in memory while it is being collected.
//
// Each key is one line. Keys containing a line break, or starting with a
// double quote, are written Go-quoted; every line beginning with a quote
// is therefore quoted and unambiguous.
package spool

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects the on-disk compression of spool files.
type Codec string

const (
	None Codec = "none"
	Zstd Codec = "zstd"
	LZ4  Codec = "lz4"
)

// ParseCodec accepts none, zstd and lz4; "" means none.
func ParseCodec(s string) (Codec, error) {
	switch c := Codec(strings.ToLower(strings.TrimSpace(s))); c {
	case "", None:
		return None, nil
	case Zstd, LZ4:
		return c, nil
	}
	return "", fmt.Errorf("unknown spool codec %q", s)
}

func (c Codec) ext() string {
	switch c {
	case Zstd:
		return ".keys.zst"
	case LZ4:
		return ".keys.lz4"
	}
	return ".keys"
}

// Spool is a private directory of key files removed as a unit.
type Spool struct {
	dir   string
	codec Codec
}

// New creates a spool directory under parent (os.TempDir() when empty).
// The directory name embeds runID so concurrent runs never share files.
func New(parent, runID string, codec Codec) (*Spool, error) {
	if parent == "" {
		parent = os.TempDir()
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("create spool parent %s: %w", parent, err)
	}
	dir, err := os.MkdirTemp(parent, "clusterops-"+sanitize(runID)+"-*")
	if err != nil {
		return nil, fmt.Errorf("create spool directory: %w", err)
	}
	return &Spool{dir: dir, codec: codec}, nil
}

// Dir returns the spool directory.
func (s *Spool) Dir() string {
	return s.dir
}

// Remove deletes the spool directory and everything in it.
func (s *Spool) Remove() error {
	return os.RemoveAll(s.dir)
}

// Create opens a new, uniquely named key file for name (typically a node address).
func (s *Spool) Create(name string) (*Writer, error) {
	f, err := os.CreateTemp(s.dir, sanitize(name)+"-*"+s.codec.ext())
	if err != nil {
		return nil, fmt.Errorf("create spool file for %s: %w", name, err)
	}

	w := &Writer{file: f}
	var sink io.Writer = f
	switch s.codec {
	case Zstd:
		enc, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		w.comp = enc
		sink = enc
	case LZ4:
		lw := lz4.NewWriter(f)
		w.comp = lw
		sink = lw
	}
	w.buf = bufio.NewWriterSize(sink, 256*1024)
	return w, nil
}

// Open returns a reader yielding the keys of a file written by Create.
func (s *Spool) Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spool file: %w", err)
	}
	r := &Reader{file: f}
	var src io.Reader = f
	switch s.codec {
	case Zstd:
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		r.closeDec = dec.Close
		src = dec
	case LZ4:
		src = lz4.NewReader(f)
	}
	r.scanner = bufio.NewScanner(src)
	r.scanner.Buffer(make([]byte, 64*1024), 512*1024*1024)
	return r, nil
}

// Writer appends keys to one spool file.
type Writer struct {
	file  *os.File
	comp  io.WriteCloser
	buf   *bufio.Writer
	count int64
}

// WriteKey appends key.
func (w *Writer) WriteKey(key string) error {
	if strings.ContainsAny(key, "\r\n") || strings.HasPrefix(key, `"`) {
		key = strconv.Quote(key)
	}
	if _, err := w.buf.WriteString(key); err != nil {
		return err
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of keys written.
func (w *Writer) Count() int64 {
	return w.count
}

// Path returns the file path.
func (w *Writer) Path() string {
	return w.file.Name()
}

// Close flushes buffered and compressed data and closes the file.
func (w *Writer) Close() error {
	errs := []error{w.buf.Flush()}
	if w.comp != nil {
		errs = append(errs, w.comp.Close())
	}
	errs = append(errs, w.file.Close())
	return errors.Join(errs...)
}

// Reader iterates keys from one spool file.
type Reader struct {
	file     *os.File
	closeDec func()
	scanner  *bufio.Scanner
	key      string
	err      error
}

// Next advances to the next key.
func (r *Reader) Next() bool {
	if r.err != nil || !r.scanner.Scan() {
		return false
	}
	line := r.scanner.Text()
	if strings.HasPrefix(line, `"`) {
		key, err := strconv.Unquote(line)
		if err != nil {
			r.err = fmt.Errorf("corrupt spool line %q: %w", line, err)
			return false
		}
		line = key
	}
	r.key = line
	return true
}

// Key returns the current key.
func (r *Reader) Key() string {
	return r.key
}

// Err returns the first read or decode error.
func (r *Reader) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.scanner.Err()
}

// Close releases the file.
func (r *Reader) Close() error {
	if r.closeDec != nil {
		r.closeDec()
	}
	return r.file.Close()
}

func sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	if name == "" {
		return "node"
	}
	return name
}

