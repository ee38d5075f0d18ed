package config

import (
	"fmt"
	"strings"
)

// Cluster selects which of the two configured clusters a run acts on.
type Cluster int

const (
	Source Cluster = iota + 1
	Target
)

func (c Cluster) String() string {
	switch c {
	case Source:
		return "source"
	case Target:
		return "target"
	}
	return fmt.Sprintf("cluster(%d)", int(c))
}

// UsageError is a command-line mistake, reported with the usage text.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return e.Msg
}

// ParseCluster accepts "source" or "target" in any case.
func ParseCluster(s string) (Cluster, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "source":
		return Source, nil
	case "target":
		return Target, nil
	}
	return 0, &UsageError{Msg: fmt.Sprintf("unknown cluster %q (want source or target)", s)}
}
