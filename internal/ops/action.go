// Package ops implements the administrative actions clusterops can run
// against one cluster: snapshotting, flushing, listing, counting and
// duplicate detection across primaries.
package ops

import (
	"fmt"
	"sort"
	"strings"
)

// Action is one supported command.
type Action int

const (
	BGSave Action = iota + 1
	Dups
	Flush
	Keys
	Memory
	Primaries
	Replicas
)

var actionNames = map[Action]string{
	BGSave:    "bgsave",
	Dups:      "dups",
	Flush:     "flush",
	Keys:      "keys",
	Memory:    "memory",
	Primaries: "primaries",
	Replicas:  "replicas",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Destructive reports whether the action deletes data.
func (a Action) Destructive() bool {
	return a == Flush
}

// UnknownActionError is returned by ParseAction for names outside the set.
type UnknownActionError struct {
	Name string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown command %q (want one of %s)", e.Name, strings.Join(ActionNames(), ", "))
}

// ParseAction maps a command name to its Action. Matching is exact after
// lowercasing; there is no default.
func ParseAction(name string) (Action, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for a, s := range actionNames {
		if s == n {
			return a, nil
		}
	}
	return 0, &UnknownActionError{Name: name}
}

// ActionNames lists every command name, sorted.
func ActionNames() []string {
	names := make([]string, 0, len(actionNames))
	for _, s := range actionNames {
		names = append(names, s)
	}
	sort.Strings(names)
	return names
}
