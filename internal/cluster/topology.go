// Package cluster discovers the members of a Redis Cluster and filters
// them by role.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clusterops/internal/logger"
	"clusterops/internal/redisx"
)

// DefaultDiscoveryTimeout bounds the CLUSTER NODES query.
const DefaultDiscoveryTimeout = 5 * time.Second

// ErrDiscovery wraps every failure to obtain or parse the topology. An
// empty but well-formed topology is not an error.
var ErrDiscovery = errors.New("cluster topology discovery failed")

// Role is a node's replication role as printed by CLUSTER NODES.
type Role string

const (
	RolePrimary Role = "master"
	RoleReplica Role = "slave"
)

func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleReplica:
		return "replica"
	}
	return string(r)
}

// Node is one line of CLUSTER NODES.
type Node struct {
	ID        string
	Host      string
	Port      int
	Hostname  string
	Flags     []string
	MasterID  string
	LinkState string
	Slots     [][2]int
}

// HasFlag reports whether the node carries flag.
func (n Node) HasFlag(flag string) bool {
	for _, f := range n.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// IsPrimary reports whether the node is a primary.
func (n Node) IsPrimary() bool {
	return n.HasFlag("master")
}

// IsReplica reports whether the node is a replica. Redis prints "slave";
// "replica" is accepted for forks that renamed it.
func (n Node) IsReplica() bool {
	return n.HasFlag("slave") || n.HasFlag("replica")
}

// Is reports whether the node has the given role.
func (n Node) Is(role Role) bool {
	switch role {
	case RolePrimary:
		return n.IsPrimary()
	case RoleReplica:
		return n.IsReplica()
	}
	return false
}

// Endpoint returns the connection parameters for this node, inheriting
// credentials and TLS from the cluster seed.
func (n Node) Endpoint(seed redisx.Endpoint) redisx.Endpoint {
	return seed.At(n.Host, n.Port)
}

// SlotCount returns the number of hash slots the node owns.
func (n Node) SlotCount() int {
	total := 0
	for _, r := range n.Slots {
		total += r[1] - r[0] + 1
	}
	return total
}

// Discoverer queries topology through a redisx.Client.
type Discoverer struct {
	Client  redisx.Client
	Timeout time.Duration
}

// Topology returns every addressable node in CLUSTER NODES order.
func (d *Discoverer) Topology(ctx context.Context) ([]Node, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDiscoveryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := d.Client.ClusterNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	parsed, err := parseClusterNodes(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}

	nodes := parsed[:0]
	for _, n := range parsed {
		if n.HasFlag("noaddr") || n.Host == "" {
			logger.Warn("skipping node %s without an address", n.ID)
			continue
		}
		nodes = append(nodes, n)
	}
	logger.Debug("discovered %d nodes", len(nodes))
	if logger.Enabled(logger.DEBUG) {
		for _, n := range nodes {
			logger.Debug("node %s", Describe(n))
		}
	}
	return nodes, nil
}

// ListNodesByRole returns the nodes with role, in discovery order.
func (d *Discoverer) ListNodesByRole(ctx context.Context, role Role) ([]Node, error) {
	all, err := d.Topology(ctx)
	if err != nil {
		return nil, err
	}
	var nodes []Node
	for _, n := range all {
		if n.Is(role) {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

// Describe renders a node for log lines: host:port, hostname if known,
// flags, a link state other than connected, and owned slots.
func Describe(n Node) string {
	s := fmt.Sprintf("%s:%d", n.Host, n.Port)
	if n.Hostname != "" {
		s += " (" + n.Hostname + ")"
	}
	if flags := strings.Join(n.Flags, ","); flags != "" {
		s += " [" + flags + "]"
	}
	if n.LinkState != "" && n.LinkState != "connected" {
		s += " link=" + n.LinkState
	}
	if n.IsPrimary() {
		s += fmt.Sprintf(" slots=%d", n.SlotCount())
	}
	return s
}
