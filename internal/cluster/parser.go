package cluster

import (
	"fmt"
	"strconv"
	"strings"
)

// parseClusterNodes parses CLUSTER NODES output. Example lines:
//
//	07c37dfeb235213a872192d90877d0cd55635b91 127.0.0.1:30004@31004 slave e7d1eecce10fd6bb5eb35b9f99a514335d9ba9ca 0 1426238317239 4 connected
//	67ed2db8d677e59ec4a4cefb06858cf2a1a89fa1 127.0.0.1:30002@31002,redis-2.local master - 0 1426238316232 2 connected 5461-10922
func parseClusterNodes(output string) ([]Node, error) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	var nodes []Node

	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 8 {
			return nil, fmt.Errorf("line %d: want at least 8 fields, got %d: %q", i+1, len(fields), line)
		}

		host, port, hostname, err := splitNodeAddr(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}

		node := Node{
			ID:        fields[0],
			Host:      host,
			Port:      port,
			Hostname:  hostname,
			Flags:     strings.Split(fields[2], ","),
			MasterID:  fields[3],
			LinkState: fields[7],
		}
		if node.MasterID == "-" {
			node.MasterID = ""
		}

		// Slot ranges start at the 9th field; [slot->-id] entries are
		// in-flight migrations and not owned ranges.
		for _, slotField := range fields[8:] {
			if strings.HasPrefix(slotField, "[") {
				continue
			}
			slotRange, err := parseSlotRange(slotField)
			if err != nil {
				return nil, fmt.Errorf("line %d: slot range %q: %w", i+1, slotField, err)
			}
			node.Slots = append(node.Slots, slotRange)
		}

		nodes = append(nodes, node)
	}

	return nodes, nil
}

// splitNodeAddr splits "ip:port@cport[,hostname]". Nodes flagged noaddr
// report ":0@0", which yields an empty host.
func splitNodeAddr(field string) (host string, port int, hostname string, err error) {
	addr := field
	if idx := strings.Index(addr, ","); idx != -1 {
		hostname = addr[idx+1:]
		addr = addr[:idx]
	}
	if idx := strings.Index(addr, "@"); idx != -1 {
		addr = addr[:idx]
	}
	idx := strings.LastIndex(addr, ":")
	if idx == -1 {
		return "", 0, "", fmt.Errorf("node address %q has no port", field)
	}
	host = strings.Trim(addr[:idx], "[]")
	port, err = strconv.Atoi(addr[idx+1:])
	if err != nil {
		return "", 0, "", fmt.Errorf("node address %q: bad port: %w", field, err)
	}
	return host, port, hostname, nil
}

// parseSlotRange accepts "5461" or "5461-10922".
func parseSlotRange(s string) ([2]int, error) {
	parts := strings.Split(s, "-")

	switch len(parts) {
	case 1:
		slot, err := strconv.Atoi(parts[0])
		if err != nil {
			return [2]int{}, err
		}
		return [2]int{slot, slot}, nil
	case 2:
		start, err := strconv.Atoi(parts[0])
		if err != nil {
			return [2]int{}, err
		}
		end, err := strconv.Atoi(parts[1])
		if err != nil {
			return [2]int{}, err
		}
		return [2]int{start, end}, nil
	}

	return [2]int{}, fmt.Errorf("invalid slot range format")
}
