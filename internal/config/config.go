// Package config holds the data shapes a configuration document
// populates (spec §6): simulation seed, network graph reference, host
// and process definitions, and experimental knobs. Parsing a YAML
// document into these structs is explicitly out of scope (spec §1); the
// `yaml` tags exist so an external parser can populate them directly,
// matching original_source's sim_config.rs field set.
package config

import (
	"net/netip"

	"github.com/shadow-sim/shadow-core/pkg/clock"
)

// Qdisc selects a network interface's send-queue discipline (spec §4.16
// / original_source's `Qdisc` enum on `HostInfo`).
type Qdisc int

const (
	QdiscFIFO Qdisc = iota
	QdiscPriority
)

func (q Qdisc) String() string {
	switch q {
	case QdiscFIFO:
		return "fifo"
	case QdiscPriority:
		return "priority"
	default:
		return "unknown"
	}
}

// GraphRef names the network graph the simulation runs against. GML
// parsing itself is out of scope; this is just the path/identifier an
// external loader resolves before constructing a netgraph.RoutingTable.
type GraphRef struct {
	Path string `yaml:"path"`
}

// Config is the top-level configuration document's in-memory shape
// (spec §6), mirroring original_source's SimConfig/top-level options.
type Config struct {
	Seed             uint64           `yaml:"seed"`
	Graph            GraphRef         `yaml:"graph"`
	Hosts            []HostConfig     `yaml:"hosts"`
	Experimental     ExperimentalConfig `yaml:"experimental"`
	UseShortestPath  bool             `yaml:"use_shortest_path"`
}

// HostConfig is one `hosts:` entry, matching original_source's
// `HostOptions`/`HostInfo` field set. IPAddr and the bandwidth fields are
// pointers because they are optional: unset, the network graph node's
// own values (or an autotuned default) apply instead.
type HostConfig struct {
	Name          string         `yaml:"name"`
	Quantity      int            `yaml:"quantity"`
	IPAddr        *netip.Addr    `yaml:"ip_addr,omitempty"`
	BandwidthUp   *uint64        `yaml:"bandwidth_up,omitempty"`
	BandwidthDown *uint64        `yaml:"bandwidth_down,omitempty"`
	NetworkNodeID uint64         `yaml:"network_node_id"`
	Processes     []ProcessConfig `yaml:"processes"`
}

// ProcessConfig is one `processes:` entry under a host (original_source's
// `ProcessOptions`/`ProcessInfo`).
type ProcessConfig struct {
	Path        string              `yaml:"path"`
	Args        []string            `yaml:"args"`
	Environment map[string]string   `yaml:"environment"`
	StartTime   clock.SimulationTime `yaml:"start_time"`
	StopTime    clock.SimulationTime `yaml:"stop_time"`
	Quantity    int                 `yaml:"quantity"`
}

// ExperimentalConfig is the `experimental:` block (original_source's
// `ExperimentalOptions`).
type ExperimentalConfig struct {
	SocketSendBuffer     uint64              `yaml:"socket_send_buffer"`
	SocketRecvBuffer     uint64              `yaml:"socket_recv_buffer"`
	Autotune             bool                `yaml:"autotune"`
	InterfaceQdisc       Qdisc               `yaml:"interface_qdisc"`
	HostHeartbeatInterval clock.SimulationTime `yaml:"host_heartbeat_interval"`
}

// Validate checks the cross-field invariants original_source's
// sim_config.rs enforces while building per-host state: a host with an
// explicit IPAddr cannot also request more than one instance (ambiguous
// address assignment), and every process's StopTime, if set, must be
// strictly after its StartTime.
func (c *Config) Validate() error {
	for _, h := range c.Hosts {
		if h.IPAddr != nil && h.Quantity > 1 {
			return &ValidationError{Host: h.Name, Msg: "host has an explicit ip_addr and quantity > 1"}
		}
		for _, p := range h.Processes {
			if p.StopTime != 0 && p.StartTime >= p.StopTime {
				return &ValidationError{Host: h.Name, Msg: "process stop_time must be after start_time"}
			}
		}
	}
	return nil
}

// ValidationError reports a Config.Validate failure against a specific
// host.
type ValidationError struct {
	Host string
	Msg  string
}

func (e *ValidationError) Error() string { return "config: host " + e.Host + ": " + e.Msg }
