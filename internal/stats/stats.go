// Package stats builds per-trial ICMPv6 ping statistics from archived captures.
package stats

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"gonum.org/v1/gonum/floats/scalar"

	"hnp-sim/internal/logging"
	"hnp-sim/internal/trace"
	"hnp-sim/internal/trial"
)

// Capture file names written by the simulator, one per node. Node 1 is the relay.
const (
	CaptureNode0 = "pkt-0-0.pcap"
	CaptureRelay = "pkt-1-0.pcap"
	CaptureNode2 = "pkt-2-0.pcap"
)

var (
	// ErrZeroTheoretical means the trial config declares no pings at all.
	ErrZeroTheoretical = errors.New("max theoretical replies is zero")
	// ErrNoRequests means neither end node sent a request.
	ErrNoRequests = errors.New("no requests were sent")
)

// TrialStats is the record for one trial. JSON names are the export column names.
type TrialStats struct {
	Trial string `json:"trial"`

	RepliesFromCentralNode int `json:"replies_from_central_node"`
	MaxTheoretical         int `json:"max_theoretical"`
	RepliesTo0             int `json:"replies_to_0"`
	RepliesTo2             int `json:"replies_to_2"`

	PacketsSent0     int `json:"packets_sent_0"`
	PacketsSent2     int `json:"packets_sent_2"`
	TotalPacketsSent int `json:"total_packets_sent"`

	UniquePacketsSent0     int `json:"unique_packets_sent_0"`
	UniquePacketsSent2     int `json:"unique_packets_sent_2"`
	TotalUniquePacketsSent int `json:"total_unique_packets_sent"`

	RetriesPerUniqueSequence0 []int `json:"retries_per_unique_sequence_node_0"`
	RetriesPerUniqueSequence2 []int `json:"retries_per_unique_sequence_node_2"`
	RetriesPerPacket0         []int `json:"retries_per_packet_node_0"`
	RetriesPerPacket2         []int `json:"retries_per_packet_node_2"`

	SequenceNumbers0 []int    `json:"sequence_numbers_0"`
	SequenceNumbers2 []int    `json:"sequence_numbers_2"`
	Time0            []string `json:"time_0"`
	Time2            []string `json:"time_2"`

	Responded         float64 `json:"%_responded"`
	NetworkEfficiency float64 `json:"network_efficiency_%"`

	Node0RequestStat string `json:"Node_0_request_stat"`
	Node2RequestStat string `json:"Node_2_request_stat"`

	trial.Config
}

// RequestStat formats the per-node request summary.
func RequestStat(node, sent, unique int) string {
	return fmt.Sprintf("Node %d: %d requests were sent, %d were unique", node, sent, unique)
}

// Percent returns num/den*100 rounded to two decimals.
func Percent(num, den int) float64 {
	return scalar.Round(float64(num)/float64(den)*100, 2)
}

// Extractor turns corpus entries into TrialStats.
type Extractor struct {
	Source    trace.Source
	ConfigDir string
}

// NewExtractor reads captures through src and trial configs from configDir.
func NewExtractor(src trace.Source, configDir string) *Extractor {
	return &Extractor{Source: src, ConfigDir: configDir}
}

// ConfigPath is the config file that produced the trial.
func (e *Extractor) ConfigPath(entry Entry) string {
	return filepath.Join(e.ConfigDir, entry.Name+".cfg")
}

func (e *Extractor) load(ctx context.Context, entry Entry, name string) (trace.Trace, error) {
	return e.Source.Packets(ctx, filepath.Join(entry.CaptureDir, name))
}

// Extract computes the statistics of one trial.
func (e *Extractor) Extract(ctx context.Context, entry Entry) (TrialStats, error) {
	log := logging.FromContext(ctx)
	cfgPath := e.ConfigPath(entry)
	log.Debug("extracting trial stats", "trial", entry.Name, "captures", entry.CaptureDir, "config", cfgPath)

	node0, err := e.load(ctx, entry, CaptureNode0)
	if err != nil {
		return TrialStats{}, err
	}
	relay, err := e.load(ctx, entry, CaptureRelay)
	if err != nil {
		return TrialStats{}, err
	}
	node2, err := e.load(ctx, entry, CaptureNode2)
	if err != nil {
		return TrialStats{}, err
	}
	to0, to2, err := trace.FilteredResponseSequences(relay, node0, node2)
	if err != nil {
		return TrialStats{}, fmt.Errorf("trial %s: %w", entry.Name, err)
	}
	log.Debug("end node addresses", "trial", entry.Name, "node0", node0[0].Source, "node2", node2[0].Source)

	maxTheoretical, err := trial.MaxTheoretical(cfgPath)
	if err != nil {
		return TrialStats{}, err
	}
	params, err := trial.ParseName(cfgPath)
	if err != nil {
		return TrialStats{}, err
	}

	seq0, seq2 := node0.Sequences(), node2.Sequences()
	s := TrialStats{
		Trial:                  entry.Name,
		RepliesFromCentralNode: len(relay),
		MaxTheoretical:         maxTheoretical,
		RepliesTo0:             len(to0),
		RepliesTo2:             len(to2),
		PacketsSent0:           len(node0),
		PacketsSent2:           len(node2),
		TotalPacketsSent:       len(node0) + len(node2),
		UniquePacketsSent0:     node0.Unique(),
		UniquePacketsSent2:     node2.Unique(),

		RetriesPerUniqueSequence0: trace.RetryCounts(trace.RetriesPerUniqueSequence(seq0)),
		RetriesPerUniqueSequence2: trace.RetryCounts(trace.RetriesPerUniqueSequence(seq2)),
		RetriesPerPacket0:         trace.RetriesPerPacket(seq0),
		RetriesPerPacket2:         trace.RetriesPerPacket(seq2),

		SequenceNumbers0: seq0,
		SequenceNumbers2: seq2,
		Time0:            node0.Times(),
		Time2:            node2.Times(),
		Config:           params,
	}
	s.TotalUniquePacketsSent = s.UniquePacketsSent0 + s.UniquePacketsSent2
	s.Node0RequestStat = RequestStat(0, s.PacketsSent0, s.UniquePacketsSent0)
	s.Node2RequestStat = RequestStat(2, s.PacketsSent2, s.UniquePacketsSent2)

	if s.TotalPacketsSent == 0 {
		return TrialStats{}, fmt.Errorf("trial %s: %w", entry.Name, ErrNoRequests)
	}
	if s.MaxTheoretical == 0 {
		return TrialStats{}, fmt.Errorf("trial %s (%s): %w", entry.Name, cfgPath, ErrZeroTheoretical)
	}
	s.Responded = Percent(s.RepliesFromCentralNode, s.TotalPacketsSent)
	s.NetworkEfficiency = Percent(s.RepliesFromCentralNode, s.MaxTheoretical)
	return s, nil
}

// ExtractAll discovers every trial under root and extracts them in corpus order.
// The first failing trial aborts the run.
func (e *Extractor) ExtractAll(ctx context.Context, root string) ([]TrialStats, error) {
	entries, err := Discover(root)
	if err != nil {
		return nil, err
	}
	out := make([]TrialStats, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		s, err := e.Extract(ctx, entry)
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}
