package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"hnp-sim/internal/stats"
	"hnp-sim/internal/sweep"
)

// defaultGreptimePort is the gRPC port of a GreptimeDB frontend.
const defaultGreptimePort = 4001

// greptimeClient is the part of the ingester client the writer needs.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes trial statistics and sweep events to GreptimeDB via the
// ingester client.
type GreptimeDBWriter struct {
	client     greptimeClient
	statsTable string
	eventTable string
	timeout    time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewGreptimeDBWriter connects to endpoint ("host" or "host:port").
func NewGreptimeDBWriter(endpoint, database, statsTable, eventTable string, logger *slog.Logger) (*GreptimeDBWriter, error) {
	host, port := endpoint, defaultGreptimePort
	if h, p, err := net.SplitHostPort(endpoint); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("greptime endpoint %q: bad port: %w", endpoint, err)
		}
		host, port = h, n
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if statsTable == "" {
		statsTable = "hnp_trial_stats"
	}
	if eventTable == "" {
		eventTable = "hnp_sweep_events"
	}
	return &GreptimeDBWriter{
		client:     client,
		statsTable: statsTable,
		eventTable: eventTable,
		timeout:    10 * time.Second,
		now:        time.Now,
		logger:     logger.With("sink", "greptimedb"),
	}, nil
}

func (w *GreptimeDBWriter) write(tbl *table.Table, rows int) error {
	ctx := context.Background()
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	if _, err := w.client.Write(ctx, tbl); err != nil {
		w.logger.Error("write failed", "err", err)
		return err
	}
	w.logger.Debug("wrote rows", "rows", rows)
	return nil
}

func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func (w *GreptimeDBWriter) statsSchema() (*table.Table, error) {
	tbl, err := table.New(w.statsTable)
	if err != nil {
		return nil, err
	}
	cols := []struct {
		name string
		typ  types.ColumnType
		tag  bool
	}{
		{"trial", types.STRING, true},
		{"sensitivity", types.FLOAT64, false},
		{"nodes", types.FLOAT64, false},
		{"duration", types.FLOAT64, false},
		{"scale", types.FLOAT64, false},
		{"ping", types.FLOAT64, false},
		{"replies_from_central_node", types.INT64, false},
		{"max_theoretical", types.INT64, false},
		{"replies_to_0", types.INT64, false},
		{"replies_to_2", types.INT64, false},
		{"packets_sent_0", types.INT64, false},
		{"packets_sent_2", types.INT64, false},
		{"total_packets_sent", types.INT64, false},
		{"unique_packets_sent_0", types.INT64, false},
		{"unique_packets_sent_2", types.INT64, false},
		{"total_unique_packets_sent", types.INT64, false},
		{"pct_responded", types.FLOAT64, false},
		{"network_efficiency_pct", types.FLOAT64, false},
		{"node_0_request_stat", types.STRING, false},
		{"node_2_request_stat", types.STRING, false},
		{"retries_per_unique_sequence_node_0", types.STRING, false},
		{"retries_per_unique_sequence_node_2", types.STRING, false},
		{"sequence_numbers_0", types.STRING, false},
		{"sequence_numbers_2", types.STRING, false},
	}
	for _, c := range cols {
		if c.tag {
			err = tbl.AddTagColumn(c.name, c.typ)
		} else {
			err = tbl.AddFieldColumn(c.name, c.typ)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return nil, err
	}
	return tbl, nil
}

// WriteStats inserts a single trial row.
func (w *GreptimeDBWriter) WriteStats(s stats.TrialStats) error {
	return w.WriteStatsBatch([]stats.TrialStats{s})
}

// WriteStatsBatch inserts multiple trial rows in one request.
func (w *GreptimeDBWriter) WriteStatsBatch(rows []stats.TrialStats) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := w.statsSchema()
	if err != nil {
		return err
	}
	ts := w.now()
	for _, s := range rows {
		err := tbl.AddRow(
			s.Trial, s.Sensitivity,
			s.Nodes, s.Duration, s.Scale, s.Ping,
			int64(s.RepliesFromCentralNode), int64(s.MaxTheoretical),
			int64(s.RepliesTo0), int64(s.RepliesTo2),
			int64(s.PacketsSent0), int64(s.PacketsSent2), int64(s.TotalPacketsSent),
			int64(s.UniquePacketsSent0), int64(s.UniquePacketsSent2), int64(s.TotalUniquePacketsSent),
			s.Responded, s.NetworkEfficiency,
			s.Node0RequestStat, s.Node2RequestStat,
			jsonText(s.RetriesPerUniqueSequence0), jsonText(s.RetriesPerUniqueSequence2),
			jsonText(s.SequenceNumbers0), jsonText(s.SequenceNumbers2),
			ts,
		)
		if err != nil {
			return fmt.Errorf("stats row %s: %w", s.Trial, err)
		}
	}
	return w.write(tbl, len(rows))
}

func (w *GreptimeDBWriter) eventSchema() (*table.Table, error) {
	tbl, err := table.New(w.eventTable)
	if err != nil {
		return nil, err
	}
	if err := tbl.AddTagColumn("session", types.STRING); err != nil {
		return nil, err
	}
	if err := tbl.AddTagColumn("kind", types.STRING); err != nil {
		return nil, err
	}
	fields := []struct {
		name string
		typ  types.ColumnType
	}{
		{"sensitivity", types.INT64},
		{"iteration", types.INT64},
		{"attempt", types.INT64},
		{"topology", types.STRING},
		{"config_path", types.STRING},
		{"detected", types.BOOLEAN},
		{"artifacts", types.STRING},
		{"error", types.STRING},
	}
	for _, f := range fields {
		if err := tbl.AddFieldColumn(f.name, f.typ); err != nil {
			return nil, err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return nil, err
	}
	return tbl, nil
}

// WriteEvent inserts a sweep event. Poll ticks are not stored.
func (w *GreptimeDBWriter) WriteEvent(e sweep.Event) error {
	return w.WriteEvents([]sweep.Event{e})
}

// WriteEvents inserts multiple sweep events.
func (w *GreptimeDBWriter) WriteEvents(rows []sweep.Event) error {
	tbl, err := w.eventSchema()
	if err != nil {
		return err
	}
	n := 0
	for _, e := range rows {
		if e.Kind == sweep.EventPoll {
			continue
		}
		ts := e.Time
		if ts.IsZero() {
			ts = w.now()
		}
		err := tbl.AddRow(
			e.Session, string(e.Kind),
			int64(e.Sensitivity), int64(e.Iteration), int64(e.Attempt),
			e.Topology, e.ConfigPath, e.Detected, jsonText(e.Artifacts), e.Err,
			ts,
		)
		if err != nil {
			return fmt.Errorf("event row %s: %w", e.Kind, err)
		}
		n++
	}
	if n == 0 {
		return nil
	}
	return w.write(tbl, n)
}
