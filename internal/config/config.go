// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"hnp-sim/internal/sweep"
	"hnp-sim/internal/whitefield"
)

// Duration decodes Go duration strings such as "2s" or "500ms".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	d.Duration = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Session configures the process around a sweep.
type Session struct {
	LogDir    string `yaml:"log_dir"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	AdminAddr string `yaml:"admin_addr"`
}

// Sweep is the search plan.
type Sweep struct {
	SensitivityStart int     `yaml:"sensitivity_start"`
	SensitivityEnd   int     `yaml:"sensitivity_end"`
	Baseline         string  `yaml:"baseline"`
	Ping             float64 `yaml:"ping"`
	Nodes            float64 `yaml:"nodes"`
	Duration         float64 `yaml:"duration"`
}

// Renderer locates the config-editor script and its template.
type Renderer struct {
	Dir       string `yaml:"dir"`
	Script    string `yaml:"script"`
	Template  string `yaml:"template"`
	OutputDir string `yaml:"output_dir"`
	Prefix    string `yaml:"prefix"`
}

// Simulator describes the Whitefield checkout.
type Simulator struct {
	Root          string            `yaml:"root"`
	ConfigPrefix  string            `yaml:"config_prefix"`
	OutputRoot    string            `yaml:"output_root"`
	Folders       map[string]string `yaml:"folders"`
	StartCommand  []string          `yaml:"start_command"`
	StatusCommand []string          `yaml:"status_command"`
	StatusDir     string            `yaml:"status_dir"`
	StopCommand   []string          `yaml:"stop_command"`
	StartedMarker string            `yaml:"started_marker"`
	StoppedMarker string            `yaml:"stopped_marker"`
	EventLog      string            `yaml:"event_log"`
	PollInterval  Duration          `yaml:"poll_interval"`
	DryRun        bool              `yaml:"dry_run"`
}

// Trace selects how captures are decoded for statistics.
type Trace struct {
	Source    string `yaml:"source"`
	Tshark    string `yaml:"tshark"`
	Filter    string `yaml:"filter"`
	ConfigDir string `yaml:"config_dir"`
}

// Output selects the sinks for trial statistics and sweep events.
type Output struct {
	PrintOnly      bool   `yaml:"print_only"`
	JSON           bool   `yaml:"json"`
	LogFile        string `yaml:"log_file"`
	TUI            bool   `yaml:"tui"`
	Endpoint       string `yaml:"greptime_endpoint"`
	Database       string `yaml:"greptime_database"`
	StatsTable     string `yaml:"stats_table"`
	DetectionTable string `yaml:"detection_table"`
}

// Config is the root configuration.
type Config struct {
	Session   Session   `yaml:"session"`
	Sweep     Sweep     `yaml:"sweep"`
	Renderer  Renderer  `yaml:"renderer"`
	Simulator Simulator `yaml:"simulator"`
	Trace     Trace     `yaml:"trace"`
	Output    Output    `yaml:"output"`
}

// Trace sources.
const (
	SourceTshark = "tshark"
	SourcePcap   = "pcap"
)

// Default returns the reference layout: sensitivities -99..-105, baseline
// [0,0,0] [0,10,0] [0,20,0], ping 83 and a 2s poll interval.
func Default() *Config {
	plan := sweep.DefaultPlan()
	env := whitefield.DefaultEnvironment()
	return &Config{
		Session: Session{
			LogDir:    "../logs",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Sweep: Sweep{
			SensitivityStart: plan.SensitivityStart,
			SensitivityEnd:   plan.SensitivityEnd,
			Baseline:         plan.Baseline,
			Ping:             plan.Ping,
			Nodes:            plan.Nodes,
			Duration:         plan.Duration,
		},
		Renderer: Renderer{
			Dir:       ".",
			Script:    "./config-editor.sh",
			Template:  "../config/wf_ot_v1_8.cfg",
			OutputDir: "../config/",
			Prefix:    "wf_ot",
		},
		Simulator: Simulator{
			Root:          env.Root,
			ConfigPrefix:  env.ConfigPrefix,
			OutputRoot:    env.OutputRoot,
			Folders:       env.Folders,
			StartCommand:  env.StartCommand,
			StatusCommand: env.StatusCommand,
			StatusDir:     env.StatusDir,
			StopCommand:   env.StopCommand,
			StartedMarker: env.StartedMarker,
			StoppedMarker: env.StoppedMarker,
			EventLog:      env.EventLog,
			PollInterval:  Duration{2 * time.Second},
		},
		Trace: Trace{
			Source:    SourceTshark,
			Tshark:    "tshark",
			Filter:    "icmpv6",
			ConfigDir: "../config",
		},
		Output: Output{
			Database:       "public",
			StatsTable:     "hnp_trial_stats",
			DetectionTable: "hnp_sweep_events",
		},
	}
}

// Load validates the YAML file against the CUE schema and decodes it over
// Default(). Environment overrides are applied last. An empty schemaPath skips
// schema validation.
func Load(configPath, cueSchemaPath string) (*Config, error) {
	if cueSchemaPath != "" {
		if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
			return nil, err
		}
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", configPath, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides output and polling settings from the environment:
// GREPTIMEDB_ENDPOINT, GREPTIMEDB_DATABASE, TRIAL_STATS_TABLE, DETECTION_TABLE
// and POLL_INTERVAL.
func (c *Config) ApplyEnv() error {
	set := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set("GREPTIMEDB_ENDPOINT", &c.Output.Endpoint)
	set("GREPTIMEDB_DATABASE", &c.Output.Database)
	set("TRIAL_STATS_TABLE", &c.Output.StatsTable)
	set("DETECTION_TABLE", &c.Output.DetectionTable)
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid POLL_INTERVAL: %w", err)
		}
		c.Simulator.PollInterval = Duration{d}
	}
	return nil
}

// Plan converts the sweep section.
func (c *Config) Plan() sweep.Plan {
	return sweep.Plan{
		SensitivityStart: c.Sweep.SensitivityStart,
		SensitivityEnd:   c.Sweep.SensitivityEnd,
		Baseline:         c.Sweep.Baseline,
		Ping:             c.Sweep.Ping,
		Nodes:            c.Sweep.Nodes,
		Duration:         c.Sweep.Duration,
	}
}

// Environment converts the simulator section.
func (c *Config) Environment() whitefield.Environment {
	s := c.Simulator
	return whitefield.Environment{
		Root:          s.Root,
		ConfigPrefix:  s.ConfigPrefix,
		OutputRoot:    s.OutputRoot,
		Folders:       s.Folders,
		StartCommand:  s.StartCommand,
		StatusCommand: s.StatusCommand,
		StatusDir:     s.StatusDir,
		StopCommand:   s.StopCommand,
		StartedMarker: s.StartedMarker,
		StoppedMarker: s.StoppedMarker,
		EventLog:      s.EventLog,
	}
}
