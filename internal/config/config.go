// Package config provides configuration management for go-traci-kernel.
package config

import "time"

// TestModeEnv is the environment variable that forces test mode. When set,
// the post-spawn settle delay is shortened so automated tests stay fast.
const TestModeEnv = "TRACI_KERNEL_TEST"

// Config holds all configuration options for a simulation kernel run.
type Config struct {
	// Backend / engine selection
	Backend    string `json:"backend" yaml:"backend"`         // simulator backend, e.g. "traci"
	Binary     string `json:"binary" yaml:"binary"`           // headless engine binary
	GUIBinary  string `json:"gui_binary" yaml:"gui_binary"`   // rendered engine binary
	Render     bool   `json:"render" yaml:"render"`           // use the rendered binary
	ConfigFile string `json:"config_file" yaml:"config_file"` // engine scenario configuration file
	Name       string `json:"name" yaml:"name"`               // run name, used for output file naming

	// Engine invocation
	Port              int           `json:"port" yaml:"port"`
	NumClients        int           `json:"num_clients" yaml:"num_clients"`
	StepLength        float64       `json:"step_length" yaml:"step_length"` // seconds
	LateralResolution float64       `json:"lateral_resolution" yaml:"lateral_resolution"` // 0 = disabled
	EmissionPath      string        `json:"emission_path" yaml:"emission_path"`           // "" = disabled
	Seed              int64         `json:"seed" yaml:"seed"`                             // <0 = unseeded
	PrintWarnings     bool          `json:"print_warnings" yaml:"print_warnings"`
	NoStepLog         bool          `json:"no_step_log" yaml:"no_step_log"`
	OvertakeRight     bool          `json:"overtake_right" yaml:"overtake_right"`
	TeleportTime      time.Duration `json:"teleport_time" yaml:"teleport_time"`

	// Traffic lights whose phase state the kernel should track.
	TrafficLightIDs []string `json:"traffic_light_ids" yaml:"traffic_light_ids"`

	// Startup / retry policy
	SettleDelay     time.Duration `json:"settle_delay" yaml:"settle_delay"` // post-spawn wait before connecting
	TestMode        bool          `json:"test_mode" yaml:"test_mode"`       // shortens SettleDelay
	StartRetries    int           `json:"start_retries" yaml:"start_retries"`
	RetryDelay      time.Duration `json:"retry_delay" yaml:"retry_delay"` // between failed Start attempts
	ConnectAttempts int           `json:"connect_attempts" yaml:"connect_attempts"`
	ConnectDelay    time.Duration `json:"connect_delay" yaml:"connect_delay"` // between socket dial attempts

	// Run loop
	Steps   int `json:"steps" yaml:"steps"`     // 0 = forever
	Workers int `json:"workers" yaml:"workers"` // parallel independent kernels

	// Observability
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"`
	Verbose     bool   `json:"verbose" yaml:"verbose"`
	LogFormat   string `json:"log_format" yaml:"log_format"` // json, text
	TUIEnabled  bool   `json:"tui" yaml:"tui"`

	// Diagnostic modes
	PrintCmd      bool `json:"print_cmd" yaml:"-"`
	SkipPreflight bool `json:"skip_preflight" yaml:"-"`
}

// TestSettleDelay is the settle delay used when TestMode is set.
const TestSettleDelay = 100 * time.Millisecond

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Engine
		Backend:    "traci",
		Binary:     "sumo",
		GUIBinary:  "sumo-gui",
		Name:       "sim",
		Port:       8813,
		NumClients: 1,
		StepLength: 0.1,
		Seed:       -1, // Unseeded

		// Engine behavior
		NoStepLog:    true,
		TeleportTime: 600 * time.Second,

		// Startup
		SettleDelay:     time.Second,
		StartRetries:    10,
		RetryDelay:      500 * time.Millisecond,
		ConnectAttempts: 100,
		ConnectDelay:    250 * time.Millisecond,

		// Run loop
		Steps:   0, // Forever
		Workers: 1,

		// Observability
		MetricsAddr: "0.0.0.0:17092",
		Verbose:     false,
		LogFormat:   "json",
		TUIEnabled:  false,
	}
}

// EffectiveSettleDelay returns the post-spawn settle delay, shortened when
// running in test mode.
func (c *Config) EffectiveSettleDelay() time.Duration {
	if c.TestMode {
		return TestSettleDelay
	}
	return c.SettleDelay
}

// EngineBinary returns the binary to launch for the configured render mode.
func (c *Config) EngineBinary() string {
	if c.Render {
		return c.GUIBinary
	}
	return c.Binary
}
