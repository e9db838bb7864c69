package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// tlIDList is a custom flag type for repeatable -tl flags.
type tlIDList []string

func (t *tlIDList) String() string {
	return strings.Join(*t, ", ")
}

func (t *tlIDList) Set(value string) error {
	*t = append(*t, value)
	return nil
}

// ParseFlags parses command-line flags and returns a Config.
// A -scenario YAML file, if given, is loaded before flag registration so its
// values become the flag defaults; explicit flags always win over the file.
func ParseFlags() (*Config, error) {
	return parseFlags(os.Args[1:], os.Stderr)
}

func parseFlags(args []string, errOut *os.File) (*Config, error) {
	cfg := DefaultConfig()

	// Pre-scan for -scenario so file values act as defaults.
	scenarioPath := scanScenarioFlag(args)
	if scenarioPath != "" {
		if err := LoadScenario(scenarioPath, cfg); err != nil {
			return nil, err
		}
	}

	fs := flag.NewFlagSet("go-traci-kernel", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var tlIDs tlIDList

	fs.Usage = func() {
		fmt.Fprintf(errOut, `go-traci-kernel - simulation control kernel for RL training on microscopic traffic simulators

Usage:
  go-traci-kernel [flags] <engine-config-file>

Engine Flags:
`)
		printFlagCategory(fs, errOut, []string{"backend", "binary", "gui-binary", "render", "port", "num-clients", "step-length", "seed"})

		fmt.Fprintf(errOut, "\nEngine Behavior:\n")
		printFlagCategory(fs, errOut, []string{"lateral-resolution", "emission-path", "overtake-right", "teleport-time", "warnings", "no-step-log", "tl"})

		fmt.Fprintf(errOut, "\nStartup / Retry:\n")
		printFlagCategory(fs, errOut, []string{"settle-delay", "start-retries", "retry-delay", "connect-attempts", "connect-delay"})

		fmt.Fprintf(errOut, "\nRun Loop:\n")
		printFlagCategory(fs, errOut, []string{"steps", "workers", "scenario", "name"})

		fmt.Fprintf(errOut, "\nObservability:\n")
		printFlagCategory(fs, errOut, []string{"metrics", "v", "log-format", "tui"})

		fmt.Fprintf(errOut, "\nSafety & Diagnostics:\n")
		printFlagCategory(fs, errOut, []string{"print-cmd", "skip-preflight"})

		fmt.Fprintf(errOut, `
Examples:
  # Step a scenario 1000 times, headless
  go-traci-kernel -steps 1000 grid.sumocfg

  # Rendered engine with a fixed seed
  go-traci-kernel -render -seed 42 grid.sumocfg

  # Four parallel training workers on consecutive ports
  go-traci-kernel -workers 4 -steps 5000 grid.sumocfg

`)
	}

	// Engine
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, `Simulator backend (currently "traci")`)
	fs.StringVar(&cfg.Binary, "binary", cfg.Binary, "Headless engine binary")
	fs.StringVar(&cfg.GUIBinary, "gui-binary", cfg.GUIBinary, "Rendered engine binary")
	fs.BoolVar(&cfg.Render, "render", cfg.Render, "Launch the rendered engine binary")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "Control-protocol port the engine listens on")
	fs.IntVar(&cfg.NumClients, "num-clients", cfg.NumClients, "Number of protocol clients the engine waits for")
	fs.Float64Var(&cfg.StepLength, "step-length", cfg.StepLength, "Simulation step length in seconds")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Engine random seed (negative = unseeded)")

	// Engine behavior
	fs.Float64Var(&cfg.LateralResolution, "lateral-resolution", cfg.LateralResolution, "Sublane lateral resolution (0 = disabled)")
	fs.StringVar(&cfg.EmissionPath, "emission-path", cfg.EmissionPath, "Directory for engine emission output (empty = disabled)")
	fs.BoolVar(&cfg.OvertakeRight, "overtake-right", cfg.OvertakeRight, "Allow overtaking on the right")
	fs.DurationVar(&cfg.TeleportTime, "teleport-time", cfg.TeleportTime, "Gridlock time before the engine teleports a vehicle")
	fs.BoolVar(&cfg.PrintWarnings, "warnings", cfg.PrintWarnings, "Let the engine print warnings")
	fs.BoolVar(&cfg.NoStepLog, "no-step-log", cfg.NoStepLog, "Suppress the engine's per-step log")
	fs.Var(&tlIDs, "tl", "Traffic light id to track (can repeat)")

	// Startup / retry
	fs.DurationVar(&cfg.SettleDelay, "settle-delay", cfg.SettleDelay, "Post-spawn wait before connecting")
	fs.IntVar(&cfg.StartRetries, "start-retries", cfg.StartRetries, "Spawn+connect attempts before giving up")
	fs.DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "Delay between failed start attempts")
	fs.IntVar(&cfg.ConnectAttempts, "connect-attempts", cfg.ConnectAttempts, "Socket dial attempts per start attempt")
	fs.DurationVar(&cfg.ConnectDelay, "connect-delay", cfg.ConnectDelay, "Delay between socket dial attempts")

	// Run loop
	fs.IntVar(&cfg.Steps, "steps", cfg.Steps, "Steps to run (0 = forever)")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Parallel independent kernels on consecutive ports")
	fs.String("scenario", "", "YAML scenario file with config values")
	fs.StringVar(&cfg.Name, "name", cfg.Name, "Run name used for output file naming")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard")

	// Safety & Diagnostics
	fs.BoolVar(&cfg.PrintCmd, "print-cmd", cfg.PrintCmd, "Print the engine command line and exit")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if len(tlIDs) > 0 {
		cfg.TrafficLightIDs = tlIDs
	}

	// Test mode comes from the environment, the way CI drives it.
	if os.Getenv(TestModeEnv) != "" {
		cfg.TestMode = true
	}

	// Positional argument: engine configuration file
	if args := fs.Args(); len(args) >= 1 {
		cfg.ConfigFile = args[0]
	}

	return cfg, nil
}

// scanScenarioFlag finds the -scenario value without a full flag parse.
func scanScenarioFlag(args []string) string {
	for i, arg := range args {
		name, value, hasValue := strings.Cut(arg, "=")
		name = strings.TrimLeft(name, "-")
		if name != "scenario" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, out *os.File, names []string) {
	fs.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(out, "  -%s\n    \t%s", f.Name, f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" && f.DefValue != "[]" {
					fmt.Fprintf(out, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(out)
				return
			}
		}
	})
}
