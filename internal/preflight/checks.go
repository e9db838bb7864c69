// Package preflight provides startup validation checks.
package preflight

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks for a run of `workers` kernels
// listening on consecutive ports starting at basePort.
func RunAll(workers, basePort int, enginePath string) *Result {
	result := &Result{
		Checks: make([]Check, 0, 4),
		Passed: true,
	}

	engineCheck := checkEngine(enginePath)
	result.Checks = append(result.Checks, engineCheck)
	if !engineCheck.Passed {
		result.Passed = false
	}

	portCheck := checkListenPorts(workers, basePort)
	result.Checks = append(result.Checks, portCheck)
	if !portCheck.Passed {
		result.Passed = false
	}

	fdCheck := checkFileDescriptors(workers)
	result.Checks = append(result.Checks, fdCheck)
	if !fdCheck.Passed {
		result.Passed = false
	}

	// Process slots, warning only: hitting it shows up as spawn failures
	// with a clear error anyway.
	result.Checks = append(result.Checks, checkProcessLimit(workers))

	return result
}

// checkEngine verifies the simulation engine binary is runnable.
func checkEngine(path string) Check {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Check{
			Name:    "engine_binary",
			Passed:  false,
			Message: fmt.Sprintf("not found: %s: %v", path, err),
		}
	}

	cmd := exec.Command(resolved, "--version")
	output, err := cmd.Output()
	if err != nil {
		return Check{
			Name:    "engine_binary",
			Passed:  false,
			Message: fmt.Sprintf("%s --version failed: %v", resolved, err),
		}
	}

	version := "unknown"
	if lines := strings.SplitN(string(output), "\n", 2); len(lines[0]) > 0 {
		version = strings.TrimSpace(lines[0])
	}

	return Check{
		Name:    "engine_binary",
		Passed:  true,
		Message: fmt.Sprintf("found at %s (%s)", resolved, version),
	}
}

// checkListenPorts verifies the control ports the engines will listen on
// are currently free. The engine owns the port after spawn; this only
// catches conflicts that exist before the run starts.
func checkListenPorts(workers, basePort int) Check {
	for i := 0; i < workers; i++ {
		port := basePort + i
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			return Check{
				Name:    "listen_ports",
				Passed:  false,
				Message: fmt.Sprintf("port %d already in use: %v", port, err),
			}
		}
		ln.Close()
	}

	return Check{
		Name:    "listen_ports",
		Passed:  true,
		Message: fmt.Sprintf("%d-%d free", basePort, basePort+workers-1),
	}
}

// checkFileDescriptors verifies sufficient file descriptors are available.
func checkFileDescriptors(workers int) Check {
	var limit syscall.Rlimit
	syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit)

	// Each kernel holds the control socket, the engine's stderr pipe, and
	// the engine's own output files, plus process-wide overhead.
	required := workers*20 + 100
	actual := int(limit.Cur)

	return Check{
		Name:     "file_descriptors",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -n %d (need %d for %d workers)", actual, required, workers),
	}
}

// checkProcessLimit reads the process slot limit from /proc/self/limits;
// syscall does not export RLIMIT_NPROC.
func checkProcessLimit(workers int) Check {
	required := workers + 50

	data, err := os.ReadFile("/proc/self/limits")
	if err != nil {
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to check (non-Linux or restricted)",
		}
	}

	actual := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "Max processes") {
			fields := strings.Fields(line)
			if len(fields) >= 4 {
				if fields[3] == "unlimited" {
					actual = 1000000
				} else {
					fmt.Sscanf(fields[3], "%d", &actual)
				}
			}
			break
		}
	}

	if actual == 0 {
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to determine (assuming OK)",
		}
	}

	return Check{
		Name:     "process_limit",
		Required: required,
		Actual:   actual,
		Passed:   true,
		Warning:  actual < required,
		Message:  fmt.Sprintf("ulimit -u %d (need %d)", actual, required),
	}
}

// PrintResults prints the preflight check results to stdout.
func PrintResults(result *Result) {
	fmt.Println("Preflight checks:")
	for _, check := range result.Checks {
		fmt.Println(check.String())
		if !check.Passed {
			fmt.Printf("    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Println()
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "engine_binary":
		return "install the engine or set -binary to its path"
	case "listen_ports":
		return "stop the conflicting process or choose another -port"
	case "file_descriptors":
		return "ulimit -n 8192 (or edit /etc/security/limits.conf)"
	default:
		return "see documentation"
	}
}
