package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/launchcraft/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("launchcraft", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
LaunchCraft - resolves a game version, materializes its artifacts and
assembles the launch command.

Usage:
  launchcraft [options] VERSION_ID

Arguments:
  VERSION_ID
    A version id, or the "release"/"snapshot" aliases.

Options:
`)
		flagSet.PrintDefaults()
	}

	installRootFlag := flagSet.String("install-root", "", "Install root directory. Defaults to the config file value or ~/.launchcraft.")
	configFlag := flagSet.String("config", "", "Path to an HCL launcher config file.")
	gameDirFlag := flagSet.String("game-dir", "", "Working directory for the game process. Defaults to the install root.")
	workersFlag := flagSet.Int("workers", 0, "Number of concurrent download workers. 0 uses the config file value or the default.")
	featuresFlag := flagSet.String("features", "", "Comma-separated feature flags to enable (e.g. 'is_demo_user').")
	usernameFlag := flagSet.String("username", "", "Offline-session player name. Ignored when a real session is supplied.")
	uuidFlag := flagSet.String("uuid", "", "Player UUID override for the offline session.")
	demoFlag := flagSet.Bool("demo", false, "Launch in demo mode.")
	serverFlag := flagSet.String("server", "", "Server address to join immediately after launch.")
	portFlag := flagSet.Int("port", 0, "Server port, used together with -server.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Resolve and plan only; print the plan without downloading.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() == 0 {
		slog.Debug("No version id provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}
	versionID := flagSet.Arg(0)

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	features := make(map[string]bool)
	if *featuresFlag != "" {
		for _, name := range strings.Split(*featuresFlag, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				features[name] = true
			}
		}
	}

	slog.Debug("CLI parameter validation complete.")
	return &app.Config{
		VersionID:   versionID,
		InstallRoot: *installRootFlag,
		ConfigPath:  *configFlag,
		GameDir:     *gameDirFlag,
		Workers:     *workersFlag,
		Features:    features,
		Username:    *usernameFlag,
		UUID:        *uuidFlag,
		Demo:        *demoFlag,
		Server:      *serverFlag,
		Port:        *portFlag,
		DryRun:      *dryRunFlag,
		LogFormat:   logFormat,
		LogLevel:    logLevel,
	}, false, nil
}
