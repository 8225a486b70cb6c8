package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"livemenu/internal/app"
	"livemenu/internal/client"
	"livemenu/internal/config"
	"livemenu/internal/logging"
)

// Dependencies are the factories the command tree runs against.
type Dependencies struct {
	// Open builds the local application from a config file with a loaded menu.
	Open func(ctx context.Context, configPath string, logger *zerolog.Logger) (*app.App, error)
	// Remote builds an API client for the remote subcommands.
	Remote  func(server, apiKey, apiExtra string, timeout time.Duration) *client.Client
	Version string
}

var unknownCommandPattern = regexp.MustCompile(`unknown command "([^"]+)"`)

// DefaultDependencies opens the application the same way the API server does.
func DefaultDependencies(version string) Dependencies {
	return Dependencies{
		Open:    OpenApp,
		Remote:  client.New,
		Version: version,
	}
}

// OpenApp loads the config, wires the application and loads the menu.
func OpenApp(ctx context.Context, configPath string, logger *zerolog.Logger) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.Menu.Load(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("load menu: %w", err)
	}
	return a, nil
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context, args []string, deps Dependencies, stdout io.Writer, stderr io.Writer) int {
	cmd := NewRootCommand(deps)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var controlled *exitError
	if errors.As(err, &controlled) {
		return controlled.code
	}

	if matches := unknownCommandPattern.FindStringSubmatch(err.Error()); len(matches) > 1 {
		_, _ = fmt.Fprintf(stderr, "No such command '%s'\n", matches[1])
		return 2
	}

	if msg := err.Error(); msg != "" {
		_, _ = fmt.Fprintln(stderr, "Error:", msg)
	}
	return 1
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return ""
}

func newLogger(verbose bool, stderr io.Writer) *zerolog.Logger {
	if !verbose {
		l := zerolog.New(stderr).Level(zerolog.WarnLevel)
		return &l
	}
	return logging.NewConsole("debug")
}
