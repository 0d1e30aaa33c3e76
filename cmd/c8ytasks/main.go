package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/3cpo-dev/c8ytasks/internal/config"
	"github.com/3cpo-dev/c8ytasks/internal/platform"
	"github.com/3cpo-dev/c8ytasks/internal/shell"
	"github.com/3cpo-dev/c8ytasks/internal/tasks"
	"github.com/3cpo-dev/c8ytasks/internal/version"
)

var (
	buildVersion = "dev"
	commit       = ""
	buildDate    = ""
)

// Create the root command
func newRootCmd(d *tasks.Dispatcher) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "c8ytasks",
		Short:   "Developer tasks for the Cumulocity Python API",
		Long:    "c8ytasks resolves versions, lints and builds the sources, and manages the registration of the sample microservice at Cumulocity.",
		Version: fmt.Sprintf("%s (%s) %s", buildVersion, commit, buildDate),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("log", "l", "warn", "Set log level. Available: trace, debug, info, warn, error, fatal")
	cmd.PersistentFlags().String("config", config.DefaultPath, "settings file")
	cmd.PersistentFlags().String("env-file", ".env", "dotenv file with C8Y_BASEURL, C8Y_TENANT, C8Y_USER and C8Y_PASSWORD")
	cmd.PersistentFlags().String("proxy", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	cmd.PersistentFlags().Bool("dry-run", false, "print host commands instead of running them")

	cmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		levelStr, _ := c.Flags().GetString("log")
		setLevel(levelStr)
		if proxy, _ := c.Flags().GetString("proxy"); proxy != "" {
			_ = os.Setenv("HTTP_PROXY", proxy)
			_ = os.Setenv("HTTPS_PROXY", proxy)
		}
		return configure(c, d)
	}

	for _, desc := range d.Registry().All() {
		cmd.AddCommand(newTaskCmd(d, desc))
	}
	return cmd
}

func setLevel(levelStr string) {
	switch levelStr {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}

// configure loads the settings and wires the collaborators into d.
func configure(c *cobra.Command, d *tasks.Dispatcher) error {
	cfgPath, _ := c.Flags().GetString("config")
	envFile, _ := c.Flags().GetString("env-file")
	dryRun, _ := c.Flags().GetBool("dry-run")

	s, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	d.Settings = s
	d.SettingsPath = cfgPath
	if d.Shell == nil {
		d.Shell = shell.NewHost(dryRun)
	}
	if d.Version == nil {
		d.Version = version.NewResolver(d.Shell)
	}
	if d.Connect == nil {
		d.Connect = func(ctx context.Context) (platform.Service, error) {
			p, err := config.LoadPlatform(envFile)
			if err != nil {
				return nil, err
			}
			log.Debug().Str("base_url", p.BaseURL).Str("tenant", p.Tenant).Msg("platform connection")
			return platform.New(p, platform.Options{
				Timeout:           time.Duration(s.Platform.TimeoutSeconds) * time.Second,
				RequestsPerSecond: s.Platform.RequestsPerSecond,
				Manifest:          s.Microservice.Manifest,
			}), nil
		}
	}
	return nil
}

// Setup the logger
func setupLogger() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
}

// exitCode maps an error returned by a task to a process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *tasks.ExitError
	if errors.As(err, &ee) && ee.Code != 0 {
		return ee.Code
	}
	return 1
}

// Main entry point
func main() {
	setupLogger()
	d := &tasks.Dispatcher{Settings: config.Defaults(), Stdout: os.Stdout}
	root := newRootCmd(d)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	root.SetContext(ctx)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(exitCode(err))
	}
}
