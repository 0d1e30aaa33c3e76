// Package tasks implements the developer tasks of the repository: version
// display, linting, building and the lifecycle of the microservice
// registration at Cumulocity.
//
// Every task is a thin wrapper around either a host command or a single call
// to the platform. Expected platform outcomes (already registered, not found)
// are reported as advisories on stdout; everything else is returned.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/3cpo-dev/c8ytasks/internal/config"
	"github.com/3cpo-dev/c8ytasks/internal/platform"
	"github.com/3cpo-dev/c8ytasks/internal/shell"
)

var (
	// ErrUnknownScope is returned by Lint for scopes not in the settings.
	ErrUnknownScope = errors.New("unknown lint scope")
	// ErrNotRegistered is returned when credentials are requested for an
	// unknown microservice.
	ErrNotRegistered = errors.New("microservice not registered")
)

// ExitError asks the process to terminate with Code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// VersionResolver yields the version of the current checkout.
type VersionResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Dispatcher carries what the tasks need. Platform access is created lazily
// so tasks that never talk to Cumulocity do not require credentials.
type Dispatcher struct {
	Settings     config.Settings
	SettingsPath string
	Shell        shell.Runner
	Version      VersionResolver
	Connect      func(ctx context.Context) (platform.Service, error)
	Stdout       io.Writer
}

func (d *Dispatcher) out() io.Writer {
	if d.Stdout == nil {
		return os.Stdout
	}
	return d.Stdout
}

func (d *Dispatcher) service(ctx context.Context) (platform.Service, error) {
	if d.Connect == nil {
		return nil, errors.New("no platform connection configured")
	}
	return d.Connect(ctx)
}

// run executes a host command and converts a failure into the child's exit
// status.
func (d *Dispatcher) run(ctx context.Context, cmd string, args ...string) error {
	if err := d.Shell.Run(ctx, cmd, args...); err != nil {
		return &ExitError{Code: shell.ExitStatus(err), Err: fmt.Errorf("%s: %w", shell.Join(cmd, args...), err)}
	}
	return nil
}

// ShowVersion prints the version derived from the last git tag.
func (d *Dispatcher) ShowVersion(ctx context.Context) error {
	v, err := d.Version.Resolve(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(d.out(), v)
	return nil
}

// LintPaths resolves scope to the paths handed to the lint tool.
func (d *Dispatcher) LintPaths(scope string) ([]string, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" || scope == "all" {
		return append([]string(nil), d.Settings.Lint.Scopes...), nil
	}
	for _, s := range d.Settings.Lint.Scopes {
		if s == scope {
			return []string{scope}, nil
		}
	}
	return nil, fmt.Errorf("%w %q: use one of %s or all", ErrUnknownScope, scope, strings.Join(d.Settings.Lint.Scopes, ", "))
}

// Lint runs the lint tool over scope.
func (d *Dispatcher) Lint(ctx context.Context, scope string) error {
	paths, err := d.LintPaths(scope)
	if err != nil {
		return err
	}
	return d.run(ctx, d.Settings.Lint.Tool, paths...)
}

// Build produces the distributable package.
func (d *Dispatcher) Build(ctx context.Context) error {
	cmd := d.Settings.Build.Command
	if len(cmd) == 0 {
		return errors.New("no build command configured")
	}
	return d.run(ctx, cmd[0], cmd[1:]...)
}

// BuildMS builds the deployable microservice image. An empty version is
// derived from git.
func (d *Dispatcher) BuildMS(ctx context.Context, name, version string) error {
	if version == "" {
		v, err := d.Version.Resolve(ctx)
		if err != nil {
			return err
		}
		version = v
	}
	log.Debug().Str("name", name).Str("version", version).Msg("building microservice")
	return d.run(ctx, d.Settings.Microservice.BuildScript, name, version)
}

// RegisterMS registers name at Cumulocity.
func (d *Dispatcher) RegisterMS(ctx context.Context, name string) error {
	svc, err := d.service(ctx)
	if err != nil {
		return err
	}
	out, err := svc.Register(ctx, name)
	if err != nil {
		return err
	}
	if out == platform.AlreadyExists {
		fmt.Fprintf(d.out(), "Microservice '%s' appears to be already registered at Cumulocity.\n", name)
	}
	return nil
}

// DeregisterMS removes the registration of name.
func (d *Dispatcher) DeregisterMS(ctx context.Context, name string) error {
	svc, err := d.service(ctx)
	if err != nil {
		return err
	}
	out, err := svc.Unregister(ctx, name)
	if err != nil {
		return err
	}
	if out == platform.NotFound {
		d.notRegistered(name)
	}
	return nil
}

// UpdateMS updates the registration of name from the manifest.
func (d *Dispatcher) UpdateMS(ctx context.Context, name string) error {
	svc, err := d.service(ctx)
	if err != nil {
		return err
	}
	out, err := svc.Update(ctx, name)
	if err != nil {
		return err
	}
	if out == platform.NotFound {
		d.notRegistered(name)
	}
	return nil
}

func (d *Dispatcher) notRegistered(name string) {
	fmt.Fprintf(d.out(), "Microservice '%s' appears not to be registered at Cumulocity.\n", name)
}

func (d *Dispatcher) credentials(ctx context.Context, name string) (config.Credentials, error) {
	svc, err := d.service(ctx)
	if err != nil {
		return config.Credentials{}, err
	}
	creds, out, err := svc.BootstrapCredentials(ctx, name)
	if err != nil {
		return config.Credentials{}, err
	}
	if out == platform.NotFound {
		return config.Credentials{}, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return creds, nil
}

// GetCredentials prints the bootstrap credentials of name.
func (d *Dispatcher) GetCredentials(ctx context.Context, name string) error {
	c, err := d.credentials(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.out(), "Tenant:    %s\nUsername:  %s\nPassword:  %s\n", c.Tenant, c.User, c.Password)
	return nil
}

// CreateEnv writes the bootstrap credentials of name to the env file.
func (d *Dispatcher) CreateEnv(ctx context.Context, name string) error {
	c, err := d.credentials(ctx, name)
	if err != nil {
		return err
	}
	if err := config.WriteEnvFile(d.Settings.EnvFile, c); err != nil {
		return err
	}
	log.Info().Str("file", d.Settings.EnvFile).Str("name", name).Msg("env file written")
	return nil
}

// Init stores name as the default microservice name. Invalid names exit with
// status 2 and leave the settings untouched.
func (d *Dispatcher) Init(_ context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	if err := config.SaveName(d.SettingsPath, name); err != nil {
		return err
	}
	d.Settings.Microservice.Name = name
	fmt.Fprintf(d.out(), "Default microservice name set to '%s'.\n", name)
	return nil
}

// Registry returns the task table bound to d.
func (d *Dispatcher) Registry() *Registry {
	r := NewRegistry()
	nameParam := Param{
		Name:    "name",
		Default: d.Settings.Microservice.Name,
		Help:    "Microservice name. Defaults to microservice.name from the settings file.",
	}

	r.Register(Descriptor{
		Name:    "show-version",
		Aliases: []string{"show_version"},
		Short:   "Print the module version",
		Long: "Print the module version.\n\nThe version string is inferred from the last git tag. " +
			"A tagged HEAD resolves to a clean x.y.z version string.",
		Run: func(ctx context.Context, _ Args) error { return d.ShowVersion(ctx) },
	})
	r.Register(Descriptor{
		Name:  "lint",
		Short: "Run the linter",
		Params: []Param{{
			Name:    "scope",
			Default: "all",
			Help:    fmt.Sprintf("Which source directory to check, one of %s or 'all'.", strings.Join(d.Settings.Lint.Scopes, ", ")),
		}},
		Run: func(ctx context.Context, a Args) error { return d.Lint(ctx, a["scope"]) },
	})
	r.Register(Descriptor{
		Name:  "build",
		Short: "Build the distributable package",
		Run:   func(ctx context.Context, _ Args) error { return d.Build(ctx) },
	})
	r.Register(Descriptor{
		Name:    "build-ms",
		Aliases: []string{"build_ms"},
		Short:   "Build a Cumulocity microservice binary for upload",
		Params: []Param{
			nameParam,
			{Name: "version", Help: "Microservice version. Defaults to the version derived from git."},
		},
		Run: func(ctx context.Context, a Args) error { return d.BuildMS(ctx, a["name"], a["version"]) },
	})
	r.Register(Descriptor{
		Name:    "register-ms",
		Aliases: []string{"register_ms"},
		Short:   "Register a microservice at Cumulocity",
		Params:  []Param{nameParam},
		Run:     func(ctx context.Context, a Args) error { return d.RegisterMS(ctx, a["name"]) },
	})
	r.Register(Descriptor{
		Name:    "deregister-ms",
		Aliases: []string{"deregister_ms"},
		Short:   "Deregister a microservice from Cumulocity",
		Params:  []Param{nameParam},
		Run:     func(ctx context.Context, a Args) error { return d.DeregisterMS(ctx, a["name"]) },
	})
	r.Register(Descriptor{
		Name:    "update-ms",
		Aliases: []string{"update_ms"},
		Short:   "Update a microservice at Cumulocity",
		Params:  []Param{nameParam},
		Run:     func(ctx context.Context, a Args) error { return d.UpdateMS(ctx, a["name"]) },
	})
	r.Register(Descriptor{
		Name:    "get-credentials",
		Aliases: []string{"get_credentials"},
		Short:   "Read and print credentials of a registered microservice",
		Params:  []Param{nameParam},
		Run:     func(ctx context.Context, a Args) error { return d.GetCredentials(ctx, a["name"]) },
	})
	r.Register(Descriptor{
		Name:    "create-env",
		Aliases: []string{"create_env"},
		Short:   fmt.Sprintf("Write the credentials of a registered microservice to %s", d.Settings.EnvFile),
		Params:  []Param{nameParam},
		Run:     func(ctx context.Context, a Args) error { return d.CreateEnv(ctx, a["name"]) },
	})
	r.Register(Descriptor{
		Name:       "init",
		Short:      "Set the default microservice name",
		Long:       "Set the default microservice name used by all other tasks.\n\nNames start with a letter and contain only letters, digits and hyphens.",
		Params:     []Param{{Name: "name", Help: "New default microservice name."}},
		Positional: "name",
		Run:        func(ctx context.Context, a Args) error { return d.Init(ctx, a["name"]) },
	})
	return r
}
