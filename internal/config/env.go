package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// ErrMissingPlatformConfig is returned when platform credentials are incomplete.
var ErrMissingPlatformConfig = errors.New("missing platform configuration")

// Keys of the admin credentials used to talk to the platform.
const (
	EnvBaseURL  = "C8Y_BASEURL"
	EnvTenant   = "C8Y_TENANT"
	EnvUser     = "C8Y_USER"
	EnvPassword = "C8Y_PASSWORD"
)

// Keys written to the microservice env file, in file order.
var bootstrapKeys = []string{
	"C8Y_BASEURL",
	"C8Y_BOOTSTRAP_TENANT",
	"C8Y_BOOTSTRAP_USER",
	"C8Y_BOOTSTRAP_PASSWORD",
}

// Platform identifies a tenant admin on the platform.
type Platform struct {
	BaseURL  string
	Tenant   string
	User     string
	Password string
}

// Credentials are the bootstrap credentials of a registered microservice.
type Credentials struct {
	BaseURL  string
	Tenant   string
	User     string
	Password string
}

// LoadPlatform resolves the platform connection. Process environment wins;
// the given dotenv files fill the gaps. Missing files are ignored.
func LoadPlatform(envFiles ...string) (Platform, error) {
	vals := map[string]string{}
	for _, f := range envFiles {
		if f == "" {
			continue
		}
		m, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Platform{}, fmt.Errorf("read %s: %w", f, err)
		}
		for k, v := range m {
			if _, ok := vals[k]; !ok {
				vals[k] = v
			}
		}
	}
	get := func(k string) string {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
		return strings.TrimSpace(vals[k])
	}
	p := Platform{
		BaseURL:  strings.TrimRight(get(EnvBaseURL), "/"),
		Tenant:   get(EnvTenant),
		User:     get(EnvUser),
		Password: get(EnvPassword),
	}
	var missing []string
	for k, v := range map[string]string{EnvBaseURL: p.BaseURL, EnvTenant: p.Tenant, EnvUser: p.User, EnvPassword: p.Password} {
		if v == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return p, fmt.Errorf("%w: %s", ErrMissingPlatformConfig, strings.Join(missing, ", "))
	}
	return p, nil
}

// WriteEnvFile replaces path with the four bootstrap KEY=VALUE lines.
func WriteEnvFile(path string, c Credentials) error {
	vals := []string{c.BaseURL, c.Tenant, c.User, c.Password}
	var b strings.Builder
	for i, k := range bootstrapKeys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(vals[i])
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
