// Package version derives a human-readable version string from git metadata.
//
// A clean checkout of a tagged commit resolves to the bare tag version
// ("1.4.2"). Commits after the tag add a distance suffix ("1.4.2-c07") and
// uncommitted changes add a minute-precision timestamp ("1.4.2-c07-r2310151342").
package version

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/3cpo-dev/c8ytasks/internal/shell"
)

// ErrNoVersion is returned when no matching tag is reachable from HEAD.
var ErrNoVersion = errors.New("no version metadata")

const (
	distanceMarker = "-c"
	dirtyMarker    = "-r"
	// YYMMDDhhmm
	dirtyLayout = "0601021504"
)

// Descriptor is the version-control state a version string is derived from.
type Descriptor struct {
	Base     string
	Distance int
	Dirty    bool
}

// Format renders d. now is only consulted when d is dirty.
func Format(d Descriptor, now time.Time) string {
	var b strings.Builder
	b.WriteString(d.Base)
	if d.Distance > 0 {
		fmt.Fprintf(&b, "%s%02d", distanceMarker, d.Distance)
	}
	if d.Dirty {
		b.WriteString(dirtyMarker)
		b.WriteString(now.Format(dirtyLayout))
	}
	return b.String()
}

// Parse reads the output of `git describe --tags --long --dirty`, which has the
// shape <tag>-<distance>-g<sha>[-dirty]. Tags may contain dashes themselves.
func Parse(describe string) (Descriptor, error) {
	s := strings.TrimSpace(describe)
	if s == "" {
		return Descriptor{}, ErrNoVersion
	}
	var d Descriptor
	if rest, ok := strings.CutSuffix(s, "-dirty"); ok {
		d.Dirty = true
		s = rest
	}
	i := strings.LastIndex(s, "-g")
	if i <= 0 {
		return Descriptor{}, fmt.Errorf("%w: unexpected describe output %q", ErrNoVersion, describe)
	}
	s = s[:i]
	j := strings.LastIndex(s, "-")
	if j <= 0 {
		return Descriptor{}, fmt.Errorf("%w: unexpected describe output %q", ErrNoVersion, describe)
	}
	n, err := strconv.Atoi(s[j+1:])
	if err != nil || n < 0 {
		return Descriptor{}, fmt.Errorf("%w: bad distance in %q", ErrNoVersion, describe)
	}
	d.Distance = n
	d.Base = strings.TrimPrefix(s[:j], "v")
	if d.Base == "" {
		return Descriptor{}, fmt.Errorf("%w: empty tag in %q", ErrNoVersion, describe)
	}
	return d, nil
}

// Describer reports the raw describe string for the current checkout.
type Describer interface {
	Describe(ctx context.Context) (string, error)
}

// Git asks git for the nearest semantic-version tag.
type Git struct {
	Runner shell.Runner
	// Dir is the repository directory. Empty means the working directory.
	Dir string
}

// Describe runs git describe restricted to x.y.z tags, with or without a
// leading "v".
func (g *Git) Describe(ctx context.Context) (string, error) {
	args := []string{}
	if g.Dir != "" {
		args = append(args, "-C", g.Dir)
	}
	args = append(args, "describe", "--tags", "--long", "--dirty",
		"--match", "[0-9]*.[0-9]*.[0-9]*",
		"--match", "v[0-9]*.[0-9]*.[0-9]*")
	out, err := g.Runner.Output(ctx, "git", args...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoVersion, err)
	}
	return out, nil
}

// Resolver turns the checkout state into a version string.
type Resolver struct {
	Describer Describer
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewResolver returns a Resolver backed by git in the working directory.
func NewResolver(r shell.Runner) *Resolver {
	return &Resolver{Describer: &Git{Runner: r}}
}

// Resolve returns the formatted version of the current checkout.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	raw, err := r.Describer.Describe(ctx)
	if err != nil {
		return "", err
	}
	d, err := Parse(raw)
	if err != nil {
		return "", err
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return Format(d, now()), nil
}
