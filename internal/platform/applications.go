package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/3cpo-dev/c8ytasks/internal/config"
)

// Outcome is the expected result of a registration call. Conflicts are not
// errors; the caller decides how to report them.
type Outcome int

const (
	OK Outcome = iota
	AlreadyExists
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case AlreadyExists:
		return "already-exists"
	case NotFound:
		return "not-found"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Service manages the registration of a microservice.
type Service interface {
	Register(ctx context.Context, name string) (Outcome, error)
	Unregister(ctx context.Context, name string) (Outcome, error)
	Update(ctx context.Context, name string) (Outcome, error)
	BootstrapCredentials(ctx context.Context, name string) (config.Credentials, Outcome, error)
}

var _ Service = (*Client)(nil)

const applicationsPath = "/application/applications"

type application struct {
	ID            string   `json:"id,omitempty"`
	Name          string   `json:"name"`
	Key           string   `json:"key,omitempty"`
	Type          string   `json:"type,omitempty"`
	Availability  string   `json:"availability,omitempty"`
	RequiredRoles []string `json:"requiredRoles,omitempty"`
	Roles         []string `json:"roles,omitempty"`
}

type applicationList struct {
	Applications []application `json:"applications"`
}

type subscription struct {
	Application struct {
		Self string `json:"self"`
	} `json:"application"`
}

type bootstrapUser struct {
	Tenant   string `json:"tenant"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// lookup returns the application registered under name, if any.
func (c *Client) lookup(ctx context.Context, name string) (*application, error) {
	var list applicationList
	q := url.Values{"name": {name}}
	if err := c.doJSON(ctx, http.MethodGet, applicationsPath+"?"+q.Encode(), nil, &list); err != nil {
		return nil, fmt.Errorf("lookup application %s: %w", name, err)
	}
	for i := range list.Applications {
		if list.Applications[i].Name == name {
			return &list.Applications[i], nil
		}
	}
	return nil, nil
}

// Register creates a private microservice application named name and
// subscribes the admin's tenant to it.
func (c *Client) Register(ctx context.Context, name string) (Outcome, error) {
	existing, err := c.lookup(ctx, name)
	if err != nil {
		return OK, err
	}
	if existing != nil {
		return AlreadyExists, nil
	}
	m, err := LoadManifest(c.manifest)
	if err != nil {
		return OK, err
	}
	req := application{
		Name:          name,
		Key:           name + "-key",
		Type:          "MICROSERVICE",
		Availability:  "PRIVATE",
		RequiredRoles: m.RequiredRoles,
		Roles:         m.Roles,
	}
	var created application
	if err := c.doJSON(ctx, http.MethodPost, applicationsPath, req, &created); err != nil {
		return OK, fmt.Errorf("create application %s: %w", name, err)
	}
	var sub subscription
	sub.Application.Self = c.platform.BaseURL + applicationsPath + "/" + created.ID
	if err := c.doJSON(ctx, http.MethodPost, "/tenant/tenants/"+url.PathEscape(c.platform.Tenant)+"/applications", sub, nil); err != nil {
		return OK, fmt.Errorf("subscribe tenant %s to %s: %w", c.platform.Tenant, name, err)
	}
	log.Info().Str("name", name).Str("id", created.ID).Msg("microservice registered")
	return OK, nil
}

// Unregister deletes the application named name.
func (c *Client) Unregister(ctx context.Context, name string) (Outcome, error) {
	app, err := c.lookup(ctx, name)
	if err != nil {
		return OK, err
	}
	if app == nil {
		return NotFound, nil
	}
	if err := c.doJSON(ctx, http.MethodDelete, applicationsPath+"/"+url.PathEscape(app.ID), nil, nil); err != nil {
		return OK, fmt.Errorf("delete application %s: %w", name, err)
	}
	log.Info().Str("name", name).Str("id", app.ID).Msg("microservice deregistered")
	return OK, nil
}

// Update pushes the manifest roles to the application named name.
func (c *Client) Update(ctx context.Context, name string) (Outcome, error) {
	app, err := c.lookup(ctx, name)
	if err != nil {
		return OK, err
	}
	if app == nil {
		return NotFound, nil
	}
	m, err := LoadManifest(c.manifest)
	if err != nil {
		return OK, err
	}
	req := application{Name: name, RequiredRoles: m.RequiredRoles, Roles: m.Roles}
	if err := c.doJSON(ctx, http.MethodPut, applicationsPath+"/"+url.PathEscape(app.ID), req, nil); err != nil {
		return OK, fmt.Errorf("update application %s: %w", name, err)
	}
	log.Info().Str("name", name).Str("id", app.ID).Msg("microservice updated")
	return OK, nil
}

// BootstrapCredentials reads the bootstrap user of the application named name.
func (c *Client) BootstrapCredentials(ctx context.Context, name string) (config.Credentials, Outcome, error) {
	app, err := c.lookup(ctx, name)
	if err != nil {
		return config.Credentials{}, OK, err
	}
	if app == nil {
		return config.Credentials{}, NotFound, nil
	}
	var u bootstrapUser
	if err := c.doJSON(ctx, http.MethodGet, applicationsPath+"/"+url.PathEscape(app.ID)+"/bootstrapUser", nil, &u); err != nil {
		return config.Credentials{}, OK, fmt.Errorf("read bootstrap user of %s: %w", name, err)
	}
	return config.Credentials{
		BaseURL:  c.platform.BaseURL,
		Tenant:   u.Tenant,
		User:     u.Name,
		Password: u.Password,
	}, OK, nil
}
