package platform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/3cpo-dev/c8ytasks/internal/config"
)

// fakeTenant emulates the handful of endpoints the client uses.
type fakeTenant struct {
	mu      sync.Mutex
	apps    map[string]application
	nextID  int
	calls   map[string]int
	subs    []string
	lastPut application
	lastNew application
}

func newFakeTenant() *fakeTenant {
	return &fakeTenant{apps: map[string]application{}, nextID: 100, calls: map[string]int{}}
}

func (f *fakeTenant) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		user, pass, ok := r.BasicAuth()
		if !ok || user != "t1/admin" || pass != "secret" {
			http.Error(w, `{"error":"security/Unauthorized"}`, http.StatusUnauthorized)
			return
		}
		f.calls[r.Method]++
		switch {
		case r.Method == http.MethodGet && r.URL.Path == applicationsPath:
			var list applicationList
			for _, a := range f.apps {
				if a.Name == r.URL.Query().Get("name") {
					list.Applications = append(list.Applications, a)
				}
			}
			_ = json.NewEncoder(w).Encode(list)
		case r.Method == http.MethodPost && r.URL.Path == applicationsPath:
			var a application
			if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
				t.Errorf("decode create: %v", err)
			}
			f.nextID++
			a.ID = strconv.Itoa(f.nextID)
			f.apps[a.ID] = a
			f.lastNew = a
			_ = json.NewEncoder(w).Encode(a)
		case r.Method == http.MethodPost && r.URL.Path == "/tenant/tenants/t1/applications":
			var s subscription
			_ = json.NewDecoder(r.Body).Decode(&s)
			f.subs = append(f.subs, s.Application.Self)
			w.WriteHeader(http.StatusCreated)
		case strings.HasPrefix(r.URL.Path, applicationsPath+"/"):
			rest := strings.TrimPrefix(r.URL.Path, applicationsPath+"/")
			id, sub, _ := strings.Cut(rest, "/")
			a, ok := f.apps[id]
			if !ok {
				http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
				return
			}
			switch {
			case r.Method == http.MethodGet && sub == "bootstrapUser":
				_ = json.NewEncoder(w).Encode(bootstrapUser{Tenant: "t1", Name: "servicebootstrap_" + a.Name, Password: "pw-" + a.Name})
			case r.Method == http.MethodPut:
				_ = json.NewDecoder(r.Body).Decode(&f.lastPut)
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("{}"))
			case r.Method == http.MethodDelete:
				delete(f.apps, id)
				w.WriteHeader(http.StatusNoContent)
			default:
				http.Error(w, "unexpected", http.StatusMethodNotAllowed)
			}
		default:
			http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusBadRequest)
		}
	})
}

func newTestClient(t *testing.T, f *fakeTenant, manifest string) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	p := config.Platform{BaseURL: srv.URL, Tenant: "t1", User: "admin", Password: "secret"}
	return New(p, Options{Manifest: manifest}), srv
}

func TestRegisterCreatesAndSubscribes(t *testing.T) {
	manifest := filepath.Join(t.TempDir(), "cumulocity.json")
	if err := os.WriteFile(manifest, []byte(`{"requiredRoles":["ROLE_INVENTORY_READ"],"roles":["ROLE_X"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	f := newFakeTenant()
	c, srv := newTestClient(t, f, manifest)

	out, err := c.Register(context.Background(), "my-ms")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if out != OK {
		t.Fatalf("expected OK, got %v", out)
	}
	if f.lastNew.Key != "my-ms-key" || f.lastNew.Type != "MICROSERVICE" || f.lastNew.Availability != "PRIVATE" {
		t.Fatalf("unexpected create payload %+v", f.lastNew)
	}
	if len(f.lastNew.RequiredRoles) != 1 || f.lastNew.RequiredRoles[0] != "ROLE_INVENTORY_READ" {
		t.Fatalf("manifest roles not sent: %+v", f.lastNew)
	}
	if len(f.subs) != 1 || f.subs[0] != srv.URL+"/application/applications/101" {
		t.Fatalf("unexpected subscriptions %v", f.subs)
	}
}

func TestRegisterExistingIsAlreadyExists(t *testing.T) {
	f := newFakeTenant()
	f.apps["7"] = application{ID: "7", Name: "my-ms"}
	c, _ := newTestClient(t, f, "")

	out, err := c.Register(context.Background(), "my-ms")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if out != AlreadyExists {
		t.Fatalf("expected AlreadyExists, got %v", out)
	}
	if f.calls[http.MethodPost] != 0 {
		t.Fatalf("no POST expected, got %d", f.calls[http.MethodPost])
	}
}

func TestUnregister(t *testing.T) {
	f := newFakeTenant()
	f.apps["7"] = application{ID: "7", Name: "my-ms"}
	c, _ := newTestClient(t, f, "")

	out, err := c.Unregister(context.Background(), "other")
	if err != nil || out != NotFound {
		t.Fatalf("expected NotFound, got %v %v", out, err)
	}
	if f.calls[http.MethodDelete] != 0 {
		t.Fatalf("no DELETE expected for unknown name")
	}

	out, err = c.Unregister(context.Background(), "my-ms")
	if err != nil || out != OK {
		t.Fatalf("expected OK, got %v %v", out, err)
	}
	if _, ok := f.apps["7"]; ok {
		t.Fatalf("application not deleted")
	}
}

func TestUpdate(t *testing.T) {
	manifest := filepath.Join(t.TempDir(), "cumulocity.json")
	if err := os.WriteFile(manifest, []byte(`{"requiredRoles":["ROLE_A"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	f := newFakeTenant()
	f.apps["7"] = application{ID: "7", Name: "my-ms"}
	c, _ := newTestClient(t, f, manifest)

	if out, err := c.Update(context.Background(), "ghost"); err != nil || out != NotFound {
		t.Fatalf("expected NotFound, got %v %v", out, err)
	}
	if out, err := c.Update(context.Background(), "my-ms"); err != nil || out != OK {
		t.Fatalf("expected OK, got %v %v", out, err)
	}
	if len(f.lastPut.RequiredRoles) != 1 || f.lastPut.RequiredRoles[0] != "ROLE_A" {
		t.Fatalf("unexpected update payload %+v", f.lastPut)
	}
}

func TestBootstrapCredentials(t *testing.T) {
	f := newFakeTenant()
	f.apps["7"] = application{ID: "7", Name: "my-ms"}
	c, srv := newTestClient(t, f, "")

	creds, out, err := c.BootstrapCredentials(context.Background(), "my-ms")
	if err != nil || out != OK {
		t.Fatalf("bootstrap: %v %v", out, err)
	}
	want := config.Credentials{BaseURL: srv.URL, Tenant: "t1", User: "servicebootstrap_my-ms", Password: "pw-my-ms"}
	if creds != want {
		t.Fatalf("got %+v, want %+v", creds, want)
	}

	if _, out, err := c.BootstrapCredentials(context.Background(), "ghost"); err != nil || out != NotFound {
		t.Fatalf("expected NotFound, got %v %v", out, err)
	}
}

func TestAPIErrorSurfaces(t *testing.T) {
	f := newFakeTenant()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	c := New(config.Platform{BaseURL: srv.URL, Tenant: "t1", User: "admin", Password: "wrong"}, Options{})

	_, err := c.Register(context.Background(), "my-ms")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", apiErr.Status)
	}
}

func TestLoadManifestMissingFileIsEmpty(t *testing.T) {
	m, err := LoadManifest(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(m.Roles) != 0 || len(m.RequiredRoles) != 0 {
		t.Fatalf("expected empty manifest, got %+v", m)
	}
}

func TestOutcomeString(t *testing.T) {
	if OK.String() != "ok" || AlreadyExists.String() != "already-exists" || NotFound.String() != "not-found" {
		t.Fatalf("unexpected outcome names")
	}
}
