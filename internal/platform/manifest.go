package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Manifest is the subset of cumulocity.json the registration needs.
type Manifest struct {
	RequiredRoles []string `json:"requiredRoles"`
	Roles         []string `json:"roles"`
}

// LoadManifest reads the microservice manifest. A missing file is an empty
// manifest.
func LoadManifest(path string) (Manifest, error) {
	var m Manifest
	if path == "" {
		return m, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return m, nil
		}
		return m, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m, nil
}
