// Package homeserver reads selected settings out of a Synapse
// homeserver.yaml. The file is never rewritten from here; structural
// edits stay with the operator.
package homeserver

import (
	"fmt"
	"os"

	yaml "go.yaml.in/yaml/v3"
)

// ServerSettings is the read-only view the console exposes.
type ServerSettings struct {
	RegistrationEnabled bool     `json:"registration_enabled"`
	FederationAllowAll  bool     `json:"federation_allow_all"`
	FederationWhitelist []string `json:"federation_whitelist"`
}

type File struct {
	path string
	doc  map[string]any
}

// Load parses the YAML document at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read homeserver config: %w", err)
	}
	doc := map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse homeserver config: %w", err)
	}
	return &File{path: path, doc: doc}, nil
}

// Value returns the raw top-level value for key, nil when absent.
func (f *File) Value(key string) any {
	return f.doc[key]
}

// Lookup returns the raw top-level value along with whether the key is
// present at all. A key set to null reports (nil, true), distinct from
// an absent key; federation_domain_whitelist relies on that difference.
func (f *File) Lookup(key string) (any, bool) {
	v, ok := f.doc[key]
	return v, ok
}

// Settings extracts the console's server settings view.
//
// federation_domain_whitelist is a tristate in Synapse: absent or null
// means "federate with everyone", a list (even empty) restricts
// federation to exactly its members.
func (f *File) Settings() ServerSettings {
	s := ServerSettings{
		FederationAllowAll:  true,
		FederationWhitelist: []string{},
	}
	if v, ok := f.doc["enable_registration"].(bool); ok {
		s.RegistrationEnabled = v
	}
	if raw, ok := f.doc["federation_domain_whitelist"]; ok && raw != nil {
		s.FederationAllowAll = false
		if list, ok := raw.([]any); ok {
			for _, item := range list {
				if d, ok := item.(string); ok {
					s.FederationWhitelist = append(s.FederationWhitelist, d)
				}
			}
		}
	}
	return s
}
