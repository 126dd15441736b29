package web

import (
	"context"
	"strings"

	"matrixconsole/internal/compose"
	"matrixconsole/internal/envfile"
	"matrixconsole/internal/homeserver"
	logx "matrixconsole/pkg/logx"
)

const (
	envRegistrationKey = "ENABLE_REGISTRATION"
	envFederationKey   = "ENABLE_FEDERATION"
)

// settings bridges the desired state in the env file and the state
// synapse actually runs with in homeserver.yaml.
type settings struct {
	envPath        string
	homeserverPath string
	compose        Compose
	log            logx.Logger
}

type settingsView struct {
	EnableRegistration bool `json:"enable_registration"`
	EnableFederation   bool `json:"enable_federation"`

	// Values read back out of homeserver.yaml; nil when the file is
	// unreadable or silent on the key.
	ActualRegistration      *bool `json:"actual_registration"`
	ActualFederationEnabled *bool `json:"actual_federation_enabled"`
}

type settingsUpdate struct {
	EnableRegistration *bool `json:"enable_registration"`
	EnableFederation   *bool `json:"enable_federation"`
}

func (s *settings) read() (settingsView, error) {
	vars, err := envfile.Read(s.envPath)
	if err != nil {
		return settingsView{}, err
	}
	view := settingsView{
		EnableRegistration: envBool(vars, envRegistrationKey, true),
		EnableFederation:   envBool(vars, envFederationKey, false),
	}

	hs, err := homeserver.Load(s.homeserverPath)
	if err != nil {
		s.log.Warn("homeserver config unreadable", logx.Err(err))
		return view, nil
	}
	if v, ok := hs.Value("enable_registration").(bool); ok {
		view.ActualRegistration = &v
	}
	if _, ok := hs.Lookup("federation_domain_whitelist"); ok {
		allows := hs.Settings().FederationAllowAll
		view.ActualFederationEnabled = &allows
	}
	return view, nil
}

func (s *settings) apply(u settingsUpdate) error {
	if u.EnableRegistration != nil {
		if err := envfile.Set(s.envPath, envRegistrationKey, boolValue(*u.EnableRegistration)); err != nil {
			return err
		}
		s.log.Info("registration setting updated", logx.Bool("enabled", *u.EnableRegistration))
	}
	if u.EnableFederation != nil {
		if err := envfile.Set(s.envPath, envFederationKey, boolValue(*u.EnableFederation)); err != nil {
			return err
		}
		s.log.Info("federation setting updated", logx.Bool("enabled", *u.EnableFederation))
	}
	return nil
}

func (s *settings) restartSynapse(ctx context.Context) (compose.Result, error) {
	s.log.Info("restarting synapse to apply settings")
	return s.compose.Action(ctx, "restart", "synapse")
}

func envBool(vars map[string]string, key string, def bool) bool {
	v, ok := vars[key]
	if !ok {
		return def
	}
	return strings.EqualFold(strings.TrimSpace(v), "true")
}

func boolValue(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
