package config

import (
	"strings"
)

// TokenEnvVars lists the environment variables consulted for a bearer token, in order.
var TokenEnvVars = []string{"GH_TOKEN", "GITHUB_TOKEN"}

// CredentialKind identifies how requests authenticate against GitHub.
type CredentialKind string

const (
	// CredentialToken authenticates with a static bearer token.
	CredentialToken CredentialKind = "token"
	// CredentialApp authenticates as a GitHub App installation.
	CredentialApp CredentialKind = "app"
)

// Credential is the resolved GitHub credential injected into HTTP clients.
type Credential struct {
	Kind  CredentialKind
	Token string
	// Source names the environment variable the token came from.
	Source string
	App    GitHubAppConfig
}

// MissingCredentialError reports that no GitHub credential could be resolved.
type MissingCredentialError struct {
	Checked []string
}

func (e *MissingCredentialError) Error() string {
	return "github credential not found: set one of " + strings.Join(e.Checked, ", ") + " or configure github.app"
}

// ResolveCredential picks the GitHub App configuration when present, else the
// first non-empty token variable. lookupEnv is usually os.LookupEnv.
func ResolveCredential(cfg *Config, lookupEnv func(string) (string, bool)) (Credential, error) {
	if cfg != nil && cfg.GitHub.App != nil {
		return Credential{Kind: CredentialApp, App: *cfg.GitHub.App}, nil
	}

	if lookupEnv != nil {
		for _, name := range TokenEnvVars {
			value, ok := lookupEnv(name)
			if !ok {
				continue
			}
			if token := strings.TrimSpace(value); token != "" {
				return Credential{Kind: CredentialToken, Token: token, Source: name}, nil
			}
		}
	}

	return Credential{}, &MissingCredentialError{Checked: append([]string(nil), TokenEnvVars...)}
}
