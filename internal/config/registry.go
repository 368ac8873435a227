package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Project is one upstream compute-distribution project the gateway fans
// devices out to. Immutable after startup.
type Project struct {
	// Name is the human-readable display name.
	Name string
	// SchedulerURL is the upstream scheduler endpoint traffic is relayed to.
	SchedulerURL string
	// URLSignature proves the gateway's proxy URL for this project to the
	// device. Pre-shared, read from <signature_dir>/<id>.pub.
	URLSignature string
	// Authenticator is the per-project credential handed to devices.
	Authenticator string
}

// Registry is the process-wide set of registered projects plus the
// gateway's own identity material. Read-only at request time.
type Registry struct {
	BaseURL            string
	AccountManagerName string
	SigningKey         string
	WeakAuth           string
	Projects           map[string]Project
}

// BuildRegistry assembles the registry from cfg, reading the signing key
// and one signature file per configured project.
func BuildRegistry(cfg *Config) (*Registry, error) {
	signingKey, err := os.ReadFile(cfg.SigningKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading signing key: %w", err)
	}

	projects := make(map[string]Project, len(cfg.Projects))
	for id, entry := range cfg.Projects {
		sig, err := os.ReadFile(filepath.Join(cfg.SignatureDir, id+".pub"))
		if err != nil {
			return nil, fmt.Errorf("reading url signature for %q: %w", id, err)
		}
		projects[id] = Project{
			Name:          entry.Name,
			SchedulerURL:  entry.SchedulerURL,
			URLSignature:  string(sig),
			Authenticator: entry.Authenticator,
		}
	}

	return &Registry{
		BaseURL:            strings.TrimRight(cfg.BaseURL, "/"),
		AccountManagerName: cfg.AccountManagerName,
		SigningKey:         string(signingKey),
		WeakAuth:           cfg.WeakAuth,
		Projects:           projects,
	}, nil
}

// Lookup resolves a project id.
func (r *Registry) Lookup(id string) (Project, bool) {
	p, ok := r.Projects[id]
	return p, ok
}

// ProxyURL is the externally visible root the device attaches to for the
// given project.
func (r *Registry) ProxyURL(id string) string {
	return fmt.Sprintf("%s/proxy/%s/", r.BaseURL, id)
}

// SchedulerProxyURL is the gateway-side scheduler endpoint advertised on
// the project's landing page.
func (r *Registry) SchedulerProxyURL(id string) string {
	return fmt.Sprintf("%s/proxy/%s/scheduler", r.BaseURL, id)
}
