package forge

import (
	"fmt"

	"github.com/ssharma1011/ragforge/internal/forge/gitea"
	"github.com/ssharma1011/ragforge/internal/forge/github"
)

// Config selects and configures a single Client from a deployment's
// configuration record.
type Config struct {
	Provider Provider

	// GitHubRemoteURL is parsed for owner/repo; GitHub auth is delegated to
	// the host's "gh" CLI session.
	GitHubRemoteURL string

	GiteaBaseURL string
	GiteaToken   string
	GiteaOwner   string
	GiteaRepo    string
}

// NewClient builds the Client for cfg.Provider.
func NewClient(cfg Config) (Client, error) {
	switch cfg.Provider {
	case ProviderGitHub:
		return github.NewClientFromRemote(cfg.GitHubRemoteURL)
	case ProviderGitea:
		if cfg.GiteaBaseURL == "" || cfg.GiteaOwner == "" || cfg.GiteaRepo == "" {
			return nil, fmt.Errorf("gitea forge config missing baseURL/owner/repo")
		}
		return gitea.NewClient(cfg.GiteaBaseURL, cfg.GiteaToken, cfg.GiteaOwner, cfg.GiteaRepo), nil
	default:
		return nil, fmt.Errorf("unknown forge provider %q", cfg.Provider)
	}
}
