package workspace

import (
	"net/url"
	"regexp"
	"strings"
)

// branchPattern pairs a path/query regex with the capture group holding the
// branch name, one per provider-specific "branch embedded in the URL" encoding.
type branchPattern struct {
	re          *regexp.Regexp
	branchGroup int
}

var branchPatterns = []branchPattern{
	// GitLab: https://gitlab.com/org/repo/-/tree/<branch>
	{re: regexp.MustCompile(`^(.*?)/-/tree/([^/?#]+)(/.*)?$`), branchGroup: 2},
	// GitHub/Gitea: https://github.com/org/repo/tree/<branch>
	{re: regexp.MustCompile(`^(.*?)/tree/([^/?#]+)(/.*)?$`), branchGroup: 2},
	// Bitbucket Cloud: https://bitbucket.org/org/repo/src/<branch>
	{re: regexp.MustCompile(`^(.*?)/src/([^/?#]+)(/.*)?$`), branchGroup: 2},
}

// bitbucketServerVersion matches Bitbucket Server/Data Center's ?version=GB<branch> query param.
var bitbucketServerVersion = regexp.MustCompile(`^GB(.+)$`)

// ResolveCloneURL separates a user-supplied URL into a clean clonable
// repository URL and an optional branch reference, covering the
// provider-specific encodings in spec table §4.7:
// /tree/<branch>, /-/tree/<branch>, /src/<branch>, ?version=GB<branch>.
func ResolveCloneURL(raw string) (cleanURL string, branch string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", err
	}

	if version := u.Query().Get("version"); version != "" {
		if m := bitbucketServerVersion.FindStringSubmatch(version); m != nil {
			stripped := *u
			q := stripped.Query()
			q.Del("version")
			stripped.RawQuery = q.Encode()
			return stripped.String(), m[1], nil
		}
	}

	pathAndBefore := u.Scheme + "://" + u.Host + u.Path
	for _, p := range branchPatterns {
		m := p.re.FindStringSubmatch(pathAndBefore)
		if m == nil {
			continue
		}
		clean := m[1]
		if !strings.HasSuffix(clean, ".git") {
			clean += ".git"
		}
		return clean, m[p.branchGroup], nil
	}

	return u.String(), "", nil
}
