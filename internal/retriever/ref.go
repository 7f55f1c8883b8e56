package retriever

import (
	"fmt"
	"net/url"
	"strings"
)

// RepoRef identifies one repository tree to retrieve.
type RepoRef struct {
	Owner  string
	Name   string
	Branch string // empty means "resolve a default branch"
}

func (r RepoRef) String() string {
	if r.Branch == "" {
		return r.Owner + "/" + r.Name
	}
	return r.Owner + "/" + r.Name + "@" + r.Branch
}

// ParseRepoRef accepts "owner/name", an https github.com URL, or the
// git@github.com SSH form, with an optional branch.
func ParseRepoRef(raw, branch string) (RepoRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RepoRef{}, fmt.Errorf("retriever: repo reference required")
	}

	if strings.HasPrefix(raw, "git@github.com:") {
		repoPath := strings.TrimSuffix(strings.TrimPrefix(raw, "git@github.com:"), ".git")
		owner, name, ok := splitOwnerRepo(repoPath)
		if !ok {
			return RepoRef{}, fmt.Errorf("retriever: invalid repo reference %q", raw)
		}
		return RepoRef{Owner: owner, Name: name, Branch: strings.TrimSpace(branch)}, nil
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return RepoRef{}, fmt.Errorf("retriever: invalid repo url: %w", err)
		}
		if !strings.EqualFold(strings.TrimSpace(u.Host), "github.com") {
			return RepoRef{}, fmt.Errorf("retriever: only github.com is supported")
		}
		owner, name, ok := splitOwnerRepo(strings.TrimSuffix(u.Path, ".git"))
		if !ok {
			return RepoRef{}, fmt.Errorf("retriever: invalid repo url %q", raw)
		}
		return RepoRef{Owner: owner, Name: name, Branch: strings.TrimSpace(branch)}, nil
	}

	owner, name, ok := splitOwnerRepo(raw)
	if !ok {
		return RepoRef{}, fmt.Errorf("retriever: invalid repo reference %q", raw)
	}
	return RepoRef{Owner: owner, Name: name, Branch: strings.TrimSpace(branch)}, nil
}

func splitOwnerRepo(repoPath string) (owner, name string, ok bool) {
	parts := strings.Split(strings.Trim(repoPath, "/"), "/")
	if len(parts) < 2 {
		return "", "", false
	}
	owner = strings.TrimSpace(parts[0])
	name = strings.TrimSpace(parts[1])
	if owner == "" || name == "" {
		return "", "", false
	}
	return owner, name, true
}
