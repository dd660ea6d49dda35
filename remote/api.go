package remote

import (
	"context"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/poiesic/repoingest/core"
)

// GetRepository fetches repository metadata. It doubles as a reachability
// and credential check before a run.
func (c *Client) GetRepository(ctx context.Context, repo string) (*github.Repository, error) {
	base, err := repoPath(repo)
	if err != nil {
		return nil, err
	}
	var r github.Repository
	if err := c.Fetch(ctx, base, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListTree lists every entry reachable from ref. The boolean reports whether
// the API truncated the listing.
func (c *Client) ListTree(ctx context.Context, repo, ref string) ([]core.FileEntry, bool, error) {
	base, err := repoPath(repo)
	if err != nil {
		return nil, false, err
	}
	var tree github.Tree
	params := url.Values{"recursive": []string{"1"}}
	if err := c.Fetch(ctx, base+"/git/trees/"+escapeRef(ref), params, &tree); err != nil {
		return nil, false, err
	}

	entries := make([]core.FileEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		if e == nil {
			continue
		}
		entries = append(entries, core.FileEntry{
			Path: e.GetPath(),
			SHA:  e.GetSHA(),
			Size: int64(e.GetSize()),
			Kind: core.EntryKind(e.GetType()),
		})
	}
	return entries, tree.GetTruncated(), nil
}

// GetBlob fetches a blob by its SHA.
func (c *Client) GetBlob(ctx context.Context, repo, sha string) (*github.Blob, error) {
	base, err := repoPath(repo)
	if err != nil {
		return nil, err
	}
	var b github.Blob
	if err := c.Fetch(ctx, base+"/git/blobs/"+url.PathEscape(sha), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func repoPath(repo string) (string, error) {
	owner, name, err := core.SplitRepo(repo)
	if err != nil {
		return "", err
	}
	return "repos/" + url.PathEscape(owner) + "/" + url.PathEscape(name), nil
}

// escapeRef escapes each segment of a ref so branch names like feature/x keep their slashes.
func escapeRef(ref string) string {
	parts := strings.Split(ref, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
