package coding

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// File is one generated file destined for a merge request.
type File struct {
	Path    string `json:"file_path"`
	Content string `json:"content"`
	Action  string `json:"action"`
}

// MergeRequest is the input to RepoHost.CreateMergeRequest.
type MergeRequest struct {
	Repo        string
	Branch      string
	Title       string
	Description string
	Files       []File
}

// RepoHost opens merge requests on a code host.
type RepoHost interface {
	CreateMergeRequest(ctx context.Context, mr MergeRequest) (string, error)
}

// DemoHost is a stand-in repository host that returns a deterministic
// merge-request URL without touching any remote.
type DemoHost struct {
	logger *zap.Logger
}

// NewDemoHost creates the demo host.
func NewDemoHost(logger *zap.Logger) *DemoHost {
	return &DemoHost{logger: logger.With(zap.String("component", "repo_host"))}
}

func (h *DemoHost) CreateMergeRequest(ctx context.Context, mr MergeRequest) (string, error) {
	h.logger.Warn("repository host not configured, returning placeholder merge request",
		zap.String("repo", mr.Repo),
		zap.String("branch", mr.Branch),
		zap.Int("files", len(mr.Files)))
	return fmt.Sprintf("https://github.com/%s/pull/1", mr.Repo), nil
}
