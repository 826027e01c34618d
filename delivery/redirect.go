package delivery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ferrydl/ferry"
)

// Redirect answers 302 with the public URL of the download.
type Redirect struct{}

func (Redirect) Name() string { return string(MethodRedirect) }

func (Redirect) Deliver(_ context.Context, w http.ResponseWriter, job Job) Outcome {
	target := redirectTarget(job)
	if target == "" {
		return retry("no public url to redirect to")
	}

	w.Header().Set("Location", target)
	w.Header().Set("Cache-Control", "no-cache, must-revalidate, max-age=0")
	w.WriteHeader(http.StatusFound)

	return Outcome{Kind: Ok, Committed: true}
}

// redirectTarget prefers the resolved remote locator, such as a presigned
// URL, over the raw one.
func redirectTarget(job Job) string {
	if job.Locator.IsRemote && isURL(job.Locator.Path) {
		return job.Locator.Path
	}
	if raw := strings.TrimSpace(job.Download.FileURL); isURL(raw) {
		return raw
	}
	return ""
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp":
		return true
	}
	return false
}

// remoteResolvable reports whether the download can be fetched over the
// network when the local copy is unusable.
func remoteResolvable(job Job) bool {
	return redirectTarget(job) != ""
}

func notFound(job Job) Outcome {
	return fatal(fmt.Errorf("download %d: %w", job.Download.ID, ferry.ErrFileNotFound))
}
