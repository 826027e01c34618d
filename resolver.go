package ferry

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Locator is the concrete location of a download's bytes, computed fresh
// for every request. When IsRemote is false, Path is a filesystem path.
type Locator struct {
	IsRemote bool   `json:"is_remote"`
	Path     string `json:"path"`
}

// ResolverConfig describes how public URLs map onto the local filesystem.
type ResolverConfig struct {
	// UploadDir is the absolute directory imported downloads live in.
	UploadDir string
	// UploadURL is the public base URL UploadDir is served under.
	UploadURL string
	// SiteURLs are the public base URLs of the site. Both http and https
	// variants of each are substituted with SiteRoot.
	SiteURLs []string
	// SiteRoot is the directory served at the site root.
	SiteRoot string
	// ContentRoot is the directory ContentMarker-prefixed locators resolve against.
	ContentRoot string
	// ContentMarker is the leading path segment naming ContentRoot, e.g. "content".
	ContentMarker string
}

// ResolveHook may replace the resolved locator before it is returned. The
// raw locator string is passed along so that hooks can claim their own
// schemes.
type ResolveHook func(ctx context.Context, raw string, loc Locator) (Locator, error)

type ResolverOption func(*Resolver)

// WithHook appends a hook run on every resolution, in registration order.
func WithHook(h ResolveHook) ResolverOption {
	return func(r *Resolver) {
		r.hooks = append(r.hooks, h)
	}
}

// WithFileCheck replaces the filesystem existence test.
func WithFileCheck(exists func(path string) bool) ResolverOption {
	return func(r *Resolver) {
		r.exists = exists
	}
}

func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// schemes that make a locator remote when nothing else claims it
var remoteSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"ftp":   true,
	"s3":    true,
}

type replacement struct {
	from string
	to   string
}

// Resolver decides whether a locator points at local or remote bytes.
type Resolver struct {
	cfg          ResolverConfig
	replacements []replacement
	hooks        []ResolveHook
	exists       func(path string) bool
	logger       *slog.Logger
}

func NewResolver(cfg ResolverConfig, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		cfg:    cfg,
		exists: fileExists,
		logger: slog.Default(),
	}

	if cfg.UploadURL != "" && cfg.UploadDir != "" {
		r.replacements = append(r.replacements, replacement{
			from: strings.TrimSuffix(cfg.UploadURL, "/"),
			to:   strings.TrimSuffix(cfg.UploadDir, string(filepath.Separator)),
		})
	}

	if cfg.SiteRoot != "" {
		root := strings.TrimSuffix(cfg.SiteRoot, string(filepath.Separator)) + "/"
		for _, site := range cfg.SiteURLs {
			for _, variant := range schemeVariants(site) {
				r.replacements = append(r.replacements, replacement{from: variant, to: root})
			}
		}
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve maps a raw locator to a Locator and runs the registered hooks.
func (r *Resolver) Resolve(ctx context.Context, raw string, req RequestContext) (Locator, error) {
	loc := r.resolve(raw, req)

	for _, hook := range r.hooks {
		var err error
		loc, err = hook(ctx, raw, loc)
		if err != nil {
			return Locator{}, fmt.Errorf("resolve %q: %w", raw, err)
		}
	}

	r.logger.DebugContext(ctx, "resolved locator", "remote", loc.IsRemote, "path", loc.Path)

	return loc, nil
}

func (r *Resolver) resolve(raw string, req RequestContext) Locator {
	path, count := r.substitute(strings.TrimSpace(raw))

	// protocol-relative URLs are always remote
	if strings.HasPrefix(path, "//") {
		scheme := "http:"
		if req.Secure {
			scheme = "https:"
		}
		return Locator{IsRemote: true, Path: scheme + path}
	}

	if r.exists(path) {
		return Locator{Path: path}
	}

	if marker := strings.Trim(r.cfg.ContentMarker, "/"); marker != "" && r.cfg.ContentRoot != "" {
		trimmed := strings.TrimPrefix(path, "/")
		if trimmed == marker || strings.HasPrefix(trimmed, marker+"/") {
			rest := strings.TrimPrefix(trimmed, marker)
			return Locator{Path: filepath.Join(r.cfg.ContentRoot, filepath.FromSlash(rest))}
		}
	}

	if u, err := url.Parse(path); err == nil && !remoteSchemes[strings.ToLower(u.Scheme)] && u.Path != "" {
		local := u.Path
		if u.Scheme != "" {
			// e.g. a Windows drive letter parsed as a scheme
			local = path
		}
		if !filepath.IsAbs(local) && r.cfg.SiteRoot != "" {
			local = filepath.Join(r.cfg.SiteRoot, filepath.FromSlash(local))
		}
		return Locator{Path: local}
	}

	return Locator{IsRemote: count == 0, Path: path}
}

// substitute replaces known public URL prefixes with filesystem prefixes and
// reports how many replacements were made.
func (r *Resolver) substitute(path string) (string, int) {
	total := 0
	for _, rep := range r.replacements {
		if n := strings.Count(path, rep.from); n > 0 {
			path = strings.ReplaceAll(path, rep.from, rep.to)
			total += n
		}
	}
	return path, total
}

// schemeVariants returns the https and http forms of a base URL, each with
// a trailing slash.
func schemeVariants(base string) []string {
	base = strings.TrimSuffix(base, "/") + "/"

	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return []string{base}
	}

	hostPath := u.Host + u.Path
	return []string{"https://" + hostPath, "http://" + hostPath}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
