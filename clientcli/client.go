package clientcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ferrydl/ferry"
)

const DefaultTimeout = 30 * time.Second

// Client talks to one ferry server.
type Client struct {
	config     *Config
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout bounds a whole request, body included. Large downloads usually
// want 0.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}

	cfg = cfg.WithDefaults()
	if err := ValidateEndpoint(cfg.Endpoint); err != nil {
		return nil, err
	}

	c := &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Endpoint() string {
	return c.config.Endpoint
}

// ListOptions filters the admin download listing.
type ListOptions struct {
	Prefix   string
	Category string
	Limit    int
	Cursor   string
	// All follows next_cursor until the listing is exhausted.
	All bool
}

// List returns downloads from the admin API. The token must carry the admin
// role.
func (c *Client) List(ctx context.Context, opts ListOptions) (*ferry.ListResult, error) {
	if !opts.All {
		return c.listPage(ctx, opts)
	}

	all := &ferry.ListResult{}
	for {
		page, err := c.listPage(ctx, opts)
		if err != nil {
			return nil, err
		}
		all.Items = append(all.Items, page.Items...)
		if page.NextCursor == "" {
			return all, nil
		}
		opts.Cursor = page.NextCursor
	}
}

func (c *Client) listPage(ctx context.Context, opts ListOptions) (*ferry.ListResult, error) {
	q := url.Values{}
	if opts.Prefix != "" {
		q.Set("prefix", opts.Prefix)
	}
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}

	var result ferry.ListResult
	if err := c.getJSON(ctx, "/api/downloads", q, &result); err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	return &result, nil
}

// Events returns the most recent events recorded for a download.
func (c *Client) Events(ctx context.Context, downloadID int64, limit int) ([]ferry.Event, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var body struct {
		Items []ferry.Event `json:"items"`
	}
	path := "/api/downloads/" + strconv.FormatInt(downloadID, 10) + "/events"
	if err := c.getJSON(ctx, path, q, &body); err != nil {
		return nil, fmt.Errorf("download %d events: %w", downloadID, err)
	}
	return body.Items, nil
}

// Ping checks that the server is reachable and accepts the token for the
// admin API.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.listPage(ctx, ListOptions{Limit: 1})
	return err
}

// DownloadOptions configures a download.
type DownloadOptions struct {
	IDOrName string
	// LocalPath is where the file is written. Empty uses the file name the
	// server sends, "-" streams to Writer.
	LocalPath string
	Writer    io.Writer
	// Password is posted as download_password for protected downloads.
	Password string
	// Resume continues an existing LocalPath with a Range request.
	Resume bool
}

// DownloadResult describes a finished download.
type DownloadResult struct {
	IDOrName    string `json:"id_or_name"`
	LocalPath   string `json:"local_path"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	// Received counts the bytes written by this call.
	Received int64 `json:"received_bytes"`
	// Size is the full file size when the server reported one.
	Size    int64 `json:"size_bytes"`
	Resumed bool  `json:"resumed"`
}

// Download fetches a download. With Resume set and part of LocalPath already
// on disk it asks for the remainder only; a server that answers with the
// whole file restarts it from scratch.
func (c *Client) Download(ctx context.Context, opts DownloadOptions) (*DownloadResult, error) {
	if opts.IDOrName == "" {
		return nil, fmt.Errorf("download: %w", ErrEmptyID)
	}

	toWriter := opts.LocalPath == "-"
	if toWriter && opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	localPath := opts.LocalPath
	if localPath == "" && opts.Resume {
		localPath = filepath.Base(opts.IDOrName)
	}

	var offset int64
	if opts.Resume && !toWriter {
		if info, err := os.Stat(localPath); err == nil && info.Mode().IsRegular() {
			offset = info.Size()
		}
	}

	req, err := c.downloadRequest(ctx, opts, offset)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", opts.IDOrName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	result := &DownloadResult{
		IDOrName:    opts.IDOrName,
		FileName:    fileNameFrom(resp.Header.Get("Content-Disposition"), opts.IDOrName),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        totalFromContentRange(resp.Header.Get("Content-Range")),
	}
	if result.Size < 0 {
		result.Size = resp.ContentLength
	}
	if localPath == "" {
		localPath = result.FileName
	}
	result.LocalPath = localPath
	if toWriter {
		result.LocalPath = "-"
	}

	switch resp.StatusCode {
	case http.StatusOK:
		offset = 0
	case http.StatusPartialContent:
		if start := startFromContentRange(resp.Header.Get("Content-Range")); start != offset {
			return nil, fmt.Errorf("download %s: server resumed at byte %d, want %d", opts.IDOrName, start, offset)
		}
		result.Resumed = true
	case http.StatusRequestedRangeNotSatisfiable:
		if offset > 0 && result.Size == offset {
			// Already complete.
			result.Resumed = true
			return result, nil
		}
		return nil, fmt.Errorf("download %s: %w", opts.IDOrName, readAPIError(resp))
	default:
		return nil, fmt.Errorf("download %s: %w", opts.IDOrName, readAPIError(resp))
	}

	w := opts.Writer
	if !toWriter {
		f, err := openLocal(localPath, result.Resumed)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	n, err := io.Copy(w, resp.Body)
	result.Received = n
	if err != nil {
		return result, fmt.Errorf("download %s: %w", opts.IDOrName, err)
	}
	if result.Size < 0 {
		result.Size = offset + n
	}
	return result, nil
}

func (c *Client) downloadRequest(ctx context.Context, opts DownloadOptions, offset int64) (*http.Request, error) {
	target := c.config.Endpoint + "/download/" + url.PathEscape(opts.IDOrName)

	method := http.MethodGet
	var body io.Reader = http.NoBody
	if opts.Password != "" {
		method = http.MethodPost
		body = strings.NewReader(url.Values{"download_password": {opts.Password}}.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if opts.Password != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if offset > 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
	}
	c.authorize(req)
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v any) error {
	target := c.config.Endpoint + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Code = body.Error
		apiErr.Message = body.Message
	}
	return apiErr
}

func openLocal(path string, appendTo bool) (*os.File, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendTo {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	f, err := os.OpenFile(filepath.Clean(path), flags, 0o644) //#nosec G304 -- path is user-provided output file
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// fileNameFrom returns the filename parameter of a Content-Disposition
// header, falling back to the last element of idOrName.
func fileNameFrom(disposition, idOrName string) string {
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name := filepath.Base(params["filename"]); name != "." && name != "/" && name != "" {
			return name
		}
	}
	return filepath.Base(idOrName)
}

// totalFromContentRange parses the complete length of "bytes a-b/total" or
// "bytes */total". It returns -1 when absent.
func totalFromContentRange(v string) int64 {
	_, total, ok := strings.Cut(v, "/")
	if !ok {
		return -1
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return -1
	}
	return n
}

func startFromContentRange(v string) int64 {
	spec, ok := strings.CutPrefix(v, "bytes ")
	if !ok {
		return -1
	}
	start, _, ok := strings.Cut(spec, "-")
	if !ok {
		return -1
	}
	n, err := strconv.ParseInt(start, 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// IsAuthError reports whether err is a 401 or 403 from the server.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}
