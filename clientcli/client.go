package clientcli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout is the default timeout of API calls. Content transfers
// through presigned URLs are bounded by the context only.
const DefaultTimeout = 30 * time.Second

// Client performs operations against a litestore server.
type Client struct {
	config     *Config
	httpClient *http.Client
	// transfer moves file bytes to and from presigned URLs.
	transfer *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for API calls and transfers.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
		c.transfer = client
	}
}

// WithTimeout sets the API call timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// New creates a new Client with the given config and options.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}

	cfg = cfg.WithDefaults()

	c := &Client{
		config: &Config{
			Endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
			Token:    cfg.Token,
		},
		httpClient: &http.Client{Timeout: DefaultTimeout},
		transfer:   &http.Client{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// SignUp creates an account.
func (c *Client) SignUp(ctx context.Context, username, email, password string) error {
	body := map[string]string{"username": username, "email": email, "password": password}
	return c.do(ctx, http.MethodPost, "/api/auth/signup", body, nil)
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// Status checks that the server answers.
func (c *Client) Status(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/status", nil, nil)
}

// Upload uploads file(s) to the server. RemotePath names the file, or the
// folder to create for a recursive upload.
func (c *Client) Upload(ctx context.Context, opts UploadOptions) ([]UploadResult, error) {
	if opts.LocalPath == "" || opts.RemotePath == "" {
		return nil, fmt.Errorf("upload: %w", ErrEmptyPath)
	}
	if opts.Recursive {
		return c.uploadRecursive(ctx, opts)
	}
	result, err := c.uploadSingle(ctx, opts.LocalPath, opts.RemotePath)
	if err != nil {
		return nil, err
	}
	return []UploadResult{result}, nil
}

// uploadRecursive mirrors a local directory, creating folders before the
// files inside them.
func (c *Client) uploadRecursive(ctx context.Context, opts UploadOptions) ([]UploadResult, error) {
	info, err := os.Stat(opts.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("stat local path: %w", err)
	}

	if !info.IsDir() {
		result, uploadErr := c.uploadSingle(ctx, opts.LocalPath, opts.RemotePath)
		if uploadErr != nil {
			return nil, uploadErr
		}
		return []UploadResult{result}, nil
	}

	var results []UploadResult
	baseDir := opts.LocalPath
	remoteBase := "/" + strings.Trim(opts.RemotePath, "/")

	walkErr := filepath.WalkDir(baseDir, func(p string, d fs.DirEntry, fileErr error) error {
		if fileErr != nil {
			return fileErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		relPath, relErr := filepath.Rel(baseDir, p)
		if relErr != nil {
			results = append(results, UploadResult{
				LocalPath: p,
				Err:       fmt.Errorf("calculate relative path: %w", relErr),
			})
			return nil
		}
		remotePath := path.Join(remoteBase, filepath.ToSlash(relPath))

		if d.IsDir() {
			if _, mkErr := c.Mkdir(ctx, remotePath); mkErr != nil && !errors.Is(mkErr, ErrConflict) {
				return fmt.Errorf("create folder %s: %w", remotePath, mkErr)
			}
			return nil
		}

		result, uploadErr := c.uploadSingle(ctx, p, remotePath)
		if uploadErr != nil {
			result = UploadResult{
				LocalPath:  p,
				RemotePath: remotePath,
				Err:        uploadErr,
			}
		}
		results = append(results, result)
		return nil
	})

	if walkErr != nil {
		return results, fmt.Errorf("walk directory: %w", walkErr)
	}

	return results, nil
}

// uploadSingle asks the server for an upload plan, sends each part to its
// presigned URL and completes multipart uploads.
func (c *Client) uploadSingle(ctx context.Context, localPath, remotePath string) (UploadResult, error) {
	file, err := os.Open(localPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return UploadResult{}, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return UploadResult{}, fmt.Errorf("stat file: %w", err)
	}

	remotePath = normalizePath(remotePath)

	var plan uploadPlan
	req := map[string]any{"path": remotePath, "size": info.Size()}
	if err := c.do(ctx, http.MethodPost, "/api/files/upload", req, &plan); err != nil {
		return UploadResult{}, err
	}
	if len(plan.Links) != len(plan.Sizes) {
		return UploadResult{}, fmt.Errorf("upload plan has %d links for %d parts", len(plan.Links), len(plan.Sizes))
	}

	var offset int64
	for i, link := range plan.Links {
		part := io.NewSectionReader(file, offset, plan.Sizes[i])
		if err := c.put(ctx, link, part, plan.Sizes[i]); err != nil {
			return UploadResult{}, fmt.Errorf("upload part %d: %w", i+1, err)
		}
		offset += plan.Sizes[i]
	}

	if plan.UploadID != "" {
		complete := map[string]string{"path": remotePath, "uploadId": plan.UploadID}
		if err := c.do(ctx, http.MethodPost, "/api/files/upload/complete", complete, nil); err != nil {
			return UploadResult{}, err
		}
	}

	return UploadResult{
		LocalPath:  localPath,
		RemotePath: remotePath,
		Size:       info.Size(),
		Parts:      len(plan.Links),
	}, nil
}

func (c *Client) put(ctx context.Context, link string, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, link, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = size
	if size == 0 {
		req.Body = http.NoBody
	}

	resp, err := c.transfer.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(resp.Body)
		return parseServerError(resp.StatusCode, respBody)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Download fetches a file through its presigned URL.
// If opts.LocalPath is "-", the content is returned via the io.ReadCloser and must be closed by the caller.
// Otherwise, the content is written to the file and the io.ReadCloser is nil.
func (c *Client) Download(ctx context.Context, opts DownloadOptions) (*DownloadResult, io.ReadCloser, error) {
	if opts.RemotePath == "" {
		return nil, nil, fmt.Errorf("download: %w", ErrEmptyPath)
	}
	remotePath := normalizePath(opts.RemotePath)

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/files/download?path="+url.QueryEscape(remotePath), nil, &resp); err != nil {
		return nil, nil, err
	}

	return c.fetch(ctx, resp.URL, remotePath, opts.LocalPath)
}

// RedeemLink redeems a share link and downloads the file it grants.
func (c *Client) RedeemLink(ctx context.Context, id, password, localPath string) (*DownloadResult, io.ReadCloser, error) {
	var g grant
	var body any
	if password != "" {
		body = map[string]string{"password": password}
	}
	if err := c.do(ctx, http.MethodPost, "/api/links/"+url.PathEscape(id)+"/download", body, &g); err != nil {
		return nil, nil, err
	}

	if localPath == "" {
		localPath = g.Name
	}
	return c.fetch(ctx, g.URL, g.Name, localPath)
}

func (c *Client) fetch(ctx context.Context, link, remotePath, localPath string) (*DownloadResult, io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, http.NoBody)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.transfer.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, nil, parseServerError(resp.StatusCode, body)
	}

	result := &DownloadResult{
		RemotePath:  remotePath,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}

	if localPath == "-" {
		result.LocalPath = "-"
		return result, resp.Body, nil
	}

	if localPath == "" {
		localPath = path.Base(remotePath)
	}
	result.LocalPath = localPath

	dir := filepath.Dir(localPath)
	if dir != "" && dir != "." {
		if mkdirErr := os.MkdirAll(dir, 0o750); mkdirErr != nil {
			_ = resp.Body.Close()
			return nil, nil, fmt.Errorf("create directory: %w", mkdirErr)
		}
	}

	file, createErr := os.Create(localPath) //#nosec G304 -- localPath is user-provided input
	if createErr != nil {
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("create file: %w", createErr)
	}

	written, copyErr := io.Copy(file, resp.Body)
	_ = resp.Body.Close()
	if copyErr != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("write file: %w", copyErr)
	}

	if closeErr := file.Close(); closeErr != nil {
		return nil, nil, fmt.Errorf("close file: %w", closeErr)
	}

	result.Size = written
	return result, nil, nil
}

// List returns the children of the folder at p.
func (c *Client) List(ctx context.Context, p string) ([]Node, error) {
	var resp struct {
		Files []Node `json:"files"`
	}

	endpoint := "/api/files/list"
	if rest := strings.Trim(p, "/"); rest != "" {
		segments := strings.Split(rest, "/")
		for i, s := range segments {
			segments[i] = url.PathEscape(s)
		}
		endpoint += "/" + strings.Join(segments, "/")
	}

	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// Mkdir creates a folder.
func (c *Client) Mkdir(ctx context.Context, p string) (Node, error) {
	var resp struct {
		File Node `json:"file"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/files/folder", map[string]string{"path": normalizePath(p)}, &resp); err != nil {
		return Node{}, err
	}
	return resp.File, nil
}

// Delete permanently deletes paths. Continues on error, collecting results
// for all paths. Content removal runs in background tasks on the server.
func (c *Client) Delete(ctx context.Context, paths []string) ([]DeleteResult, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}

	results := make([]DeleteResult, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		var resp struct {
			TaskID int `json:"taskId"`
		}
		err := c.do(ctx, http.MethodPost, "/api/files/delete", map[string]string{"path": normalizePath(p)}, &resp)
		results = append(results, DeleteResult{
			Path:    p,
			Deleted: err == nil,
			TaskID:  resp.TaskID,
			Err:     err,
		})
	}

	return results, nil
}

// HasDeleteErrors returns true if any delete operation failed.
func HasDeleteErrors(results []DeleteResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// Trash moves p to the trash, or restores it when trashed is false.
func (c *Client) Trash(ctx context.Context, p string, trashed bool) error {
	body := map[string]any{"path": normalizePath(p), "trash": trashed}
	return c.do(ctx, http.MethodPost, "/api/files/trash", body, nil)
}

// Move moves from into the folder toFolder.
func (c *Client) Move(ctx context.Context, from, toFolder string) error {
	body := map[string]string{"from": normalizePath(from), "to": normalizePath(toFolder)}
	return c.do(ctx, http.MethodPost, "/api/files/move", body, nil)
}

// Copy copies from into the folder toFolder and returns the new node.
func (c *Client) Copy(ctx context.Context, from, toFolder string) (Node, error) {
	var resp struct {
		File Node `json:"file"`
	}
	body := map[string]string{"from": normalizePath(from), "toFolder": normalizePath(toFolder)}
	if err := c.do(ctx, http.MethodPost, "/api/files/copy", body, &resp); err != nil {
		return Node{}, err
	}
	return resp.File, nil
}

// Task returns the state of a background task.
func (c *Client) Task(ctx context.Context, id int) (Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+strconv.Itoa(id), nil, &task); err != nil {
		return Task{}, err
	}
	return task, nil
}

// CreateLink shares the file at p and returns the link id.
func (c *Client) CreateLink(ctx context.Context, p string, opts LinkOptions) (string, error) {
	body := struct {
		Path string `json:"path"`
		LinkOptions
	}{Path: normalizePath(p), LinkOptions: opts}

	var resp struct {
		UUID string `json:"uuid"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/links", body, &resp); err != nil {
		return "", err
	}
	return resp.UUID, nil
}

// Links returns the links created by the caller.
func (c *Client) Links(ctx context.Context) ([]Link, error) {
	var resp struct {
		Links []Link `json:"links"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/links", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Links, nil
}

// LinkInfo returns the public description of a link.
func (c *Client) LinkInfo(ctx context.Context, id string) (LinkInfo, error) {
	var info LinkInfo
	if err := c.do(ctx, http.MethodGet, "/api/links/"+url.PathEscape(id), nil, &info); err != nil {
		return LinkInfo{}, err
	}
	return info, nil
}

// EditLink changes the options of a link. An empty non-nil password
// removes the password.
func (c *Client) EditLink(ctx context.Context, id string, opts LinkOptions) error {
	return c.do(ctx, http.MethodPatch, "/api/links/"+url.PathEscape(id), opts, nil)
}

// DeleteLink removes a link.
func (c *Client) DeleteLink(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/links/"+url.PathEscape(id), nil, nil)
}

// do sends a JSON API request and decodes the JSON answer into out.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.Endpoint+endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		return parseServerError(resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// normalizePath ensures path has leading slash and no trailing slash.
func normalizePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if p == "/" {
		return p
	}
	return strings.TrimSuffix(p, "/")
}

// parseServerError decodes the {"error", "message"} body of a failed call.
// Bodies from other servers, such as S3 XML errors, are kept as is.
func parseServerError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		apiErr.Code = payload.Error
		apiErr.Message = payload.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	return apiErr
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	msg := "server error: " + strconv.Itoa(e.StatusCode)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += " - " + e.Message
	}
	return msg
}

// Is reports whether target matches this error.
// It matches if target is an *APIError with the same StatusCode.
func (e *APIError) Is(target error) bool {
	var t *APIError
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return t.StatusCode == e.StatusCode
}

// IsNotFound returns true if the error is a 404.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Sentinel errors for common API error conditions.
// Use errors.Is() to check for these conditions.
var (
	// ErrNotFound is returned when the requested file, folder or link does not exist (404).
	ErrNotFound = &APIError{StatusCode: http.StatusNotFound}

	// ErrUnauthorized is returned when the token is missing or expired (401).
	ErrUnauthorized = &APIError{StatusCode: http.StatusUnauthorized}

	// ErrForbidden is returned when the request is not permitted (403),
	// including share links that cannot be redeemed.
	ErrForbidden = &APIError{StatusCode: http.StatusForbidden}

	// ErrConflict is returned when the target path is already taken (409).
	ErrConflict = &APIError{StatusCode: http.StatusConflict}
)
