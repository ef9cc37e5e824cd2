// Package filesystem provides a local content store for litestore.
// Objects live below an os.Root; clients reach them through signed URLs
// served by Handler, the same way they would reach a presigned S3 bucket.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lines-of-codes/litestore"
	"github.com/lines-of-codes/litestore/metrics"
)

const (
	backendName = "filesystem"
	// markerName stands in for a zero-length "<dir>/" key on disk.
	markerName = ".folder"
	// uploadsDir holds in-progress multipart uploads: <id>/key and <id>/<part>.
	uploadsDir = ".uploads"
	// partsRoute is the URL segment addressing multipart upload parts.
	partsRoute = "_parts"
)

// Config holds the options of a Store.
type Config struct {
	// BaseURL is the absolute URL Handler is mounted at, e.g. http://localhost:8080/content
	BaseURL string
	// Expiry is the validity of signed URLs.
	Expiry time.Duration
	// DeleteConcurrency bounds parallel removals in DeleteMany.
	DeleteConcurrency int
}

// Store is a litestore.ContentStore on the local file system.
type Store struct {
	root        *os.Root
	keys        *Keyring
	baseURL     *url.URL
	expiry      time.Duration
	concurrency int
	now         func() time.Time
}

// NewFileStorage creates a Store below root. The root provides sandboxed file
// operations preventing path traversal.
func NewFileStorage(root *os.Root, keys *Keyring, cfg Config) (*Store, error) {
	if root == nil || keys == nil {
		return nil, errors.New("new file storage: root and keys are required")
	}

	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("new file storage: base url must be absolute: %q", cfg.BaseURL)
	}

	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	if expiry > MaxExpires {
		return nil, fmt.Errorf("new file storage: expiry %s exceeds %s", expiry, MaxExpires)
	}

	concurrency := cfg.DeleteConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	return &Store{
		root:        root,
		keys:        keys,
		baseURL:     base,
		expiry:      expiry,
		concurrency: concurrency,
		now:         time.Now,
	}, nil
}

// UploadPlan returns one signed PUT URL for objects below
// litestore.SinglePartThreshold, or starts a multipart upload with one URL
// per part.
func (s *Store) UploadPlan(ctx context.Context, contentPath string, size int64) (plan litestore.UploadPlan, err error) {
	defer func(start time.Time) { metrics.RecordContentOperation(backendName, "upload_plan", start, err) }(time.Now())

	if err := ctx.Err(); err != nil {
		return litestore.UploadPlan{}, err
	}

	sizes, err := litestore.PlanParts(size)
	if err != nil {
		return litestore.UploadPlan{}, err
	}

	if size < litestore.SinglePartThreshold {
		return litestore.UploadPlan{
			Links: []string{s.signedURL(http.MethodPut, contentPath, nil)},
			Sizes: sizes,
		}, nil
	}

	uploadID := uuid.NewString()
	if err := s.root.MkdirAll(path.Join(uploadsDir, uploadID), 0o755); err != nil {
		return litestore.UploadPlan{}, fmt.Errorf("start upload: %w", err)
	}
	if err := s.root.WriteFile(path.Join(uploadsDir, uploadID, "key"), []byte(contentPath), 0o644); err != nil {
		return litestore.UploadPlan{}, fmt.Errorf("start upload: %w", err)
	}

	links := make([]string, len(sizes))
	for i := range sizes {
		links[i] = s.signedURL(http.MethodPut, path.Join(partsRoute, uploadID, strconv.Itoa(i+1)), nil)
	}

	return litestore.UploadPlan{UploadID: uploadID, Links: links, Sizes: sizes}, nil
}

// CompleteUpload concatenates the uploaded parts in part order into contentPath.
func (s *Store) CompleteUpload(ctx context.Context, contentPath, uploadID string) (err error) {
	defer func(start time.Time) { metrics.RecordContentOperation(backendName, "complete_upload", start, err) }(time.Now())

	dir, err := s.uploadDir(uploadID, contentPath)
	if err != nil {
		return err
	}

	parts, err := s.partNumbers(dir)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return fmt.Errorf("complete upload %s: %w: no parts uploaded", uploadID, litestore.ErrInvalidInput)
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(s.concatParts(dir, parts, pw))
	}()

	if _, err := s.write(ctx, contentPath, pr); err != nil {
		_ = pr.CloseWithError(err)
		return fmt.Errorf("complete upload %s: %w", uploadID, err)
	}

	if err := s.root.RemoveAll(dir); err != nil {
		slog.Warn("remove finished upload", "upload", uploadID, "err", err)
	}
	return nil
}

// AbortUpload discards a multipart upload and its parts.
func (s *Store) AbortUpload(ctx context.Context, contentPath, uploadID string) (err error) {
	defer func(start time.Time) { metrics.RecordContentOperation(backendName, "abort_upload", start, err) }(time.Now())

	if err := ctx.Err(); err != nil {
		return err
	}

	dir, err := s.uploadDir(uploadID, contentPath)
	if err != nil {
		return err
	}
	return s.root.RemoveAll(dir)
}

// DownloadURL returns a signed GET URL. Handler offers the object as filename.
func (s *Store) DownloadURL(ctx context.Context, contentPath, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.signedURL(http.MethodGet, contentPath, url.Values{"filename": {filename}}), nil
}

// CreateFolderMarker records the folder key contentPath.
func (s *Store) CreateFolderMarker(ctx context.Context, contentPath string) (err error) {
	defer func(start time.Time) { metrics.RecordContentOperation(backendName, "create_folder", start, err) }(time.Now())

	if err := ctx.Err(); err != nil {
		return err
	}

	dir := strings.TrimSuffix(contentPath, "/")
	if err := s.root.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create folder marker: %w", err)
	}
	if err := s.root.WriteFile(path.Join(dir, markerName), nil, 0o644); err != nil {
		return fmt.Errorf("create folder marker: %w", err)
	}
	return nil
}

// Delete removes one object. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, contentPath string) (err error) {
	defer func(start time.Time) { metrics.RecordContentOperation(backendName, "delete", start, err) }(time.Now())
	return s.remove(ctx, contentPath)
}

// DeleteMany removes objects with bounded parallelism and joins every failure.
func (s *Store) DeleteMany(ctx context.Context, contentPaths []string) (err error) {
	defer func(start time.Time) { metrics.RecordContentOperation(backendName, "delete_many", start, err) }(time.Now())

	var mu sync.Mutex
	var errs []error

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, p := range contentPaths {
		g.Go(func() error {
			if err := s.remove(ctx, p); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// ListPrefix returns keys below prefix in lexical order. token is the last
// key of the previous page.
func (s *Store) ListPrefix(ctx context.Context, prefix string, maxKeys int, token string) (page litestore.KeyPage, err error) {
	defer func(start time.Time) { metrics.RecordContentOperation(backendName, "list", start, err) }(time.Now())

	if maxKeys <= 0 {
		maxKeys = 1000
	}

	start := "."
	if i := strings.LastIndex(prefix, "/"); i > 0 {
		start = prefix[:i]
	}

	var keys []string
	err = fs.WalkDir(s.root.FS(), start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := d.Name()
		if d.IsDir() {
			if p == uploadsDir {
				return fs.SkipDir
			}
			return nil
		}
		if p == name && strings.HasPrefix(name, ".t") {
			return nil
		}

		key := p
		if name == markerName {
			key = path.Dir(p) + "/"
		}
		if strings.HasPrefix(key, prefix) && key > token {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return litestore.KeyPage{}, fmt.Errorf("list %s: %w", prefix, err)
	}

	slices.Sort(keys)
	if len(keys) > maxKeys {
		return litestore.KeyPage{Keys: keys[:maxKeys], NextToken: keys[maxKeys-1]}, nil
	}
	return litestore.KeyPage{Keys: keys}, nil
}

// Open opens the object at contentPath for reading. Returns litestore.ErrNotFound
// if it does not exist.
func (s *Store) Open(ctx context.Context, contentPath string) (*os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.root.Open(contentPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, litestore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, litestore.ErrNotFound
	}

	return f, nil
}

// Put atomically stores content at contentPath.
func (s *Store) Put(ctx context.Context, contentPath string, content io.Reader) (int64, error) {
	return s.write(ctx, contentPath, content)
}

// PutPart stores one part of a multipart upload.
func (s *Store) PutPart(ctx context.Context, uploadID string, part int, content io.Reader) (int64, error) {
	if part < 1 || part > int(litestore.MaxParts) {
		return 0, fmt.Errorf("put part %d: %w", part, litestore.ErrInvalidInput)
	}

	if !validUploadID(uploadID) {
		return 0, fmt.Errorf("upload %q: %w", uploadID, litestore.ErrNotFound)
	}

	dir := path.Join(uploadsDir, uploadID)
	if _, err := s.root.Stat(path.Join(dir, "key")); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("upload %s: %w", uploadID, litestore.ErrNotFound)
		}
		return 0, err
	}

	return s.write(ctx, path.Join(dir, strconv.Itoa(part)), content)
}

func (s *Store) signedURL(method, key string, extra url.Values) string {
	u := *s.baseURL
	u.Path = s.baseURL.Path + "/" + key

	query := s.keys.presign(method, u.Path, s.now(), s.expiry)
	for k, v := range extra {
		query[k] = v
	}
	u.RawQuery = query.Encode()
	return u.String()
}

func (s *Store) uploadDir(uploadID, contentPath string) (string, error) {
	if !validUploadID(uploadID) {
		return "", fmt.Errorf("upload %q: %w", uploadID, litestore.ErrNotFound)
	}

	dir := path.Join(uploadsDir, uploadID)
	key, err := s.root.ReadFile(path.Join(dir, "key"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("upload %s: %w", uploadID, litestore.ErrNotFound)
		}
		return "", fmt.Errorf("upload %s: %w", uploadID, err)
	}
	if string(key) != contentPath {
		return "", fmt.Errorf("upload %s is not for %s: %w", uploadID, contentPath, litestore.ErrNotFound)
	}

	return dir, nil
}

func validUploadID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

func (s *Store) partNumbers(dir string) ([]int, error) {
	entries, err := fs.ReadDir(s.root.FS(), dir)
	if err != nil {
		return nil, fmt.Errorf("read parts: %w", err)
	}

	var parts []int
	for _, e := range entries {
		n, err := strconv.Atoi(e.Name())
		if err != nil || e.IsDir() {
			continue
		}
		parts = append(parts, n)
	}
	slices.Sort(parts)

	for i, n := range parts {
		if n != i+1 {
			return nil, fmt.Errorf("read parts: %w: part %d is missing", litestore.ErrInvalidInput, i+1)
		}
	}
	return parts, nil
}

func (s *Store) concatParts(dir string, parts []int, w io.Writer) error {
	for _, n := range parts {
		f, err := s.root.Open(path.Join(dir, strconv.Itoa(n)))
		if err != nil {
			return err
		}
		_, err = io.Copy(w, f)
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close part", "part", n, "err", closeErr)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) remove(ctx context.Context, contentPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := contentPath
	if strings.HasSuffix(contentPath, "/") {
		target = path.Join(contentPath, markerName)
	}

	if err := s.root.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", contentPath, err)
	}

	if strings.HasSuffix(contentPath, "/") {
		// Leaves the directory alone while other objects still live in it
		_ = s.root.Remove(strings.TrimSuffix(contentPath, "/"))
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// write atomically writes content to contentPath using a temp file and rename.
// It creates intermediate directories as needed and respects context cancellation.
func (s *Store) write(ctx context.Context, contentPath string, content io.Reader) (int64, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, ctxErr
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return 0, fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	written, err := io.Copy(t, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return 0, fmt.Errorf("could not copy file contents: %w", err)
	}

	if err := t.Sync(); err != nil {
		return 0, fmt.Errorf("could not sync written file: %w", err)
	}

	destDir := filepath.Dir(contentPath)
	if destDir != "." {
		if err := s.root.MkdirAll(destDir, 0o755); err != nil {
			return 0, fmt.Errorf("could not create intermediate directories: %w", err)
		}
	}

	if renameErr := s.root.Rename(tmpFile, contentPath); renameErr != nil {
		return 0, fmt.Errorf("failed to rename file: %w", renameErr)
	}

	success = true
	return written, nil
}

func tmpFileName() string {
	return fmt.Sprintf(".t%s", uuid.New().String())
}
