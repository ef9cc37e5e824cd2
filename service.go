package litestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lines-of-codes/litestore/tasks"
)

// TaskQueue runs deferred work and reports its outcome by index.
type TaskQueue interface {
	Submit(owner int64, label string, work tasks.Work) int
	Get(index int) (tasks.Task, bool)
}

// ServiceConfig holds the timeouts used by FileService.
type ServiceConfig struct {
	// PresignTimeout bounds content store calls made while a request waits.
	PresignTimeout time.Duration
	// CleanupTimeout bounds compensating cleanups run after a failed metadata write.
	CleanupTimeout time.Duration
}

// FileService implements the operations on a user's virtual tree and keeps
// the content store in step with it.
//
// Every mutation runs in one tree transaction for its owner. Content side
// effects that may be slow (purging deleted objects) are submitted to the
// task queue and reported by index.
type FileService struct {
	tree           TreeRepo
	content        ContentStore
	queue          TaskQueue
	presignTimeout time.Duration
	cleanupTimeout time.Duration
}

// NewFileService creates a FileService. Zero timeouts default to 10s for
// presign calls and 30s for cleanups.
func NewFileService(tree TreeRepo, content ContentStore, queue TaskQueue, cfg ServiceConfig) (*FileService, error) {
	if tree == nil || content == nil || queue == nil {
		return nil, errors.New("new file service: tree, content and queue are required")
	}

	presignTimeout := cfg.PresignTimeout
	if presignTimeout <= 0 {
		presignTimeout = 10 * time.Second
	}

	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}

	return &FileService{
		tree:           tree,
		content:        content,
		queue:          queue,
		presignTimeout: presignTimeout,
		cleanupTimeout: cleanupTimeout,
	}, nil
}

// RootContentPath is the content path of a user's root folder marker.
func RootContentPath(owner int64) string {
	return fmt.Sprintf("users/%d/", owner)
}

func fileContentPath(owner int64, name string) string {
	return fmt.Sprintf("users/%d/%s%s", owner, uuid.NewString(), strings.ToLower(path.Ext(name)))
}

func folderContentPath(owner int64) string {
	return fmt.Sprintf("users/%d/%s/", owner, uuid.NewString())
}

// CreateRoot creates the root folder of a user and its folder marker.
// Calling it for a user that already has a root returns the existing root.
func (s *FileService) CreateRoot(ctx context.Context, owner int64) (FileNode, error) {
	if err := ctx.Err(); err != nil {
		return FileNode{}, fmt.Errorf("create root: %w", err)
	}

	contentPath := RootContentPath(owner)

	var root FileNode
	err := s.tree.WithTx(ctx, owner, func(ctx context.Context, tx TreeRepo) error {
		existing, err := tx.FindByPath(ctx, owner, "/")
		if err == nil {
			root = existing
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		root, err = tx.CreateNode(ctx, NewNode{
			Owner:       owner,
			VirtualPath: "/",
			ContentPath: contentPath,
			IsFolder:    true,
		})
		return err
	})
	if err != nil {
		return FileNode{}, fmt.Errorf("create root for user %d: %w", owner, err)
	}

	// A missing marker only hides the root from raw object listings
	if err := s.content.CreateFolderMarker(ctx, contentPath); err != nil {
		slog.Warn("create root folder marker", "owner", owner, "err", err)
	}

	return root, nil
}

// CreateFolder creates an empty folder. The parent folder must exist and not
// be hidden by trash.
func (s *FileService) CreateFolder(ctx context.Context, owner int64, p string) (FileNode, error) {
	if err := ctx.Err(); err != nil {
		return FileNode{}, fmt.Errorf("create folder: %w", err)
	}

	clean, err := NormalizePath(p)
	if err != nil {
		return FileNode{}, fmt.Errorf("create folder: %w", err)
	}
	if clean == "/" {
		return FileNode{}, fmt.Errorf("create folder /: %w", ErrConflict)
	}
	virtualPath := FolderPath(clean)

	// Fail fast before touching the content store
	if _, err := prepareCreate(ctx, s.tree, owner, virtualPath); err != nil {
		return FileNode{}, fmt.Errorf("create folder %s: %w", virtualPath, err)
	}

	contentPath := folderContentPath(owner)
	_, err = withTimeout(ctx, s.presignTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.content.CreateFolderMarker(ctx, contentPath)
	})
	if err != nil {
		return FileNode{}, fmt.Errorf("create folder %s: %w: %w", virtualPath, ErrInternal, err)
	}

	var node FileNode
	err = s.tree.WithTx(ctx, owner, func(ctx context.Context, tx TreeRepo) error {
		parent, err := prepareCreate(ctx, tx, owner, virtualPath)
		if err != nil {
			return err
		}
		node, err = tx.CreateNode(ctx, NewNode{
			Owner:        owner,
			VirtualPath:  virtualPath,
			ContentPath:  contentPath,
			IsFolder:     true,
			ParentFolder: &parent.ID,
		})
		return err
	})
	if err != nil {
		s.cleanup("remove folder marker", func(ctx context.Context) error {
			return s.content.Delete(ctx, contentPath)
		})
		return FileNode{}, fmt.Errorf("create folder %s: %w", virtualPath, err)
	}

	return node, nil
}

// Upload registers a file of size bytes at p and returns the presigned plan
// the client uses to send its bytes. Plans of SinglePartThreshold bytes or
// more are multipart uploads and must be finished with CompleteUpload.
func (s *FileService) Upload(ctx context.Context, owner int64, p string, size int64) (UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return UploadResult{}, fmt.Errorf("upload: %w", err)
	}

	clean, err := NormalizePath(p)
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload: %w", err)
	}
	if clean == "/" {
		return UploadResult{}, fmt.Errorf("upload /: %w", ErrInvalidInput)
	}

	if _, err := PlanParts(size); err != nil {
		return UploadResult{}, fmt.Errorf("upload %s: %w", clean, err)
	}

	if _, err := prepareCreate(ctx, s.tree, owner, clean); err != nil {
		return UploadResult{}, fmt.Errorf("upload %s: %w", clean, err)
	}

	contentPath := fileContentPath(owner, clean)
	plan, err := withTimeout(ctx, s.presignTimeout, func(ctx context.Context) (UploadPlan, error) {
		return s.content.UploadPlan(ctx, contentPath, size)
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload %s: %w: %w", clean, ErrInternal, err)
	}

	var node FileNode
	err = s.tree.WithTx(ctx, owner, func(ctx context.Context, tx TreeRepo) error {
		parent, err := prepareCreate(ctx, tx, owner, clean)
		if err != nil {
			return err
		}
		node, err = tx.CreateNode(ctx, NewNode{
			Owner:        owner,
			VirtualPath:  clean,
			ContentPath:  contentPath,
			ParentFolder: &parent.ID,
		})
		return err
	})
	if err != nil {
		if plan.IsMultipart() {
			s.cleanup("abort upload", func(ctx context.Context) error {
				return s.content.AbortUpload(ctx, contentPath, plan.UploadID)
			})
		}
		return UploadResult{}, fmt.Errorf("upload %s: %w", clean, err)
	}

	return UploadResult{Node: node, Plan: plan}, nil
}

// CompleteUpload finishes the multipart upload of the file at p.
func (s *FileService) CompleteUpload(ctx context.Context, owner int64, p, uploadID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("complete upload: %w", err)
	}

	if uploadID == "" {
		return fmt.Errorf("complete upload: %w: upload id cannot be empty", ErrInvalidInput)
	}

	clean, err := NormalizePath(p)
	if err != nil {
		return fmt.Errorf("complete upload: %w", err)
	}

	node, err := s.tree.FindByPath(ctx, owner, clean)
	if err != nil {
		return fmt.Errorf("complete upload %s: %w", clean, err)
	}

	if err := s.content.CompleteUpload(ctx, node.ContentPath, uploadID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("complete upload %s: %w", clean, err)
		}
		return fmt.Errorf("complete upload %s: %w: %w", clean, ErrInternal, err)
	}

	return nil
}

// Download returns a presigned URL for the file at p. Trashed files stay
// downloadable until they are deleted.
func (s *FileService) Download(ctx context.Context, owner int64, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("download: %w", err)
	}

	node, err := resolve(ctx, s.tree, owner, p)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", p, err)
	}

	if node.IsFolder {
		return "", fmt.Errorf("download %s: %w: folders cannot be downloaded", node.VirtualPath, ErrInvalidInput)
	}

	url, err := withTimeout(ctx, s.presignTimeout, func(ctx context.Context) (string, error) {
		return s.content.DownloadURL(ctx, node.ContentPath, node.Filename)
	})
	if err != nil {
		return "", fmt.Errorf("download %s: %w: %w", node.VirtualPath, ErrInternal, err)
	}

	return url, nil
}

// List returns the visible children of the folder at p.
// Folders that are trashed, or sit below a trashed folder, are not found.
func (s *FileService) List(ctx context.Context, owner int64, p string) ([]FileNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	folder, err := resolveFolder(ctx, s.tree, owner, p)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", p, err)
	}

	if err := ensureVisible(ctx, s.tree, folder); err != nil {
		return nil, fmt.Errorf("list %s: %w", folder.VirtualPath, err)
	}

	children, err := s.tree.ListChildren(ctx, folder.ID, false)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", folder.VirtualPath, err)
	}

	return children, nil
}

// Delete removes the node at p and everything below it from the tree, then
// submits a task purging the content no remaining node references.
// The metadata is gone when Delete returns; the returned task index reports
// the outcome of the purge.
func (s *FileService) Delete(ctx context.Context, owner int64, p string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}

	var refs []ContentRef
	err := s.tree.WithTx(ctx, owner, func(ctx context.Context, tx TreeRepo) error {
		node, err := resolve(ctx, tx, owner, p)
		if err != nil {
			return err
		}
		if node.ParentFolder == nil {
			return fmt.Errorf("user root cannot be deleted: %w", ErrInvalidInput)
		}

		nodes, err := collectSubtree(ctx, tx, node)
		if err != nil {
			return err
		}

		ids := make([]int64, len(nodes))
		for i, n := range nodes {
			ids[i] = n.ID
		}

		contentPaths, err := tx.HardDelete(ctx, ids)
		if err != nil {
			return err
		}

		refs, err = classifyContent(ctx, tx, contentPaths)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", p, err)
	}

	var purge []string
	for _, ref := range refs {
		if ref.Ownership == ContentExclusive {
			purge = append(purge, ref.Path)
		}
	}

	taskID := s.queue.Submit(owner, "purge", func(ctx context.Context) error {
		if len(purge) == 0 {
			return nil
		}
		return s.content.DeleteMany(ctx, purge)
	})

	slog.Info("deleted nodes", "owner", owner, "path", p, "purge", len(purge), "shared", len(refs)-len(purge), "task", taskID)
	return taskID, nil
}

// Trash sets or clears the trash flag of the node at p. Descendants and
// content are not touched.
func (s *FileService) Trash(ctx context.Context, owner int64, p string, trashed bool) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("trash: %w", err)
	}

	err := s.tree.WithTx(ctx, owner, func(ctx context.Context, tx TreeRepo) error {
		node, err := resolve(ctx, tx, owner, p)
		if err != nil {
			return err
		}
		if node.ParentFolder == nil {
			return fmt.Errorf("user root cannot be trashed: %w", ErrInvalidInput)
		}
		if node.Trashed == trashed {
			return nil
		}
		return tx.SetTrashed(ctx, node.ID, trashed)
	})
	if err != nil {
		return fmt.Errorf("trash %s: %w", p, err)
	}

	return nil
}

// Move places the node at from inside the folder at toFolder, keeping its
// name. Moving a folder rewrites the path of every node below it in the same
// transaction.
func (s *FileService) Move(ctx context.Context, owner int64, from, toFolder string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("move: %w", err)
	}

	err := s.tree.WithTx(ctx, owner, func(ctx context.Context, tx TreeRepo) error {
		src, err := resolve(ctx, tx, owner, from)
		if err != nil {
			return err
		}
		dst, err := resolveFolder(ctx, tx, owner, toFolder)
		if err != nil {
			return err
		}
		if err := ensureVisible(ctx, tx, dst); err != nil {
			return err
		}

		if src.ParentFolder == nil {
			return fmt.Errorf("user root cannot be moved: %w", ErrInvalidInput)
		}
		if src.IsFolder && IsWithin(dst.VirtualPath, src.VirtualPath) {
			return fmt.Errorf("folder cannot be moved into itself: %w", ErrInvalidInput)
		}
		if *src.ParentFolder == dst.ID {
			return nil
		}

		newPath := dst.VirtualPath + src.Filename
		if src.IsFolder {
			newPath += "/"
		}

		taken, err := pathTaken(ctx, tx, owner, newPath)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%s: %w", newPath, ErrConflict)
		}

		// Collect before rewriting; the walk follows parent ids, which stay put
		nodes, err := collectSubtree(ctx, tx, src)
		if err != nil {
			return err
		}

		if err := tx.RewritePath(ctx, src.ID, dst.ID, newPath); err != nil {
			return err
		}

		for _, n := range nodes[1:] {
			rewritten := newPath + strings.TrimPrefix(n.VirtualPath, src.VirtualPath)
			if err := tx.RewritePath(ctx, n.ID, *n.ParentFolder, rewritten); err != nil {
				return err
			}
		}

		slog.Debug("moved subtree", "owner", owner, "from", src.VirtualPath, "to", newPath, "nodes", len(nodes))
		return nil
	})
	if err != nil {
		return fmt.Errorf("move %s to %s: %w", from, toFolder, err)
	}

	return nil
}

// Copy clones the node at from into the folder at toFolder and returns the
// clone. Copies share content with their source. A copy into the source's
// own folder gets a random "-xxxx" suffix before the extension. Trashed
// sources are not found.
func (s *FileService) Copy(ctx context.Context, owner int64, from, toFolder string) (FileNode, error) {
	if err := ctx.Err(); err != nil {
		return FileNode{}, fmt.Errorf("copy: %w", err)
	}

	var copied FileNode
	err := s.tree.WithTx(ctx, owner, func(ctx context.Context, tx TreeRepo) error {
		src, err := resolve(ctx, tx, owner, from)
		if err != nil {
			return err
		}
		if err := ensureVisible(ctx, tx, src); err != nil {
			return err
		}
		dst, err := resolveFolder(ctx, tx, owner, toFolder)
		if err != nil {
			return err
		}
		if err := ensureVisible(ctx, tx, dst); err != nil {
			return err
		}

		if src.IsFolder && IsWithin(dst.VirtualPath, src.VirtualPath) {
			return fmt.Errorf("folder cannot be copied into itself: %w", ErrInvalidInput)
		}

		name := src.Filename
		if src.ParentFolder != nil && *src.ParentFolder == dst.ID {
			suffix := randomSuffix(2)
			if src.IsFolder {
				name = name + "-" + suffix
			} else {
				name = CopyName(name, suffix)
			}
		}

		copied, err = copyNode(ctx, tx, src, dst, name)
		return err
	})
	if err != nil {
		return FileNode{}, fmt.Errorf("copy %s to %s: %w", from, toFolder, err)
	}

	return copied, nil
}

// TaskStatus returns a task submitted on behalf of owner.
func (s *FileService) TaskStatus(ctx context.Context, owner int64, index int) (tasks.Task, error) {
	if err := ctx.Err(); err != nil {
		return tasks.Task{}, fmt.Errorf("task status: %w", err)
	}

	task, ok := s.queue.Get(index)
	if !ok || task.Owner != owner {
		return tasks.Task{}, fmt.Errorf("task %d: %w", index, ErrNotFound)
	}

	return task, nil
}

// Orphans scans the content store below prefix and returns the keys that no
// node references. pageSize bounds each listing call.
func (s *FileService) Orphans(ctx context.Context, prefix string, pageSize int) ([]string, error) {
	if pageSize <= 0 {
		pageSize = 1000
	}

	var orphans []string
	token := ""
	for {
		if err := ctx.Err(); err != nil {
			return orphans, fmt.Errorf("orphans: %w", err)
		}

		page, err := s.content.ListPrefix(ctx, prefix, pageSize, token)
		if err != nil {
			return orphans, fmt.Errorf("orphans: list %s: %w", prefix, err)
		}

		if len(page.Keys) > 0 {
			refs, err := s.tree.ContentRefs(ctx, page.Keys)
			if err != nil {
				return orphans, fmt.Errorf("orphans: %w", err)
			}
			for _, key := range page.Keys {
				if refs[key] == 0 {
					orphans = append(orphans, key)
				}
			}
		}

		if page.NextToken == "" {
			return orphans, nil
		}
		token = page.NextToken
	}
}

// PurgeOrphans deletes the given content keys.
func (s *FileService) PurgeOrphans(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.content.DeleteMany(ctx, keys); err != nil {
		return fmt.Errorf("purge orphans: %w", err)
	}
	return nil
}

func (s *FileService) cleanup(op string, fn func(ctx context.Context) error) {
	// Use background context for cleanup since the request context may be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		slog.Warn("cleanup failed", "op", op, "err", err)
	}
}

func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

// resolve finds the node a user path names, preferring a file over a folder.
func resolve(ctx context.Context, repo TreeRepo, owner int64, p string) (FileNode, error) {
	clean, err := NormalizePath(p)
	if err != nil {
		return FileNode{}, err
	}

	if clean != "/" {
		node, err := repo.FindByPath(ctx, owner, clean)
		if err == nil {
			return node, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return FileNode{}, err
		}
	}

	return repo.FindByPath(ctx, owner, FolderPath(clean))
}

func resolveFolder(ctx context.Context, repo TreeRepo, owner int64, p string) (FileNode, error) {
	clean, err := NormalizePath(p)
	if err != nil {
		return FileNode{}, err
	}
	return repo.FindByPath(ctx, owner, FolderPath(clean))
}

func ensureVisible(ctx context.Context, repo TreeRepo, node FileNode) error {
	if node.Trashed {
		return fmt.Errorf("%s is trashed: %w", node.VirtualPath, ErrNotFound)
	}

	hidden, err := repo.HasTrashedAncestor(ctx, node.Owner, node.VirtualPath)
	if err != nil {
		return err
	}
	if hidden {
		return fmt.Errorf("%s is inside a trashed folder: %w", node.VirtualPath, ErrNotFound)
	}

	return nil
}

// prepareCreate checks that virtualPath can be created and returns its parent folder.
func prepareCreate(ctx context.Context, repo TreeRepo, owner int64, virtualPath string) (FileNode, error) {
	parent, err := repo.FindByPath(ctx, owner, ParentPath(virtualPath))
	if err != nil {
		return FileNode{}, fmt.Errorf("parent folder: %w", err)
	}

	if err := ensureVisible(ctx, repo, parent); err != nil {
		return FileNode{}, err
	}

	taken, err := pathTaken(ctx, repo, owner, virtualPath)
	if err != nil {
		return FileNode{}, err
	}
	if taken {
		return FileNode{}, fmt.Errorf("%s: %w", virtualPath, ErrConflict)
	}

	return parent, nil
}

// pathTaken reports whether virtualPath, or the same name as the other kind
// of node, already exists.
func pathTaken(ctx context.Context, repo TreeRepo, owner int64, virtualPath string) (bool, error) {
	other := virtualPath + "/"
	if IsFolderPath(virtualPath) {
		other = strings.TrimSuffix(virtualPath, "/")
	}

	for _, p := range []string{virtualPath, other} {
		_, err := repo.FindByPath(ctx, owner, p)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return false, err
		}
	}

	return false, nil
}

// collectSubtree returns root followed by every node below it, trashed or
// not, walking one level at a time.
func collectSubtree(ctx context.Context, repo TreeRepo, root FileNode) ([]FileNode, error) {
	nodes := []FileNode{root}
	for i := 0; i < len(nodes); i++ {
		if !nodes[i].IsFolder {
			continue
		}
		children, err := repo.ListChildren(ctx, nodes[i].ID, true)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, children...)
	}
	return nodes, nil
}

// classifyContent tags each content path left behind by a hard delete.
func classifyContent(ctx context.Context, repo TreeRepo, contentPaths []string) ([]ContentRef, error) {
	seen := make(map[string]bool, len(contentPaths))
	unique := make([]string, 0, len(contentPaths))
	for _, p := range contentPaths {
		if !seen[p] {
			seen[p] = true
			unique = append(unique, p)
		}
	}

	if len(unique) == 0 {
		return nil, nil
	}

	counts, err := repo.ContentRefs(ctx, unique)
	if err != nil {
		return nil, err
	}

	refs := make([]ContentRef, len(unique))
	for i, p := range unique {
		ownership := ContentExclusive
		if counts[p] > 0 {
			ownership = ContentShared
		}
		refs[i] = ContentRef{Path: p, Ownership: ownership}
	}
	return refs, nil
}

// copyNode clones src as name inside dst, then clones the visible children
// of folders depth first.
func copyNode(ctx context.Context, tx TreeRepo, src, dst FileNode, name string) (FileNode, error) {
	virtualPath := dst.VirtualPath + name
	if src.IsFolder {
		virtualPath += "/"
	}

	taken, err := pathTaken(ctx, tx, dst.Owner, virtualPath)
	if err != nil {
		return FileNode{}, err
	}
	if taken {
		return FileNode{}, fmt.Errorf("%s: %w", virtualPath, ErrConflict)
	}

	clone, err := tx.CreateNode(ctx, NewNode{
		Owner:        dst.Owner,
		VirtualPath:  virtualPath,
		ContentPath:  src.ContentPath,
		IsFolder:     src.IsFolder,
		ParentFolder: &dst.ID,
	})
	if err != nil {
		return FileNode{}, err
	}

	if !src.IsFolder {
		return clone, nil
	}

	children, err := tx.ListChildren(ctx, src.ID, false)
	if err != nil {
		return FileNode{}, err
	}

	for _, child := range children {
		if _, err := copyNode(ctx, tx, child, clone, child.Filename); err != nil {
			return FileNode{}, err
		}
	}

	return clone, nil
}
