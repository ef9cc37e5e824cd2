package litestore

import (
	"context"

	"github.com/google/uuid"
)

// TreeRepo defines the persistence of the per-user file tree.
// Implementations must be safe for concurrent use.
//
// All methods accept a context for cancellation and timeout control.
// Recursive operations call the methods of the repo handed to WithTx so that
// every statement of one operation shares a transaction.
type TreeRepo interface {
	// CreateNode inserts a node. The filename is derived from the virtual path.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - node: owner, virtual path, content path, folder flag and parent id
	//
	// Returns:
	//   - FileNode: The created node with id and timestamps
	//   - error: ErrConflict if (virtual_path, owner) exists, or other database errors
	CreateNode(ctx context.Context, node NewNode) (FileNode, error)

	// FindByPath looks up a node by exact virtual path.
	//
	// Returns:
	//   - FileNode: The node, trashed or not
	//   - error: ErrNotFound if no node has that path
	FindByPath(ctx context.Context, owner int64, virtualPath string) (FileNode, error)

	// GetNode looks up a node by id. Returns ErrNotFound if it doesn't exist.
	GetNode(ctx context.Context, id int64) (FileNode, error)

	// ListChildren returns the direct children of a folder ordered by id.
	// Trashed children are included only when includeTrashed is true.
	ListChildren(ctx context.Context, parentID int64, includeTrashed bool) ([]FileNode, error)

	// SetTrashed flips the trash flag of one node.
	// Returns ErrNotFound if the node doesn't exist.
	SetTrashed(ctx context.Context, id int64, trashed bool) error

	// HardDelete removes all nodes in ids in a single statement.
	//
	// Returns:
	//   - []string: content paths of the deleted rows
	//   - error: Any database error; on error no rows are removed
	HardDelete(ctx context.Context, ids []int64) ([]string, error)

	// RewritePath moves one node under a new parent and path.
	// Descendants are not touched.
	// Returns ErrNotFound if the node doesn't exist, ErrConflict if the path is taken.
	RewritePath(ctx context.Context, id, parentID int64, virtualPath string) error

	// ContentRefs counts the nodes still pointing at each content path.
	// Paths without references are absent from the result.
	ContentRefs(ctx context.Context, contentPaths []string) (map[string]int, error)

	// HasTrashedAncestor reports whether any folder strictly above virtualPath is trashed.
	HasTrashedAncestor(ctx context.Context, owner int64, virtualPath string) (bool, error)

	// WithTx runs fn in a transaction serialized against other transactions of
	// the same owner. The repo passed to fn is bound to the transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, owner int64, fn func(ctx context.Context, tx TreeRepo) error) error
}

// LinkRepo defines the persistence of share links.
type LinkRepo interface {
	// CreateLink inserts a link with a download count of zero.
	CreateLink(ctx context.Context, link NewShareLink) (ShareLink, error)

	// GetLink returns a link by id, or ErrNotFound.
	// Inside WithTx the row is locked until the transaction ends.
	GetLink(ctx context.Context, id uuid.UUID) (ShareLink, error)

	// ListLinks returns the links created by a user, newest first.
	ListLinks(ctx context.Context, createdBy int64) ([]ShareLink, error)

	// UpdateLink applies the non-nil fields of update. Returns ErrNotFound if the link doesn't exist.
	UpdateLink(ctx context.Context, id uuid.UUID, update LinkUpdate) error

	// SetDownloadCount persists a new download count. Returns ErrNotFound if the link doesn't exist.
	SetDownloadCount(ctx context.Context, id uuid.UUID, count int) error

	// DeleteLink removes a link. Returns ErrNotFound if the link doesn't exist.
	DeleteLink(ctx context.Context, id uuid.UUID) error

	// WithTx runs fn in a transaction with a transaction-bound repo.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx LinkRepo) error) error
}

// UserRepo defines the persistence of accounts.
type UserRepo interface {
	// CreateUser inserts an account. Returns ErrConflict if the username or email is taken.
	CreateUser(ctx context.Context, user NewUser) (User, error)
	// GetUserByUsername returns ErrNotFound for unknown usernames.
	GetUserByUsername(ctx context.Context, username string) (User, error)
	// TouchLogin records the time of a successful login.
	TouchLogin(ctx context.Context, id int64) error
	// DeleteUser removes an account. Returns ErrNotFound if it doesn't exist.
	DeleteUser(ctx context.Context, id int64) error
}

// ContentStore defines the object storage backend holding file bytes.
// Implementations can use S3 compatible services or the local filesystem.
//
// URLs returned by the store are presigned: the holder can perform exactly
// one kind of request against one key until the URL expires.
type ContentStore interface {
	// UploadPlan prepares the upload of size bytes to contentPath.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - contentPath: the object key
	//   - size: the declared size in bytes
	//
	// Returns:
	//   - UploadPlan: one URL for small objects, one URL per part otherwise (see PlanParts)
	//   - error: ErrInvalidInput for negative sizes, or backend errors
	UploadPlan(ctx context.Context, contentPath string, size int64) (UploadPlan, error)

	// CompleteUpload assembles the uploaded parts of a multipart upload.
	CompleteUpload(ctx context.Context, contentPath, uploadID string) error

	// AbortUpload discards a multipart upload and its parts.
	AbortUpload(ctx context.Context, contentPath, uploadID string) error

	// DownloadURL returns a presigned GET URL. No existence check is performed.
	// The filename is offered to the client as the attachment name.
	DownloadURL(ctx context.Context, contentPath, filename string) (string, error)

	// CreateFolderMarker writes a zero-length object at contentPath.
	CreateFolderMarker(ctx context.Context, contentPath string) error

	// Delete removes one object. Missing objects are not an error.
	Delete(ctx context.Context, contentPath string) error

	// DeleteMany removes many objects, batching and parallelizing as the backend allows.
	// The returned error joins every failed batch.
	DeleteMany(ctx context.Context, contentPaths []string) error

	// ListPrefix returns up to maxKeys keys under prefix in lexical order,
	// starting after the position encoded by token ("" for the first page).
	ListPrefix(ctx context.Context, prefix string, maxKeys int, token string) (KeyPage, error)
}

// PasswordHasher hashes and verifies secrets such as link passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns nil when password matches hash.
	Compare(hash, password string) error
}
