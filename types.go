package litestore

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// FileNode is a file or folder in a user's virtual tree.
type FileNode struct {
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	VirtualPath  string    `json:"virtualPath"`
	ContentPath  string    `json:"-"`
	IsFolder     bool      `json:"isFolder"`
	ParentFolder *int64    `json:"parentFolder"`
	Owner        int64     `json:"owner"`
	Trashed      bool      `json:"trashed"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewNode describes a row to insert into the tree.
type NewNode struct {
	Owner        int64
	VirtualPath  string
	ContentPath  string
	IsFolder     bool
	ParentFolder *int64
}

// UploadPlan is the ordered list of presigned part URLs for one upload.
// Sizes sum to the declared object size. UploadID is set only when the plan
// is a multipart upload that must be completed explicitly.
type UploadPlan struct {
	UploadID string   `json:"uploadId,omitempty"`
	Links    []string `json:"links"`
	Sizes    []int64  `json:"sizes"`
}

// IsMultipart reports whether the plan needs an explicit completion step.
func (p UploadPlan) IsMultipart() bool {
	return p.UploadID != ""
}

// UploadResult is returned by FileService.Upload.
type UploadResult struct {
	Node FileNode
	Plan UploadPlan
}

// KeyPage is one page of a content store prefix scan.
type KeyPage struct {
	Keys      []string
	NextToken string
}

// ContentOwnership tells whether a content object is still referenced by
// another node after a hard delete.
type ContentOwnership string

const (
	// ContentExclusive content has no remaining references and may be purged.
	ContentExclusive ContentOwnership = "exclusive"
	// ContentShared content is still referenced by a copy and must be kept.
	ContentShared ContentOwnership = "shared"
)

// ContentRef is a content path with its ownership state.
type ContentRef struct {
	Path      string
	Ownership ContentOwnership
}

// ShareLink grants anonymous download access to one file.
type ShareLink struct {
	ID            uuid.UUID  `json:"uuid"`
	FileID        int64      `json:"fileId"`
	CreatedBy     int64      `json:"createdBy"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	PasswordHash  string     `json:"-"`
	DownloadLimit *int       `json:"downloadLimit,omitempty"`
	DownloadCount int        `json:"downloadCount"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// PasswordProtected reports whether redeeming the link requires a password.
func (l ShareLink) PasswordProtected() bool {
	return l.PasswordHash != ""
}

// Exhausted reports whether the download limit has been reached.
func (l ShareLink) Exhausted() bool {
	return l.DownloadLimit != nil && l.DownloadCount >= *l.DownloadLimit
}

// Expired reports whether the link expired before now.
func (l ShareLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// NewShareLink describes a link to insert.
type NewShareLink struct {
	ID            uuid.UUID
	FileID        int64
	CreatedBy     int64
	ExpiresAt     *time.Time
	PasswordHash  string
	DownloadLimit *int
}

// LinkUpdate holds the fields to change on a link. Nil fields are left as is.
// An empty PasswordHash removes the password. The Clear flags remove the
// expiry or download limit and take precedence over the matching field.
type LinkUpdate struct {
	ExpiresAt          *time.Time
	PasswordHash       *string
	DownloadLimit      *int
	ClearExpiry        bool
	ClearDownloadLimit bool
}

// LinkOptions are the caller supplied settings for creating or editing a link.
// A nil Password leaves the password unchanged on edit; an empty one clears it.
// ClearExpiry and ClearDownloadLimit only apply to edits.
type LinkOptions struct {
	ExpiresAt          *time.Time
	Password           *string
	DownloadLimit      *int
	ClearExpiry        bool
	ClearDownloadLimit bool
}

// LinkInfo is the public view of a share link.
type LinkInfo struct {
	Filename          string     `json:"filename"`
	PasswordProtected bool       `json:"passwordProtected"`
	DownloadCount     int        `json:"downloadCount"`
	DownloadLimit     *int       `json:"downloadLimit,omitempty"`
	ExpiresAt         *time.Time `json:"expiresAt,omitempty"`
}

// DownloadGrant is returned by a successful link redemption.
type DownloadGrant struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// User is an account owning one virtual tree.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
}

// NewUser describes an account to insert.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
}

// Tables holds configurable table names for metadata storage.
type Tables struct {
	Users     string `mapstructure:"users"`
	Files     string `mapstructure:"files"`
	FileLinks string `mapstructure:"file_links"`
}

// DefaultTables returns the table names used when none are configured.
func DefaultTables() Tables {
	return Tables{Users: "users", Files: "files", FileLinks: "file_links"}
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set, valid and distinct.
func (t Tables) Validate() error {
	names := []struct {
		label string
		value string
	}{
		{"users", t.Users},
		{"files", t.Files},
		{"file_links", t.FileLinks},
	}

	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if n.value == "" {
			return fmt.Errorf("validate tables: %s table name cannot be empty", n.label)
		}
		if !IsValidTableName(n.value) {
			return fmt.Errorf("validate tables: invalid %s table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", n.label, n.value)
		}
		if seen[n.value] {
			return errors.New("validate tables: table names must be distinct")
		}
		seen[n.value] = true
	}

	return nil
}
