package clientcli

import "time"

// UploadOptions configures an upload operation.
type UploadOptions struct {
	LocalPath  string
	RemotePath string
	Recursive  bool
}

// UploadResult represents the result of uploading a single file.
type UploadResult struct {
	LocalPath  string `json:"local_path"`
	RemotePath string `json:"remote_path"`
	Size       int64  `json:"size_bytes"`
	Parts      int    `json:"parts"`
	Err        error  `json:"-"` // nil on success
}

// DownloadOptions configures a download operation.
type DownloadOptions struct {
	RemotePath string
	LocalPath  string // empty = derive from remote, "-" = stdout
}

// DownloadResult represents the result of downloading a file.
type DownloadResult struct {
	RemotePath  string `json:"remote_path"`
	LocalPath   string `json:"local_path"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size_bytes"`
}

// DeleteResult represents the result of deleting a single path.
type DeleteResult struct {
	Path    string `json:"path"`
	Deleted bool   `json:"deleted"`
	TaskID  int    `json:"task_id"`
	Err     error  `json:"-"` // nil on success
}

// Node is a file or folder as returned by the server.
type Node struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	VirtualPath string    `json:"virtualPath"`
	IsFolder    bool      `json:"isFolder"`
	Trashed     bool      `json:"trashed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Task is the state of a background cleanup task.
type Task struct {
	ID          int        `json:"id"`
	Label       string     `json:"label"`
	State       string     `json:"state"`
	Error       string     `json:"error,omitempty"`
	SubmittedAt time.Time  `json:"submittedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
}

// LinkOptions configures a share link. Nil fields are left unset.
// The Clear flags only apply to EditLink.
type LinkOptions struct {
	ExpiresAt          *time.Time `json:"expiresAt,omitempty"`
	Password           *string    `json:"password,omitempty"`
	DownloadLimit      *int       `json:"downloadLimit,omitempty"`
	ClearExpiry        bool       `json:"clearExpiry,omitempty"`
	ClearDownloadLimit bool       `json:"clearDownloadLimit,omitempty"`
}

// Link is a share link owned by the caller.
type Link struct {
	ID            string     `json:"uuid"`
	FileID        int64      `json:"fileId"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	DownloadLimit *int       `json:"downloadLimit,omitempty"`
	DownloadCount int        `json:"downloadCount"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// LinkInfo is the public description of a share link.
type LinkInfo struct {
	Filename          string     `json:"filename"`
	PasswordProtected bool       `json:"passwordProtected"`
	DownloadCount     int        `json:"downloadCount"`
	DownloadLimit     *int       `json:"downloadLimit,omitempty"`
	ExpiresAt         *time.Time `json:"expiresAt,omitempty"`
}

// uploadPlan mirrors the server's answer to an upload request.
type uploadPlan struct {
	UploadID string   `json:"uploadId,omitempty"`
	Links    []string `json:"links"`
	Sizes    []int64  `json:"sizes"`
}

// grant mirrors the server's answer to a link redemption.
type grant struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
