package litestore

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxSegmentLength is the longest allowed file or folder name in bytes.
const maxSegmentLength = 255

// IsValidPath validates a user supplied virtual path.
// It checks that the path:
//   - is valid UTF-8
//   - does not contain ".." or "." segments
//   - does not contain invalid characters: \ and null bytes
//   - does not contain control characters (< 0x20) or DEL (0x7f)
//   - has no segment longer than 255 bytes
//
// A leading and trailing "/" is optional; empty segments are ignored.
func IsValidPath(p string) bool {
	if !utf8.ValidString(p) {
		return false
	}

	if strings.ContainsRune(p, '\\') {
		return false
	}

	for _, r := range p {
		if r == 0 || r < 0x20 || r == 0x7f {
			return false
		}
	}

	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." || len(seg) > maxSegmentLength {
			return false
		}
		if seg != "" && strings.TrimFunc(seg, unicode.IsSpace) == "" {
			return false
		}
	}

	return true
}

// NormalizePath turns a user supplied path into its canonical form: rooted at
// "/", without a trailing slash, and without empty segments. The user root is
// "/". Invalid paths yield ErrInvalidInput.
func NormalizePath(p string) (string, error) {
	if !IsValidPath(p) {
		return "", fmt.Errorf("normalize path %q: %w", p, ErrInvalidInput)
	}
	return path.Clean("/" + p), nil
}

// FolderPath returns the virtual path of a folder: its canonical path with a trailing "/".
func FolderPath(clean string) string {
	if clean == "/" {
		return "/"
	}
	return strings.TrimSuffix(clean, "/") + "/"
}

// ParentPath returns the virtual path of the folder containing virtualPath,
// or "" for the user root.
func ParentPath(virtualPath string) string {
	if virtualPath == "/" || virtualPath == "" {
		return ""
	}
	dir := path.Dir(strings.TrimSuffix(virtualPath, "/"))
	return FolderPath(dir)
}

// BaseName returns the last segment of a virtual path without any slash.
func BaseName(virtualPath string) string {
	trimmed := strings.TrimSuffix(virtualPath, "/")
	if trimmed == "" {
		return ""
	}
	return path.Base(trimmed)
}

// IsFolderPath reports whether virtualPath names a folder.
func IsFolderPath(virtualPath string) bool {
	return strings.HasSuffix(virtualPath, "/")
}

// IsWithin reports whether virtualPath equals folder or lies below it.
func IsWithin(virtualPath, folder string) bool {
	return strings.HasPrefix(virtualPath, FolderPath(strings.TrimSuffix(folder, "/")))
}

// CopyName inserts "-<suffix>" between the stem and the extension of name.
// Names without a stem, such as ".env", get the suffix appended.
func CopyName(name, suffix string) string {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		return name + "-" + suffix
	}
	return stem + "-" + suffix + ext
}

// randomSuffix returns n random bytes as lowercase hex.
func randomSuffix(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// AncestorPaths returns the virtual paths of every folder strictly above
// virtualPath, starting at the user root.
func AncestorPaths(virtualPath string) []string {
	var paths []string
	for p := ParentPath(virtualPath); p != ""; p = ParentPath(p) {
		paths = append(paths, p)
	}
	slices.Reverse(paths)
	return paths
}
