package litestore_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lines-of-codes/litestore"
)

func TestIsValidPath(t *testing.T) {
	// Create a path with invalid UTF-8 (without embedding raw invalid bytes in source)
	invalidUTF8 := string([]byte{'/', 'a', 0xff, 'b'})

	tt := []struct {
		Name string
		Path string
		Want bool
	}{
		// Basics
		{Name: "root path", Path: "/", Want: true},
		{Name: "empty path is the root", Path: "", Want: true},
		{Name: "no leading slash", Path: "docs/report.txt", Want: true},
		{Name: "folder with trailing slash", Path: "/docs/", Want: true},
		{Name: "double slash is collapsed", Path: "/a//b", Want: true},

		// Dot segments are invalid
		{Name: "double dots segment", Path: "../", Want: false},
		{Name: "double dots in middle segment", Path: "a/../b", Want: false},
		{Name: "double dots at end", Path: "/a/..", Want: false},
		{Name: "single dot segment", Path: "a/./b", Want: false},
		{Name: "single dot only", Path: ".", Want: false},

		// Dots inside names are fine
		{Name: "double dots in filename", Path: "/a/b..c", Want: true},
		{Name: "hidden file", Path: "/.env", Want: true},

		// Forbidden characters
		{Name: "contains backslash", Path: `some\path/file.ext`, Want: false},
		{Name: "contains tab", Path: "some\tpath/file.ext", Want: false},
		{Name: "contains newline", Path: "some\npath/file.ext", Want: false},
		{Name: "contains NUL", Path: "some\x00path/file.ext", Want: false},
		{Name: "contains DEL", Path: "some\x7fpath/file.ext", Want: false},
		{Name: "whitespace only segment", Path: "/docs/   /a", Want: false},

		// UTF-8 validity
		{Name: "invalid utf8", Path: invalidUTF8, Want: false},

		// Segment length
		{Name: "segment at limit", Path: "/" + strings.Repeat("a", 255), Want: true},
		{Name: "segment over limit", Path: "/" + strings.Repeat("a", 256), Want: false},

		// Valid examples
		{Name: "space inside a name", Path: "/My Documents/tax return.pdf", Want: true},
		{Name: "unicode", Path: "/привет/世界/file.ext", Want: true},
	}

	// sanity check for our generated invalid UTF-8 case
	if utf8.ValidString(invalidUTF8) {
		t.Fatalf("test setup error: invalidUTF8 is unexpectedly valid")
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			assert.Equal(t, tc.Want, litestore.IsValidPath(tc.Path), "path %q", tc.Path)
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: "/"},
		{in: "/", want: "/"},
		{in: "docs", want: "/docs"},
		{in: "/docs/", want: "/docs"},
		{in: "//docs///report.txt", want: "/docs/report.txt"},
	}

	for _, tt := range tests {
		got, err := litestore.NormalizePath(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := litestore.NormalizePath("/a/../b")
	assert.ErrorIs(t, err, litestore.ErrInvalidInput)
}

func TestPathHelpers(t *testing.T) {
	t.Run("FolderPath", func(t *testing.T) {
		assert.Equal(t, "/", litestore.FolderPath("/"))
		assert.Equal(t, "/docs/", litestore.FolderPath("/docs"))
		assert.Equal(t, "/docs/", litestore.FolderPath("/docs/"))
	})

	t.Run("ParentPath", func(t *testing.T) {
		assert.Equal(t, "", litestore.ParentPath("/"))
		assert.Equal(t, "/", litestore.ParentPath("/docs/"))
		assert.Equal(t, "/", litestore.ParentPath("/report.txt"))
		assert.Equal(t, "/docs/", litestore.ParentPath("/docs/report.txt"))
		assert.Equal(t, "/docs/", litestore.ParentPath("/docs/old/"))
	})

	t.Run("BaseName", func(t *testing.T) {
		assert.Equal(t, "", litestore.BaseName("/"))
		assert.Equal(t, "docs", litestore.BaseName("/docs/"))
		assert.Equal(t, "report.txt", litestore.BaseName("/docs/report.txt"))
	})

	t.Run("IsWithin", func(t *testing.T) {
		assert.True(t, litestore.IsWithin("/docs/", "/docs/"))
		assert.True(t, litestore.IsWithin("/docs/a/b/", "/docs/"))
		assert.True(t, litestore.IsWithin("/docs/a.txt", "/docs"))
		assert.False(t, litestore.IsWithin("/docs2/", "/docs/"))
		assert.False(t, litestore.IsWithin("/", "/docs/"))
		assert.True(t, litestore.IsWithin("/anything/", "/"))
	})
}

func TestCopyName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "report.txt", want: "report-ab12.txt"},
		{name: "archive.tar.gz", want: "archive.tar-ab12.gz"},
		{name: "Makefile", want: "Makefile-ab12"},
		{name: ".env", want: ".env-ab12"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, litestore.CopyName(tt.name, "ab12"), tt.name)
	}
}

func TestAncestorPaths(t *testing.T) {
	assert.Empty(t, litestore.AncestorPaths("/"))
	assert.Equal(t, []string{"/"}, litestore.AncestorPaths("/report.txt"))
	assert.Equal(t, []string{"/"}, litestore.AncestorPaths("/docs/"))
	assert.Equal(t, []string{"/", "/docs/", "/docs/old/"}, litestore.AncestorPaths("/docs/old/a.txt"))
}
