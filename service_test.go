package litestore_test

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lines-of-codes/litestore"
	"github.com/lines-of-codes/litestore/tasks"
)

func TestNewFileService_RequiresDependencies(t *testing.T) {
	_, err := litestore.NewFileService(nil, newMemStore(), tasks.NewQueue(0), litestore.ServiceConfig{})
	assert.Error(t, err)

	f := newFixture(t)
	_, err = litestore.NewFileService(f.tree, nil, f.queue, litestore.ServiceConfig{})
	assert.Error(t, err)

	_, err = litestore.NewFileService(f.tree, f.store, nil, litestore.ServiceConfig{})
	assert.Error(t, err)
}

func TestFileService_CreateRoot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.node(t, "/")
	assert.True(t, root.IsFolder)
	assert.Nil(t, root.ParentFolder)
	assert.Equal(t, "users/1/", root.ContentPath)
	assert.True(t, f.store.has("users/1/"), "root folder marker")

	again, err := f.files.CreateRoot(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, root.ID, again.ID, "second call returns the existing root")

	other, err := f.files.CreateRoot(ctx, 2)
	require.NoError(t, err)
	assert.NotEqual(t, root.ID, other.ID)
	assert.Equal(t, litestore.RootContentPath(2), other.ContentPath)
}

func TestFileService_CreateFolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	docs := f.mkdir(t, "/docs")
	assert.Equal(t, "/docs/", docs.VirtualPath)
	assert.Equal(t, "docs", docs.Filename)
	assert.Regexp(t, `^users/1/[0-9a-f-]{36}/$`, docs.ContentPath)
	assert.True(t, f.store.has(docs.ContentPath), "folder marker")

	nested := f.mkdir(t, "/docs/2024/")
	assert.Equal(t, "/docs/2024/", nested.VirtualPath)
	require.NotNil(t, nested.ParentFolder)
	assert.Equal(t, docs.ID, *nested.ParentFolder)

	f.upload(t, "/notes", 10)

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{name: "root", path: "/", wantErr: litestore.ErrConflict},
		{name: "existing folder", path: "/docs", wantErr: litestore.ErrConflict},
		{name: "name taken by a file", path: "/notes", wantErr: litestore.ErrConflict},
		{name: "missing parent", path: "/missing/child", wantErr: litestore.ErrNotFound},
		{name: "invalid path", path: "/a/../b", wantErr: litestore.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.files.CreateFolder(ctx, owner, tt.path)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFileService_CreateFolder_InsideTrash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mkdir(t, "/old")
	f.mkdir(t, "/old/deep")
	require.NoError(t, f.files.Trash(ctx, owner, "/old", true))

	_, err := f.files.CreateFolder(ctx, owner, "/old/new")
	assert.ErrorIs(t, err, litestore.ErrNotFound)

	_, err = f.files.CreateFolder(ctx, owner, "/old/deep/new")
	assert.ErrorIs(t, err, litestore.ErrNotFound, "trashed ancestor hides the parent")
}

func TestFileService_CreateFolder_MarkerFailure(t *testing.T) {
	f := newFixture(t)
	f.store.markerErr = errors.New("bucket unavailable")

	_, err := f.files.CreateFolder(context.Background(), owner, "/docs")
	assert.ErrorIs(t, err, litestore.ErrInternal)

	_, err = f.tree.FindByPath(context.Background(), owner, "/docs/")
	assert.ErrorIs(t, err, litestore.ErrNotFound, "no row without a marker")
}

func TestFileService_CreateFolder_RemovesMarkerWhenInsertFails(t *testing.T) {
	f := newFixture(t)

	files, err := litestore.NewFileService(
		&failingTree{TreeRepo: f.tree, createErr: errors.New("disk full")},
		f.store, f.queue, litestore.ServiceConfig{},
	)
	require.NoError(t, err)

	_, err = files.CreateFolder(context.Background(), owner, "/docs")
	require.Error(t, err)

	for key := range f.store.objects {
		assert.Equal(t, "users/1/", key, "only the root marker is left")
	}
}

func TestFileService_Upload_SinglePart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.files.Upload(ctx, owner, "/Photo.JPG", 1234)
	require.NoError(t, err)

	assert.False(t, res.Plan.IsMultipart())
	assert.Len(t, res.Plan.Links, 1)
	assert.Equal(t, []int64{1234}, res.Plan.Sizes)

	assert.Equal(t, "/Photo.JPG", res.Node.VirtualPath)
	assert.Equal(t, "Photo.JPG", res.Node.Filename)
	assert.False(t, res.Node.IsFolder)
	assert.Regexp(t, `^users/1/[0-9a-f-]{36}\.jpg$`, res.Node.ContentPath)

	found := f.node(t, "/Photo.JPG")
	assert.Equal(t, res.Node.ID, found.ID)
}

func TestFileService_Upload_Multipart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const size = 20 << 20

	res, err := f.files.Upload(ctx, owner, "/video.mp4", size)
	require.NoError(t, err)

	require.True(t, res.Plan.IsMultipart())
	assert.Len(t, res.Plan.Links, 2)
	assert.Equal(t, int64(size), sum(res.Plan.Sizes))
	assert.False(t, f.store.has(res.Node.ContentPath), "object appears on completion")

	require.NoError(t, f.files.CompleteUpload(ctx, owner, "/video.mp4", res.Plan.UploadID))
	assert.True(t, f.store.has(res.Node.ContentPath))

	err = f.files.CompleteUpload(ctx, owner, "/video.mp4", res.Plan.UploadID)
	assert.ErrorIs(t, err, litestore.ErrNotFound, "upload already completed")
}

func TestFileService_Upload_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.upload(t, "/a.txt", 1)
	f.mkdir(t, "/dir")

	tests := []struct {
		name    string
		path    string
		size    int64
		wantErr error
	}{
		{name: "root", path: "/", size: 1, wantErr: litestore.ErrInvalidInput},
		{name: "negative size", path: "/b.txt", size: -1, wantErr: litestore.ErrInvalidInput},
		{name: "too large", path: "/b.txt", size: litestore.MaxObjectSize + 1, wantErr: litestore.ErrInvalidInput},
		{name: "existing file", path: "/a.txt", size: 1, wantErr: litestore.ErrConflict},
		{name: "name taken by a folder", path: "/dir", size: 1, wantErr: litestore.ErrConflict},
		{name: "missing parent", path: "/nope/b.txt", size: 1, wantErr: litestore.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.files.Upload(ctx, owner, tt.path, tt.size)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("plan failure leaves no row", func(t *testing.T) {
		f.store.planErr = errors.New("presign failed")
		defer func() { f.store.planErr = nil }()

		_, err := f.files.Upload(ctx, owner, "/c.txt", 1)
		assert.ErrorIs(t, err, litestore.ErrInternal)

		_, err = f.tree.FindByPath(ctx, owner, "/c.txt")
		assert.ErrorIs(t, err, litestore.ErrNotFound)
	})
}

func TestFileService_Upload_AbortsMultipartWhenInsertFails(t *testing.T) {
	f := newFixture(t)

	files, err := litestore.NewFileService(
		&failingTree{TreeRepo: f.tree, createErr: errors.New("disk full")},
		f.store, f.queue, litestore.ServiceConfig{},
	)
	require.NoError(t, err)

	_, err = files.Upload(context.Background(), owner, "/big.bin", 32<<20)
	require.Error(t, err)

	assert.Equal(t, []string{"upload-1"}, f.store.aborted)
	assert.Empty(t, f.store.uploads)
}

func TestFileService_CompleteUpload_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.upload(t, "/a.txt", 1)

	err := f.files.CompleteUpload(ctx, owner, "/a.txt", "")
	assert.ErrorIs(t, err, litestore.ErrInvalidInput)

	err = f.files.CompleteUpload(ctx, owner, "/missing.txt", "upload-1")
	assert.ErrorIs(t, err, litestore.ErrNotFound)

	err = f.files.CompleteUpload(ctx, owner, "/a.txt", "bogus")
	assert.ErrorIs(t, err, litestore.ErrNotFound)
}

func TestFileService_Download(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n := f.upload(t, "/docs.pdf", 10)
	f.mkdir(t, "/dir")

	url, err := f.files.Download(ctx, owner, "/docs.pdf")
	require.NoError(t, err)
	assert.Contains(t, url, n.ContentPath)
	assert.Contains(t, url, "name=docs.pdf")

	_, err = f.files.Download(ctx, owner, "/dir")
	assert.ErrorIs(t, err, litestore.ErrInvalidInput)

	_, err = f.files.Download(ctx, owner, "/missing")
	assert.ErrorIs(t, err, litestore.ErrNotFound)

	_, err = f.files.Download(ctx, 2, "/docs.pdf")
	assert.ErrorIs(t, err, litestore.ErrNotFound, "paths are scoped by owner")
}

func TestFileService_TrashHidesFromListingOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.upload(t, "/a.txt", 1)
	f.upload(t, "/b.txt", 1)

	require.NoError(t, f.files.Trash(ctx, owner, "/a.txt", true))

	children, err := f.files.List(ctx, owner, "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, names(children))

	_, err = f.files.Download(ctx, owner, "/a.txt")
	assert.NoError(t, err, "trashed files stay downloadable")

	require.NoError(t, f.files.Trash(ctx, owner, "/a.txt", true), "trashing twice is a no-op")
	assert.True(t, f.node(t, "/a.txt").Trashed)

	require.NoError(t, f.files.Trash(ctx, owner, "/a.txt", false))
	children, err = f.files.List(ctx, owner, "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, names(children))
}

func TestFileService_Trash_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.files.Trash(ctx, owner, "/", true), litestore.ErrInvalidInput)
	assert.ErrorIs(t, f.files.Trash(ctx, owner, "/missing", true), litestore.ErrNotFound)
}

func TestFileService_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mkdir(t, "/b")
	f.mkdir(t, "/a")
	f.upload(t, "/z.txt", 1)
	f.upload(t, "/c.txt", 1)
	f.mkdir(t, "/a/inner")
	f.upload(t, "/a/inner/x.txt", 1)

	children, err := f.files.List(ctx, owner, "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c.txt", "z.txt"}, names(children), "folders first, then by name")

	children, err = f.files.List(ctx, owner, "/a/inner/")
	require.NoError(t, err)
	assert.Equal(t, []string{"x.txt"}, names(children))

	children, err = f.files.List(ctx, owner, "/b")
	require.NoError(t, err)
	assert.Empty(t, children)

	_, err = f.files.List(ctx, owner, "/c.txt")
	assert.ErrorIs(t, err, litestore.ErrNotFound, "files cannot be listed")

	_, err = f.files.List(ctx, owner, "/missing")
	assert.ErrorIs(t, err, litestore.ErrNotFound)
}

func TestFileService_List_TrashedFolders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mkdir(t, "/a")
	f.mkdir(t, "/a/b")
	f.mkdir(t, "/a/b/c")
	require.NoError(t, f.files.Trash(ctx, owner, "/a", true))

	for _, p := range []string{"/a", "/a/b", "/a/b/c"} {
		_, err := f.files.List(ctx, owner, p)
		assert.ErrorIs(t, err, litestore.ErrNotFound, p)
	}

	require.NoError(t, f.files.Trash(ctx, owner, "/a", false))
	_, err := f.files.List(ctx, owner, "/a/b/c")
	assert.NoError(t, err)
}

func TestFileService_Delete_File(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n := f.upload(t, "/a.txt", 1)
	require.True(t, f.store.has(n.ContentPath))

	index, err := f.files.Delete(ctx, owner, "/a.txt")
	require.NoError(t, err)

	_, err = f.tree.FindByPath(ctx, owner, "/a.txt")
	assert.ErrorIs(t, err, litestore.ErrNotFound, "metadata is gone before the purge finishes")

	f.waitTasks(t)
	task, err := f.files.TaskStatus(ctx, owner, index)
	require.NoError(t, err)
	assert.Equal(t, tasks.StateSucceeded, task.State)
	assert.Equal(t, "purge", task.Label)
	assert.False(t, f.store.has(n.ContentPath))
}

func TestFileService_Delete_FolderSubtree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dir := f.mkdir(t, "/dir")
	sub := f.mkdir(t, "/dir/sub")
	a := f.upload(t, "/dir/a.txt", 1)
	b := f.upload(t, "/dir/sub/b.txt", 1)
	c := f.upload(t, "/dir/sub/c.txt", 1)
	keep := f.upload(t, "/keep.txt", 1)
	require.NoError(t, f.files.Trash(ctx, owner, "/dir/sub/c.txt", true))

	_, err := f.files.Delete(ctx, owner, "/dir")
	require.NoError(t, err)
	f.waitTasks(t)

	for _, n := range []litestore.FileNode{dir, sub, a, b, c} {
		_, err := f.tree.GetNode(ctx, n.ID)
		assert.ErrorIs(t, err, litestore.ErrNotFound, n.VirtualPath)
		assert.False(t, f.store.has(n.ContentPath), n.VirtualPath)
	}

	assert.True(t, f.store.has(keep.ContentPath))
	children, err := f.files.List(ctx, owner, "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.txt"}, names(children))
}

func TestFileService_Delete_KeepsSharedContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mkdir(t, "/backup")
	original := f.upload(t, "/report.txt", 5)

	clone, err := f.files.Copy(ctx, owner, "/report.txt", "/backup")
	require.NoError(t, err)
	assert.Equal(t, original.ContentPath, clone.ContentPath)

	_, err = f.files.Delete(ctx, owner, "/report.txt")
	require.NoError(t, err)
	f.waitTasks(t)

	assert.True(t, f.store.has(original.ContentPath), "the copy still references the content")

	url, err := f.files.Download(ctx, owner, "/backup/report.txt")
	require.NoError(t, err)
	assert.Contains(t, url, original.ContentPath)

	_, err = f.files.Delete(ctx, owner, "/backup/report.txt")
	require.NoError(t, err)
	f.waitTasks(t)

	assert.False(t, f.store.has(original.ContentPath), "last reference gone")
}

func TestFileService_Delete_PurgeFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.upload(t, "/a.txt", 1)
	f.store.purgeErr = errors.New("access denied")

	index, err := f.files.Delete(ctx, owner, "/a.txt")
	require.NoError(t, err)
	f.waitTasks(t)

	task, err := f.files.TaskStatus(ctx, owner, index)
	require.NoError(t, err)
	assert.Equal(t, tasks.StateFailed, task.State)
	assert.Contains(t, task.Error, "access denied")

	_, err = f.tree.FindByPath(ctx, owner, "/a.txt")
	assert.ErrorIs(t, err, litestore.ErrNotFound)
}

func TestFileService_Delete_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.files.Delete(ctx, owner, "/")
	assert.ErrorIs(t, err, litestore.ErrInvalidInput)

	_, err = f.files.Delete(ctx, owner, "/missing")
	assert.ErrorIs(t, err, litestore.ErrNotFound)
}

func TestFileService_TaskStatus_OwnerScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.upload(t, "/a.txt", 1)
	index, err := f.files.Delete(ctx, owner, "/a.txt")
	require.NoError(t, err)
	f.waitTasks(t)

	_, err = f.files.TaskStatus(ctx, 2, index)
	assert.ErrorIs(t, err, litestore.ErrNotFound)

	_, err = f.files.TaskStatus(ctx, owner, index+100)
	assert.ErrorIs(t, err, litestore.ErrNotFound)
}

func TestFileService_Move_File(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dst := f.mkdir(t, "/dst")
	n := f.upload(t, "/a.txt", 1)

	require.NoError(t, f.files.Move(ctx, owner, "/a.txt", "/dst"))

	moved := f.node(t, "/dst/a.txt")
	assert.Equal(t, n.ID, moved.ID)
	assert.Equal(t, n.ContentPath, moved.ContentPath, "content never moves")
	require.NotNil(t, moved.ParentFolder)
	assert.Equal(t, dst.ID, *moved.ParentFolder)

	_, err := f.tree.FindByPath(ctx, owner, "/a.txt")
	assert.ErrorIs(t, err, litestore.ErrNotFound)
}

func TestFileService_Move_FolderRewritesDescendants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mkdir(t, "/src")
	f.mkdir(t, "/src/a")
	f.mkdir(t, "/src/a/b")
	f.upload(t, "/src/a/b/deep.txt", 1)
	f.upload(t, "/src/top.txt", 1)
	f.mkdir(t, "/dst")

	require.NoError(t, f.files.Move(ctx, owner, "/src", "/dst"))

	for _, p := range []string{"/dst/src/", "/dst/src/a/", "/dst/src/a/b/", "/dst/src/a/b/deep.txt", "/dst/src/top.txt"} {
		n := f.node(t, p)
		assert.Equal(t, litestore.BaseName(p), n.Filename, p)
	}

	moved := f.node(t, "/dst/src/")
	all := []litestore.FileNode{moved}
	for i := 0; i < len(all); i++ {
		children, err := f.tree.ListChildren(ctx, all[i].ID, true)
		require.NoError(t, err)
		all = append(all, children...)
	}
	assert.Len(t, all, 5)
	for _, n := range all {
		assert.True(t, strings.HasPrefix(n.VirtualPath, "/dst/src/"), n.VirtualPath)
	}

	_, err := f.files.List(ctx, owner, "/src")
	assert.ErrorIs(t, err, litestore.ErrNotFound)
}

func TestFileService_Move_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mkdir(t, "/a")
	f.mkdir(t, "/a/b")
	f.mkdir(t, "/other")
	f.upload(t, "/x.txt", 1)
	f.upload(t, "/other/x.txt", 1)
	f.mkdir(t, "/bin")
	require.NoError(t, f.files.Trash(ctx, owner, "/bin", true))

	tests := []struct {
		name     string
		from, to string
		wantErr  error
	}{
		{name: "into itself", from: "/a", to: "/a", wantErr: litestore.ErrInvalidInput},
		{name: "into a descendant", from: "/a", to: "/a/b", wantErr: litestore.ErrInvalidInput},
		{name: "root", from: "/", to: "/a", wantErr: litestore.ErrInvalidInput},
		{name: "name taken", from: "/x.txt", to: "/other", wantErr: litestore.ErrConflict},
		{name: "missing source", from: "/nope", to: "/a", wantErr: litestore.ErrNotFound},
		{name: "missing destination", from: "/x.txt", to: "/nope", wantErr: litestore.ErrNotFound},
		{name: "destination is a file", from: "/a", to: "/x.txt", wantErr: litestore.ErrNotFound},
		{name: "trashed destination", from: "/x.txt", to: "/bin", wantErr: litestore.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.files.Move(ctx, owner, tt.from, tt.to)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFileService_Move_SameFolderIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n := f.upload(t, "/a.txt", 1)
	require.NoError(t, f.files.Move(ctx, owner, "/a.txt", "/"))

	after := f.node(t, "/a.txt")
	assert.Equal(t, n.UpdatedAt, after.UpdatedAt)
}

func TestFileService_Copy_SameFolderAddsSuffix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mkdir(t, "/docs")
	original := f.upload(t, "/docs/report.txt", 3)

	clone, err := f.files.Copy(ctx, owner, "/docs/report.txt", "/docs")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^report-[0-9a-f]{4}\.txt$`), clone.Filename)
	assert.Equal(t, "/docs/"+clone.Filename, clone.VirtualPath)
	assert.Equal(t, original.ContentPath, clone.ContentPath)

	children, err := f.files.List(ctx, owner, "/docs")
	require.NoError(t, err)
	assert.Len(t, children, 2)
	assert.Contains(t, names(children), "report.txt")
}

func TestFileService_Copy_SameFolderFolderSuffix(t *testing.T) {
	f := newFixture(t)

	f.mkdir(t, "/photos")
	clone, err := f.files.Copy(context.Background(), owner, "/photos", "/")
	require.NoError(t, err)

	assert.Regexp(t, `^photos-[0-9a-f]{4}$`, clone.Filename)
	assert.True(t, clone.IsFolder)
	assert.True(t, strings.HasSuffix(clone.VirtualPath, "/"))
}

func TestFileService_Copy_FolderDeep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mkdir(t, "/src")
	f.mkdir(t, "/src/sub")
	a := f.upload(t, "/src/a.txt", 1)
	b := f.upload(t, "/src/sub/b.txt", 1)
	f.upload(t, "/src/gone.txt", 1)
	require.NoError(t, f.files.Trash(ctx, owner, "/src/gone.txt", true))
	f.mkdir(t, "/dst")

	clone, err := f.files.Copy(ctx, owner, "/src", "/dst")
	require.NoError(t, err)
	assert.Equal(t, "/dst/src/", clone.VirtualPath)

	assert.Equal(t, a.ContentPath, f.node(t, "/dst/src/a.txt").ContentPath)
	assert.Equal(t, b.ContentPath, f.node(t, "/dst/src/sub/b.txt").ContentPath)

	_, err = f.tree.FindByPath(ctx, owner, "/dst/src/gone.txt")
	assert.ErrorIs(t, err, litestore.ErrNotFound, "trashed children are not copied")

	children, err := f.files.List(ctx, owner, "/src")
	require.NoError(t, err)
	assert.Equal(t, []string{"sub", "a.txt"}, names(children), "source untouched")
}

func TestFileService_Copy_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mkdir(t, "/a")
	f.mkdir(t, "/a/b")
	f.mkdir(t, "/other")
	f.upload(t, "/x.txt", 1)
	f.upload(t, "/other/x.txt", 1)
	f.upload(t, "/old.txt", 1)
	f.mkdir(t, "/bin")
	f.upload(t, "/bin/y.txt", 1)
	require.NoError(t, f.files.Trash(ctx, owner, "/old.txt", true))
	require.NoError(t, f.files.Trash(ctx, owner, "/bin", true))

	tests := []struct {
		name     string
		from, to string
		wantErr  error
	}{
		{name: "into itself", from: "/a", to: "/a", wantErr: litestore.ErrInvalidInput},
		{name: "into a descendant", from: "/a", to: "/a/b", wantErr: litestore.ErrInvalidInput},
		{name: "root", from: "/", to: "/a", wantErr: litestore.ErrInvalidInput},
		{name: "name taken", from: "/x.txt", to: "/other", wantErr: litestore.ErrConflict},
		{name: "missing source", from: "/nope", to: "/a", wantErr: litestore.ErrNotFound},
		{name: "missing destination", from: "/x.txt", to: "/nope", wantErr: litestore.ErrNotFound},
		{name: "trashed source", from: "/old.txt", to: "/a", wantErr: litestore.ErrNotFound},
		{name: "trashed source folder", from: "/bin", to: "/a", wantErr: litestore.ErrNotFound},
		{name: "source inside trashed folder", from: "/bin/y.txt", to: "/a", wantErr: litestore.ErrNotFound},
		{name: "trashed destination", from: "/x.txt", to: "/bin", wantErr: litestore.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.files.Copy(ctx, owner, tt.from, tt.to)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFileService_Orphans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.upload(t, "/a.txt", 1)
	f.mkdir(t, "/dir")
	f.store.objects["users/1/stray.bin"] = true
	f.store.objects["users/1/zz-stray/"] = true
	f.store.objects["users/2/elsewhere.bin"] = true

	orphans, err := f.files.Orphans(ctx, "users/1/", 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"users/1/stray.bin", "users/1/zz-stray/"}, orphans)

	require.NoError(t, f.files.PurgeOrphans(ctx, orphans))
	assert.False(t, f.store.has("users/1/stray.bin"))
	assert.True(t, f.store.has("users/2/elsewhere.bin"))

	orphans, err = f.files.Orphans(ctx, "users/1/", 100)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}
