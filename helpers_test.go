package litestore_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lines-of-codes/litestore"
	"github.com/lines-of-codes/litestore/database/sqlite"
	"github.com/lines-of-codes/litestore/tasks"
)

// memStore is an in-memory ContentStore that records what happened to each key.
type memStore struct {
	mu        sync.Mutex
	objects   map[string]bool
	uploads   map[string]string // upload id -> content path
	aborted   []string
	nextID    int
	planErr   error
	markerErr error
	purgeErr  error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string]bool{}, uploads: map[string]string{}}
}

func (s *memStore) UploadPlan(ctx context.Context, contentPath string, size int64) (litestore.UploadPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.planErr != nil {
		return litestore.UploadPlan{}, s.planErr
	}

	sizes, err := litestore.PlanParts(size)
	if err != nil {
		return litestore.UploadPlan{}, err
	}

	if size < litestore.SinglePartThreshold {
		s.objects[contentPath] = true
		return litestore.UploadPlan{Links: []string{"https://store.test/" + contentPath}, Sizes: sizes}, nil
	}

	s.nextID++
	id := "upload-" + strconv.Itoa(s.nextID)
	s.uploads[id] = contentPath

	links := make([]string, len(sizes))
	for i := range sizes {
		links[i] = fmt.Sprintf("https://store.test/%s?partNumber=%d&uploadId=%s", contentPath, i+1, id)
	}
	return litestore.UploadPlan{UploadID: id, Links: links, Sizes: sizes}, nil
}

func (s *memStore) CompleteUpload(ctx context.Context, contentPath, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.uploads[uploadID] != contentPath {
		return fmt.Errorf("complete %s: %w", uploadID, litestore.ErrNotFound)
	}
	delete(s.uploads, uploadID)
	s.objects[contentPath] = true
	return nil
}

func (s *memStore) AbortUpload(ctx context.Context, contentPath, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.uploads, uploadID)
	s.aborted = append(s.aborted, uploadID)
	return nil
}

func (s *memStore) DownloadURL(ctx context.Context, contentPath, filename string) (string, error) {
	return "https://store.test/" + contentPath + "?name=" + url.QueryEscape(filename), nil
}

func (s *memStore) CreateFolderMarker(ctx context.Context, contentPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.markerErr != nil {
		return s.markerErr
	}
	s.objects[contentPath] = true
	return nil
}

func (s *memStore) Delete(ctx context.Context, contentPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, contentPath)
	return nil
}

func (s *memStore) DeleteMany(ctx context.Context, contentPaths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.purgeErr != nil {
		return s.purgeErr
	}
	for _, p := range contentPaths {
		delete(s.objects, p)
	}
	return nil
}

func (s *memStore) ListPrefix(ctx context.Context, prefix string, maxKeys int, token string) (litestore.KeyPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) && k > token {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	page := litestore.KeyPage{Keys: keys}
	if len(keys) > maxKeys {
		page.Keys = keys[:maxKeys]
		page.NextToken = keys[maxKeys-1]
	}
	return page, nil
}

func (s *memStore) has(contentPath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[contentPath]
}

// plainHasher avoids bcrypt cost in tests.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (plainHasher) Compare(hash, password string) error {
	if hash != "plain:"+password {
		return errors.New("mismatch")
	}
	return nil
}

// failingTree wraps a TreeRepo and fails node creation inside transactions.
type failingTree struct {
	litestore.TreeRepo
	createErr error
}

func (f *failingTree) WithTx(ctx context.Context, owner int64, fn func(ctx context.Context, tx litestore.TreeRepo) error) error {
	return f.TreeRepo.WithTx(ctx, owner, func(ctx context.Context, tx litestore.TreeRepo) error {
		return fn(ctx, &failingTree{TreeRepo: tx, createErr: f.createErr})
	})
}

func (f *failingTree) CreateNode(ctx context.Context, node litestore.NewNode) (litestore.FileNode, error) {
	return litestore.FileNode{}, f.createErr
}

type fixture struct {
	db       *sqlite.DB
	tree     litestore.TreeRepo
	store    *memStore
	queue    *tasks.Queue
	files    *litestore.FileService
	links    *litestore.LinkService
	accounts *litestore.AccountService
}

const owner int64 = 1

// newFixture wires the services over an in-memory database and store, with
// the root folder of owner already created.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Connect(ctx, ":memory:", litestore.DefaultTables())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		db:    db,
		tree:  db.TreeRepo(),
		store: newMemStore(),
		queue: tasks.NewQueue(5 * time.Second),
	}

	f.files, err = litestore.NewFileService(f.tree, f.store, f.queue, litestore.ServiceConfig{})
	require.NoError(t, err)

	f.links, err = litestore.NewLinkService(f.tree, db.LinkRepo(), f.store, plainHasher{}, 0)
	require.NoError(t, err)

	f.accounts, err = litestore.NewAccountService(db.UserRepo(), f.files, plainHasher{})
	require.NoError(t, err)

	_, err = f.files.CreateRoot(ctx, owner)
	require.NoError(t, err)

	return f
}

func (f *fixture) mkdir(t *testing.T, p string) litestore.FileNode {
	t.Helper()
	n, err := f.files.CreateFolder(context.Background(), owner, p)
	require.NoError(t, err, "mkdir %s", p)
	return n
}

func (f *fixture) upload(t *testing.T, p string, size int64) litestore.FileNode {
	t.Helper()
	res, err := f.files.Upload(context.Background(), owner, p, size)
	require.NoError(t, err, "upload %s", p)
	return res.Node
}

func (f *fixture) node(t *testing.T, virtualPath string) litestore.FileNode {
	t.Helper()
	n, err := f.tree.FindByPath(context.Background(), owner, virtualPath)
	require.NoError(t, err, "find %s", virtualPath)
	return n
}

func (f *fixture) waitTasks(t *testing.T) {
	t.Helper()
	require.NoError(t, f.queue.Wait(context.Background()))
}

func names(nodes []litestore.FileNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Filename
	}
	return out
}
