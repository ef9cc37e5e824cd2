package http_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/lines-of-codes/litestore"
	"github.com/lines-of-codes/litestore/tasks"
)

type MockFileService struct {
	mock.Mock
}

func (m *MockFileService) CreateFolder(ctx context.Context, owner int64, p string) (litestore.FileNode, error) {
	args := m.Called(ctx, owner, p)
	return args.Get(0).(litestore.FileNode), args.Error(1)
}

func (m *MockFileService) Upload(ctx context.Context, owner int64, p string, size int64) (litestore.UploadResult, error) {
	args := m.Called(ctx, owner, p, size)
	return args.Get(0).(litestore.UploadResult), args.Error(1)
}

func (m *MockFileService) CompleteUpload(ctx context.Context, owner int64, p, uploadID string) error {
	return m.Called(ctx, owner, p, uploadID).Error(0)
}

func (m *MockFileService) Download(ctx context.Context, owner int64, p string) (string, error) {
	args := m.Called(ctx, owner, p)
	return args.String(0), args.Error(1)
}

func (m *MockFileService) List(ctx context.Context, owner int64, p string) ([]litestore.FileNode, error) {
	args := m.Called(ctx, owner, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]litestore.FileNode), args.Error(1)
}

func (m *MockFileService) Delete(ctx context.Context, owner int64, p string) (int, error) {
	args := m.Called(ctx, owner, p)
	return args.Int(0), args.Error(1)
}

func (m *MockFileService) Trash(ctx context.Context, owner int64, p string, trashed bool) error {
	return m.Called(ctx, owner, p, trashed).Error(0)
}

func (m *MockFileService) Move(ctx context.Context, owner int64, from, toFolder string) error {
	return m.Called(ctx, owner, from, toFolder).Error(0)
}

func (m *MockFileService) Copy(ctx context.Context, owner int64, from, toFolder string) (litestore.FileNode, error) {
	args := m.Called(ctx, owner, from, toFolder)
	return args.Get(0).(litestore.FileNode), args.Error(1)
}

func (m *MockFileService) TaskStatus(ctx context.Context, owner int64, index int) (tasks.Task, error) {
	args := m.Called(ctx, owner, index)
	return args.Get(0).(tasks.Task), args.Error(1)
}

type MockLinkService struct {
	mock.Mock
}

func (m *MockLinkService) Create(ctx context.Context, creator int64, p string, opts litestore.LinkOptions) (litestore.ShareLink, error) {
	args := m.Called(ctx, creator, p, opts)
	return args.Get(0).(litestore.ShareLink), args.Error(1)
}

func (m *MockLinkService) List(ctx context.Context, creator int64) ([]litestore.ShareLink, error) {
	args := m.Called(ctx, creator)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]litestore.ShareLink), args.Error(1)
}

func (m *MockLinkService) Info(ctx context.Context, id uuid.UUID) (litestore.LinkInfo, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(litestore.LinkInfo), args.Error(1)
}

func (m *MockLinkService) Edit(ctx context.Context, id uuid.UUID, editor int64, opts litestore.LinkOptions) error {
	return m.Called(ctx, id, editor, opts).Error(0)
}

func (m *MockLinkService) Delete(ctx context.Context, id uuid.UUID, editor int64) error {
	return m.Called(ctx, id, editor).Error(0)
}

func (m *MockLinkService) Redeem(ctx context.Context, id uuid.UUID, password string) (litestore.DownloadGrant, error) {
	args := m.Called(ctx, id, password)
	return args.Get(0).(litestore.DownloadGrant), args.Error(1)
}

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) SignUp(ctx context.Context, username, email, password string) (litestore.User, error) {
	args := m.Called(ctx, username, email, password)
	return args.Get(0).(litestore.User), args.Error(1)
}

func (m *MockAccountService) Login(ctx context.Context, username, password string) (litestore.User, error) {
	args := m.Called(ctx, username, password)
	return args.Get(0).(litestore.User), args.Error(1)
}
