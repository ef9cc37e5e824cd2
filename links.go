package litestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lines-of-codes/litestore/metrics"
)

// LinkService issues and redeems share links. Redemption is anonymous; every
// other operation is restricted to the creator of the link.
type LinkService struct {
	tree           TreeRepo
	links          LinkRepo
	content        ContentStore
	hasher         PasswordHasher
	presignTimeout time.Duration
	now            func() time.Time
}

// NewLinkService creates a LinkService. A zero presignTimeout defaults to 10s.
func NewLinkService(tree TreeRepo, links LinkRepo, content ContentStore, hasher PasswordHasher, presignTimeout time.Duration) (*LinkService, error) {
	if tree == nil || links == nil || content == nil || hasher == nil {
		return nil, errors.New("new link service: tree, links, content and hasher are required")
	}
	if presignTimeout <= 0 {
		presignTimeout = 10 * time.Second
	}

	return &LinkService{
		tree:           tree,
		links:          links,
		content:        content,
		hasher:         hasher,
		presignTimeout: presignTimeout,
		now:            time.Now,
	}, nil
}

// Create issues a link to the file at p owned by creator.
func (s *LinkService) Create(ctx context.Context, creator int64, p string, opts LinkOptions) (ShareLink, error) {
	if err := ctx.Err(); err != nil {
		return ShareLink{}, fmt.Errorf("create link: %w", err)
	}

	if opts.DownloadLimit != nil && *opts.DownloadLimit < 1 {
		return ShareLink{}, fmt.Errorf("create link: %w: download limit must be at least 1", ErrInvalidInput)
	}
	if opts.ExpiresAt != nil && !opts.ExpiresAt.After(s.now()) {
		return ShareLink{}, fmt.Errorf("create link: %w: expiry must be in the future", ErrInvalidInput)
	}

	clean, err := NormalizePath(p)
	if err != nil {
		return ShareLink{}, fmt.Errorf("create link: %w", err)
	}

	node, err := s.tree.FindByPath(ctx, creator, clean)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ShareLink{}, fmt.Errorf("create link for %s: no such file: %w", clean, err)
		}
		return ShareLink{}, fmt.Errorf("create link for %s: %w", clean, err)
	}
	if err := ensureVisible(ctx, s.tree, node); err != nil {
		return ShareLink{}, fmt.Errorf("create link for %s: %w", clean, err)
	}

	var hash string
	if opts.Password != nil && *opts.Password != "" {
		hash, err = s.hasher.Hash(*opts.Password)
		if err != nil {
			return ShareLink{}, fmt.Errorf("create link: hash password: %w", err)
		}
	}

	var expiresAt *time.Time
	if opts.ExpiresAt != nil {
		t := opts.ExpiresAt.UTC()
		expiresAt = &t
	}

	link, err := s.links.CreateLink(ctx, NewShareLink{
		ID:            uuid.New(),
		FileID:        node.ID,
		CreatedBy:     creator,
		ExpiresAt:     expiresAt,
		PasswordHash:  hash,
		DownloadLimit: opts.DownloadLimit,
	})
	if err != nil {
		return ShareLink{}, fmt.Errorf("create link for %s: %w", clean, err)
	}

	return link, nil
}

// List returns the links created by creator.
func (s *LinkService) List(ctx context.Context, creator int64) ([]ShareLink, error) {
	links, err := s.links.ListLinks(ctx, creator)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

// Info returns the public description of a link.
func (s *LinkService) Info(ctx context.Context, id uuid.UUID) (LinkInfo, error) {
	link, node, err := s.target(ctx, s.links, id)
	if err != nil {
		return LinkInfo{}, fmt.Errorf("link info %s: %w", id, err)
	}

	return LinkInfo{
		Filename:          node.Filename,
		PasswordProtected: link.PasswordProtected(),
		DownloadCount:     link.DownloadCount,
		DownloadLimit:     link.DownloadLimit,
		ExpiresAt:         link.ExpiresAt,
	}, nil
}

// Edit changes the expiry, password or download limit of a link.
// A non-nil empty password removes the password; ClearExpiry and
// ClearDownloadLimit remove the expiry and the limit.
func (s *LinkService) Edit(ctx context.Context, id uuid.UUID, editor int64, opts LinkOptions) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("edit link: %w", err)
	}
	if opts.ClearExpiry && opts.ExpiresAt != nil {
		return fmt.Errorf("edit link: %w: expiry cannot be set and cleared together", ErrInvalidInput)
	}
	if opts.ClearDownloadLimit && opts.DownloadLimit != nil {
		return fmt.Errorf("edit link: %w: download limit cannot be set and cleared together", ErrInvalidInput)
	}

	var update LinkUpdate
	if opts.Password != nil {
		hash := ""
		if *opts.Password != "" {
			var err error
			hash, err = s.hasher.Hash(*opts.Password)
			if err != nil {
				return fmt.Errorf("edit link: hash password: %w", err)
			}
		}
		update.PasswordHash = &hash
	}
	if opts.ExpiresAt != nil {
		t := opts.ExpiresAt.UTC()
		update.ExpiresAt = &t
	}
	update.DownloadLimit = opts.DownloadLimit
	update.ClearExpiry = opts.ClearExpiry
	update.ClearDownloadLimit = opts.ClearDownloadLimit

	err := s.links.WithTx(ctx, func(ctx context.Context, tx LinkRepo) error {
		link, err := tx.GetLink(ctx, id)
		if err != nil {
			return err
		}
		if link.CreatedBy != editor {
			return ErrForbidden
		}
		if opts.DownloadLimit != nil && (*opts.DownloadLimit < 1 || *opts.DownloadLimit < link.DownloadCount) {
			return fmt.Errorf("%w: download limit %d is below %d downloads", ErrInvalidInput, *opts.DownloadLimit, link.DownloadCount)
		}
		return tx.UpdateLink(ctx, id, update)
	})
	if err != nil {
		return fmt.Errorf("edit link %s: %w", id, err)
	}

	return nil
}

// Delete removes a link. Links that no longer exist, for example because
// they were exhausted, are treated as deleted.
func (s *LinkService) Delete(ctx context.Context, id uuid.UUID, editor int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete link: %w", err)
	}

	err := s.links.WithTx(ctx, func(ctx context.Context, tx LinkRepo) error {
		link, err := tx.GetLink(ctx, id)
		if err != nil {
			return err
		}
		if link.CreatedBy != editor {
			return ErrForbidden
		}
		return tx.DeleteLink(ctx, id)
	})
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete link %s: %w", id, err)
	}

	return nil
}

// Redeem checks a link and returns a presigned download URL for its file.
// Each successful redemption counts against the download limit; the
// redemption that reaches the limit deletes the link.
//
// Denied redemptions return a *DeniedError carrying the reason.
func (s *LinkService) Redeem(ctx context.Context, id uuid.UUID, password string) (DownloadGrant, error) {
	grant, err := s.redeem(ctx, id, password)

	var denied *DeniedError
	switch {
	case err == nil:
		metrics.RecordLinkRedemption("granted")
	case errors.As(err, &denied):
		metrics.RecordLinkRedemption(denied.Reason)
	case errors.Is(err, ErrNotFound):
		metrics.RecordLinkRedemption("not_found")
	default:
		metrics.RecordLinkRedemption("error")
	}

	return grant, err
}

func (s *LinkService) redeem(ctx context.Context, id uuid.UUID, password string) (DownloadGrant, error) {
	if err := ctx.Err(); err != nil {
		return DownloadGrant{}, fmt.Errorf("redeem link: %w", err)
	}

	link, node, err := s.target(ctx, s.links, id)
	if err != nil {
		return DownloadGrant{}, fmt.Errorf("redeem link %s: %w", id, err)
	}

	if err := s.check(link, password); err != nil {
		return DownloadGrant{}, fmt.Errorf("redeem link %s: %w", id, err)
	}

	url, err := withTimeout(ctx, s.presignTimeout, func(ctx context.Context) (string, error) {
		return s.content.DownloadURL(ctx, node.ContentPath, node.Filename)
	})
	if err != nil {
		return DownloadGrant{}, fmt.Errorf("redeem link %s: %w: %w", id, ErrInternal, err)
	}

	err = s.links.WithTx(ctx, func(ctx context.Context, tx LinkRepo) error {
		// Re-read under lock; a concurrent redemption may have used the last download
		locked, err := tx.GetLink(ctx, id)
		if err != nil {
			return err
		}
		if locked.Exhausted() {
			return &DeniedError{Reason: DenyLimitReached}
		}

		next := locked.DownloadCount + 1
		if locked.DownloadLimit != nil && next >= *locked.DownloadLimit {
			return tx.DeleteLink(ctx, id)
		}
		return tx.SetDownloadCount(ctx, id, next)
	})
	if err != nil {
		return DownloadGrant{}, fmt.Errorf("redeem link %s: %w", id, err)
	}

	return DownloadGrant{Name: node.Filename, URL: url}, nil
}

// target loads a link and its file. Links whose file is gone or hidden by
// trash are not found.
func (s *LinkService) target(ctx context.Context, links LinkRepo, id uuid.UUID) (ShareLink, FileNode, error) {
	link, err := links.GetLink(ctx, id)
	if err != nil {
		return ShareLink{}, FileNode{}, err
	}

	node, err := s.tree.GetNode(ctx, link.FileID)
	if err != nil {
		return ShareLink{}, FileNode{}, err
	}
	if err := ensureVisible(ctx, s.tree, node); err != nil {
		return ShareLink{}, FileNode{}, err
	}

	return link, node, nil
}

func (s *LinkService) check(link ShareLink, password string) error {
	if link.Expired(s.now()) {
		return &DeniedError{Reason: DenyExpired}
	}
	if link.Exhausted() {
		return &DeniedError{Reason: DenyLimitReached}
	}
	if link.PasswordProtected() {
		if password == "" {
			return &DeniedError{Reason: DenyPasswordRequired}
		}
		if err := s.hasher.Compare(link.PasswordHash, password); err != nil {
			return &DeniedError{Reason: DenyPasswordMismatch}
		}
	}
	return nil
}
