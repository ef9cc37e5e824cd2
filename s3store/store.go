// Package s3store provides an S3 compatible content store for litestore.
//
// Clients never send bytes through the server: uploads and downloads use
// presigned URLs, and the store only initiates, completes and deletes objects.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"

	"github.com/lines-of-codes/litestore"
	"github.com/lines-of-codes/litestore/metrics"
)

const (
	backendName = "s3"
	// maxDeleteBatch is the DeleteObjects limit.
	maxDeleteBatch = 1000
)

// Config holds the connection settings of a Store.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	// UsePathStyle addresses the bucket in the path, as MinIO and other
	// self-hosted services expect.
	UsePathStyle bool
	// PresignExpiry is the validity of presigned URLs; zero means 15 minutes.
	PresignExpiry time.Duration
	// DeleteConcurrency bounds parallel DeleteObjects batches; zero means 4.
	DeleteConcurrency int
}

// Store is a litestore.ContentStore on an S3 bucket.
type Store struct {
	client      *s3.Client
	presign     *s3.PresignClient
	bucket      string
	expiry      time.Duration
	concurrency int
}

// New creates a Store with its own client. Requests are not retried; callers
// bound them with a context deadline.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("new s3 store: bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithRetryMaxAttempts(1),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("new s3 store: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewFromClient(client, cfg), nil
}

// NewFromClient creates a Store using an existing client.
func NewFromClient(client *s3.Client, cfg Config) *Store {
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	concurrency := cfg.DeleteConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	return &Store{
		client:      client,
		presign:     s3.NewPresignClient(client, s3.WithPresignExpires(expiry)),
		bucket:      cfg.Bucket,
		expiry:      expiry,
		concurrency: concurrency,
	}
}

// Ping checks that the bucket is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("ping bucket %s: %w", s.bucket, err)
	}
	return nil
}

// UploadPlan presigns one PutObject URL for objects below
// litestore.SinglePartThreshold. Larger objects start a multipart upload
// and get one presigned UploadPart URL per part.
func (s *Store) UploadPlan(ctx context.Context, contentPath string, size int64) (plan litestore.UploadPlan, err error) {
	defer func(start time.Time) { metrics.RecordContentOperation(backendName, "upload_plan", start, err) }(time.Now())

	sizes, err := litestore.PlanParts(size)
	if err != nil {
		return litestore.UploadPlan{}, err
	}

	if size < litestore.SinglePartThreshold {
		req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(contentPath),
		})
		if err != nil {
			return litestore.UploadPlan{}, fmt.Errorf("presign put %s: %w", contentPath, err)
		}
		return litestore.UploadPlan{Links: []string{req.URL}, Sizes: sizes}, nil
	}

	created, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(contentPath),
	})
	if err != nil {
		return litestore.UploadPlan{}, fmt.Errorf("create multipart upload %s: %w", contentPath, err)
	}
	uploadID := aws.ToString(created.UploadId)

	links := make([]string, len(sizes))
	for i := range sizes {
		req, err := s.presign.PresignUploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(s.bucket),
			Key:        aws.String(contentPath),
			UploadId:   aws.String(uploadID),
			PartNumber: aws.Int32(int32(i + 1)), //nolint:gosec // part count is bounded by MaxParts
		})
		if err != nil {
			if abortErr := s.AbortUpload(context.WithoutCancel(ctx), contentPath, uploadID); abortErr != nil {
				err = errors.Join(err, abortErr)
			}
			return litestore.UploadPlan{}, fmt.Errorf("presign part %d of %s: %w", i+1, contentPath, err)
		}
		links[i] = req.URL
	}

	return litestore.UploadPlan{UploadID: uploadID, Links: links, Sizes: sizes}, nil
}

// CompleteUpload lists the parts the client uploaded and assembles them.
// Unknown uploads return litestore.ErrNotFound.
func (s *Store) CompleteUpload(ctx context.Context, contentPath, uploadID string) (err error) {
	defer func(start time.Time) { metrics.RecordContentOperation(backendName, "complete_upload", start, err) }(time.Now())

	var parts []types.CompletedPart
	paginator := s3.NewListPartsPaginator(s.client, &s3.ListPartsInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(contentPath),
		UploadId: aws.String(uploadID),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list parts of %s: %w", uploadID, mapError(err))
		}
		for _, p := range page.Parts {
			parts = append(parts, types.CompletedPart{ETag: p.ETag, PartNumber: p.PartNumber})
		}
	}

	if len(parts) == 0 {
		return fmt.Errorf("complete upload %s: %w: no parts uploaded", uploadID, litestore.ErrInvalidInput)
	}

	_, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(contentPath),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		return fmt.Errorf("complete upload %s: %w", uploadID, mapError(err))
	}

	return nil
}

// AbortUpload discards a multipart upload. Unknown uploads are not an error.
func (s *Store) AbortUpload(ctx context.Context, contentPath, uploadID string) (err error) {
	defer func(start time.Time) { metrics.RecordContentOperation(backendName, "abort_upload", start, err) }(time.Now())

	_, err = s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(contentPath),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		if errors.Is(mapError(err), litestore.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("abort upload %s: %w", uploadID, err)
	}
	return nil
}

// DownloadURL presigns a GetObject URL that offers the object as filename.
func (s *Store) DownloadURL(ctx context.Context, contentPath, filename string) (string, error) {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if disposition == "" {
		disposition = "attachment"
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(s.bucket),
		Key:                        aws.String(contentPath),
		ResponseContentDisposition: aws.String(disposition),
	})
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", contentPath, err)
	}
	return req.URL, nil
}

// CreateFolderMarker writes a zero-length object at contentPath.
func (s *Store) CreateFolderMarker(ctx context.Context, contentPath string) (err error) {
	defer func(start time.Time) { metrics.RecordContentOperation(backendName, "create_folder", start, err) }(time.Now())

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(contentPath),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return fmt.Errorf("create folder marker %s: %w", contentPath, err)
	}
	return nil
}

// Delete removes one object.
func (s *Store) Delete(ctx context.Context, contentPath string) (err error) {
	defer func(start time.Time) { metrics.RecordContentOperation(backendName, "delete", start, err) }(time.Now())

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(contentPath),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", contentPath, err)
	}
	return nil
}

// DeleteMany removes objects in DeleteObjects batches of up to 1000 keys,
// running batches concurrently. Every failed batch and key is reported.
func (s *Store) DeleteMany(ctx context.Context, contentPaths []string) (err error) {
	defer func(start time.Time) { metrics.RecordContentOperation(backendName, "delete_many", start, err) }(time.Now())

	var mu sync.Mutex
	var errs []error
	report := func(e error) {
		mu.Lock()
		errs = append(errs, e)
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for start := 0; start < len(contentPaths); start += maxDeleteBatch {
		batch := contentPaths[start:min(start+maxDeleteBatch, len(contentPaths))]

		g.Go(func() error {
			objects := make([]types.ObjectIdentifier, len(batch))
			for i, key := range batch {
				objects[i] = types.ObjectIdentifier{Key: aws.String(key)}
			}

			out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(s.bucket),
				Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
			})
			if err != nil {
				report(fmt.Errorf("delete batch of %d starting at %s: %w", len(batch), batch[0], err))
				return nil
			}

			for _, e := range out.Errors {
				report(fmt.Errorf("delete %s: %s: %s", aws.ToString(e.Key), aws.ToString(e.Code), aws.ToString(e.Message)))
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// ListPrefix returns one page of keys under prefix. token is the
// continuation token of the previous page.
func (s *Store) ListPrefix(ctx context.Context, prefix string, maxKeys int, token string) (page litestore.KeyPage, err error) {
	defer func(start time.Time) { metrics.RecordContentOperation(backendName, "list", start, err) }(time.Now())

	if maxKeys <= 0 || maxKeys > 1000 {
		maxKeys = 1000
	}

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(int32(maxKeys)), //nolint:gosec // bounded above
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return litestore.KeyPage{}, fmt.Errorf("list %s: %w", prefix, err)
	}

	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		if obj.Key != nil {
			keys = append(keys, *obj.Key)
		}
	}

	page = litestore.KeyPage{Keys: keys}
	if aws.ToBool(out.IsTruncated) {
		page.NextToken = aws.ToString(out.NextContinuationToken)
	}
	return page, nil
}

// mapError turns missing upload errors into litestore.ErrNotFound.
func mapError(err error) error {
	var noUpload *types.NoSuchUpload
	if errors.As(err, &noUpload) {
		return errors.Join(litestore.ErrNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchUpload" {
		return errors.Join(litestore.ErrNotFound, err)
	}

	return err
}
