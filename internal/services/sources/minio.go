// -----------------------------------------------------------------------
// MinIO document source - Opportunity files stored as <opportunity_id>/<file>
// -----------------------------------------------------------------------

package sources

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/interfaces"
)

// MinioSource lists and downloads opportunity documents from an S3-compatible bucket
type MinioSource struct {
	client *minio.Client
	bucket string
	logger arbor.ILogger
}

var _ interfaces.DocumentSource = (*MinioSource)(nil)

// NewMinioSource creates a bucket-backed document source
func NewMinioSource(cfg *common.MinioConfig, logger arbor.ILogger) (*MinioSource, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	logger.Debug().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.Bucket).Msg("MinIO document source configured")

	return &MinioSource{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// List returns every object below the opportunity prefix, oldest first
func (s *MinioSource) List(ctx context.Context, opportunityID string) ([]interfaces.SourceDocument, error) {
	prefix := strings.Trim(opportunityID, "/") + "/"

	var docs []interfaces.SourceDocument
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:       prefix,
		Recursive:    true,
		WithMetadata: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects in %s/%s: %w", s.bucket, prefix, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		docs = append(docs, interfaces.SourceDocument{
			ID:            obj.Key,
			OpportunityID: opportunityID,
			FileName:      path.Base(obj.Key),
			Path:          obj.Key,
			Description:   description(obj.UserMetadata),
			MimeType:      obj.ContentType,
			Size:          obj.Size,
			CreatedAt:     obj.LastModified,
		})
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].Path < docs[j].Path
	})

	s.logger.Debug().Str("opportunity_id", opportunityID).Int("documents", len(docs)).Msg("Listed opportunity documents")
	return docs, nil
}

// Download reads a whole object into memory
func (s *MinioSource) Download(ctx context.Context, doc interfaces.SourceDocument) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.bucket, doc.Path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", doc.Path, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", doc.Path, err)
	}
	return data, nil
}

// description reads the optional description attached as user metadata on upload
func description(meta map[string]string) string {
	for k, v := range meta {
		if strings.EqualFold(k, "X-Amz-Meta-Description") || strings.EqualFold(k, "Description") {
			return v
		}
	}
	return ""
}
