package gcs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/lokabekas/lokabekas-backend/pkg/config"
	"github.com/lokabekas/lokabekas-backend/pkg/logger"
)

const (
	evidencePrefix = "complaint-evidence"
	proofPrefix    = "shipment-proof"
)

// Client wraps the GCS SDK for the two object families the platform
// stores: complaint evidence uploaded by buyers and shipment proof
// photos uploaded by sellers.
type Client struct {
	raw         *storage.Client
	bucket      string
	uploadTTL   time.Duration
	downloadTTL time.Duration
}

// New builds a storage client from the configured credentials. With no
// explicit credentials it falls back to application default credentials.
func New(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	var opts []option.ClientOption
	switch {
	case gcp.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case gcp.ApplicationCredentials != "":
		raw, err := os.ReadFile(gcp.ApplicationCredentials)
		if err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(raw))
	}

	raw, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	client := &Client{
		raw:         raw,
		bucket:      cfg.BucketName,
		uploadTTL:   cfg.UploadURLExpiry,
		downloadTTL: cfg.DownloadURLExpiry,
	}

	if logg != nil {
		logg.Info(ctx, "gcs client initialized")
	}
	return client, nil
}

// UploadURL mints a V4 signed PUT URL for the object. The caller must
// send the exact content type when uploading.
func (c *Client) UploadURL(object, contentType string) (string, error) {
	if err := c.check(object); err != nil {
		return "", err
	}
	if contentType == "" {
		return "", errors.New("content type is required")
	}
	return c.raw.Bucket(c.bucket).SignedURL(object, &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		Expires:     time.Now().Add(c.uploadTTL),
		ContentType: contentType,
	})
}

// DownloadURL mints a V4 signed GET URL for the object.
func (c *Client) DownloadURL(object string) (string, error) {
	if err := c.check(object); err != nil {
		return "", err
	}
	return c.raw.Bucket(c.bucket).SignedURL(object, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(c.downloadTTL),
	})
}

// ObjectExists reports whether the object has been uploaded yet.
func (c *Client) ObjectExists(ctx context.Context, object string) (bool, error) {
	if err := c.check(object); err != nil {
		return false, err
	}
	_, err := c.raw.Bucket(c.bucket).Object(object).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

func (c *Client) check(object string) error {
	if c == nil || c.raw == nil {
		return errors.New("gcs client not initialized")
	}
	if strings.TrimSpace(object) == "" {
		return errors.New("object name is required")
	}
	return nil
}

// EvidenceKey builds the object key for a complaint evidence upload.
// A random segment keeps repeated uploads from clobbering each other.
func EvidenceKey(complaintID uuid.UUID, filename string) string {
	return buildKey(evidencePrefix, complaintID, filename)
}

// ShipmentProofKey builds the object key for a shipment proof photo.
func ShipmentProofKey(purchaseID uuid.UUID, filename string) string {
	return buildKey(proofPrefix, purchaseID, filename)
}

func buildKey(prefix string, owner uuid.UUID, filename string) string {
	base := path.Base(strings.TrimSpace(filename))
	if base == "." || base == "/" || base == "" {
		base = "upload"
	}
	return fmt.Sprintf("%s/%s/%s-%s", prefix, owner, uuid.NewString(), base)
}
