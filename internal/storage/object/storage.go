// Package object provides an S3-compatible storage backend using MinIO.
// Originals are stored world-readable so the portal can display them
// directly; full-resolution access goes through time-limited signed URLs.
package object

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/agrosight/ndvi-vault/internal/apperr"
)

// PrefixOriginal is the key prefix for original uploads; objects under it
// are covered by the public-read bucket policy.
const PrefixOriginal = "original"

// Storage wraps a MinIO client bound to a single bucket.
type Storage struct {
	client     *minio.Client
	bucketName string
	baseURL    string // public URL prefix for stored objects, no trailing slash
}

// NewStorage creates a new Storage connected to the specified S3-compatible
// endpoint. If the bucket does not exist it is created, and a public-read
// policy is applied to the originals prefix.
func NewStorage(ctx context.Context, endpoint, region, accessKey, secretKey, bucketName string, useSSL bool, publicBaseURL string) (*Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	if err := client.SetBucketPolicy(ctx, bucketName, publicReadPolicy(bucketName)); err != nil {
		return nil, fmt.Errorf("failed to set bucket policy: %w", err)
	}

	baseURL := strings.TrimSuffix(publicBaseURL, "/")
	if baseURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, endpoint, bucketName)
	}

	return &Storage{
		client:     client,
		bucketName: bucketName,
		baseURL:    baseURL,
	}, nil
}

// Put uploads the object under the given key and returns its public URL.
func (s *Storage) Put(ctx context.Context, key, contentType string, src io.Reader, size int64) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucketName, key, src, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", apperr.Storage(fmt.Sprintf("failed to store object %s", key), err)
	}

	return s.baseURL + "/" + key, nil
}

// SignedURL returns a time-limited URL granting read access to the object
// behind the given public URL.
func (s *Storage) SignedURL(ctx context.Context, rawURL string, ttl time.Duration) (string, error) {
	key, err := s.keyFromURL(rawURL)
	if err != nil {
		return "", err
	}

	signed, err := s.client.PresignedGetObject(ctx, s.bucketName, key, ttl, url.Values{})
	if err != nil {
		return "", apperr.Storage(fmt.Sprintf("failed to sign url for %s", key), err)
	}

	return signed.String(), nil
}

// Delete removes the object behind the given public URL.
func (s *Storage) Delete(ctx context.Context, rawURL string) error {
	key, err := s.keyFromURL(rawURL)
	if err != nil {
		return err
	}

	if err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return apperr.Storage(fmt.Sprintf("failed to delete object %s", key), err)
	}

	return nil
}

// keyFromURL recovers the object key from a URL previously returned by Put.
func (s *Storage) keyFromURL(rawURL string) (string, error) {
	if strings.HasPrefix(rawURL, s.baseURL+"/") {
		return strings.TrimPrefix(rawURL, s.baseURL+"/"), nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", apperr.Validation(fmt.Sprintf("invalid object url: %s", rawURL))
	}

	path := strings.TrimPrefix(u.Path, "/")
	path = strings.TrimPrefix(path, s.bucketName+"/")
	if path == "" {
		return "", apperr.Validation(fmt.Sprintf("object url has no key: %s", rawURL))
	}

	return path, nil
}

// publicReadPolicy allows anonymous GET on the originals prefix only;
// derived variants stay private and are served through signed URLs.
func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"AWS": ["*"]},
      "Action": ["s3:GetObject"],
      "Resource": ["arn:aws:s3:::%s/%s/*"]
    }
  ]
}`, bucket, PrefixOriginal)
}
