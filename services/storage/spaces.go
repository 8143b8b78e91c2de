// Package storage keeps user uploads in S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

// AvatarStore saves profile pictures and returns their public URL
type AvatarStore interface {
	UploadAvatar(ctx context.Context, userID uint, filename, contentType string, data []byte) (string, error)
	DeleteByURL(ctx context.Context, url string) error
}

// SpacesConfig holds configuration for the S3-compatible client
type SpacesConfig struct {
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Endpoint  string
	CDNURL    string
}

// SpacesClient stores objects in an S3-compatible bucket
type SpacesClient struct {
	s3Client *s3.S3
	bucket   string
	endpoint string
	cdnURL   string
}

// NewSpacesClient creates a new Spaces client. Endpoint defaults to the
// DigitalOcean Spaces host for the region.
func NewSpacesClient(config SpacesConfig) (*SpacesClient, error) {
	if config.Endpoint == "" {
		config.Endpoint = fmt.Sprintf("%s.digitaloceanspaces.com", config.Region)
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(config.Endpoint, "https://"), "http://")

	sess, err := session.NewSession(&aws.Config{
		Credentials: credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"",
		),
		Endpoint:         aws.String("https://" + endpoint),
		Region:           aws.String(config.Region),
		S3ForcePathStyle: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Spaces session: %w", err)
	}

	return &SpacesClient{
		s3Client: s3.New(sess),
		bucket:   config.Bucket,
		endpoint: endpoint,
		cdnURL:   strings.TrimRight(config.CDNURL, "/"),
	}, nil
}

// AvatarKey builds the object key for a user's avatar upload
func AvatarKey(userID uint, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("avatars/%d/%s-%s%s", userID, time.Now().UTC().Format("20060102"), uuid.New().String(), ext)
}

// UploadAvatar uploads a public-read avatar and returns its URL
func (s *SpacesClient) UploadAvatar(ctx context.Context, userID uint, filename, contentType string, data []byte) (string, error) {
	key := AvatarKey(userID, filename)

	_, err := s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ACL:         aws.String("public-read"),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}

	return s.FileURL(key), nil
}

// DeleteByURL removes an object previously returned by UploadAvatar.
// URLs outside this bucket are ignored.
func (s *SpacesClient) DeleteByURL(ctx context.Context, url string) error {
	key, ok := s.keyFromURL(url)
	if !ok {
		return nil
	}

	_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// FileURL returns the public URL for a key
func (s *SpacesClient) FileURL(key string) string {
	if s.cdnURL != "" {
		return fmt.Sprintf("%s/%s", s.cdnURL, key)
	}
	return fmt.Sprintf("https://%s.%s/%s", s.bucket, s.endpoint, key)
}

func (s *SpacesClient) keyFromURL(url string) (string, bool) {
	for _, prefix := range []string{s.cdnURL + "/", fmt.Sprintf("https://%s.%s/", s.bucket, s.endpoint)} {
		if prefix != "/" && strings.HasPrefix(url, prefix) {
			return strings.TrimPrefix(url, prefix), true
		}
	}
	return "", false
}
