package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrUploadFailed is returned when an object could not be stored
var ErrUploadFailed = errors.New("failed to upload file object")

// PutObjectAPI is the part of the S3 client the service needs
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Service stores complaint photos in a public S3 bucket
type S3Service struct {
	client PutObjectAPI
	bucket string
}

// NewS3Service creates a new S3 storage service
func NewS3Service(client PutObjectAPI, bucket string) *S3Service {
	return &S3Service{
		client: client,
		bucket: bucket,
	}
}

// UploadObject stores data under key with a public-read ACL and returns the
// object's public URL
func (s *S3Service) UploadObject(ctx context.Context, data []byte, key, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		log.Printf("S3 upload of %s failed: %v", key, err)
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	return s.ObjectURL(key), nil
}

// ObjectURL returns the public URL of an object in the bucket
func (s *S3Service) ObjectURL(key string) string {
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
}
