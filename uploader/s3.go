package uploader

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// The subset of the S3 API the uploader needs. *s3.S3 implements it.
type S3API interface {
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
}

// S3Uploader publishes documents to an S3 bucket.
type S3Uploader struct {
	Bucket string
	Client S3API
}

// Creates an S3Uploader using credentials and region from the
// environment or shared AWS config.
func NewS3Uploader(bucket string) (*S3Uploader, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}

	return &S3Uploader{
		Bucket: bucket,
		Client: s3.New(sess),
	}, nil
}

func (u *S3Uploader) Put(ctx context.Context, key string, body []byte, options PutOptions) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(u.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}
	if options.CacheControl != "" {
		input.CacheControl = aws.String(options.CacheControl)
	}
	if options.ContentType != "" {
		input.ContentType = aws.String(options.ContentType)
	}
	if options.ContentEncoding != "" {
		input.ContentEncoding = aws.String(options.ContentEncoding)
	}
	if options.ACL != "" {
		input.ACL = aws.String(options.ACL)
	}

	_, err := u.Client.PutObjectWithContext(ctx, input)
	if err != nil {
		return fmt.Errorf("putting s3://%s/%s: %w", u.Bucket, key, err)
	}

	return nil
}
