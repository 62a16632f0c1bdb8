package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the subset of the S3 client used here; tests supply a fake.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type S3Options struct {
	Region         string
	Endpoint       string
	ForcePathStyle bool
	// BucketPrefix is prepended to every logical bucket name.
	BucketPrefix  string
	PublicBaseURL string
}

type S3 struct {
	client  s3API
	signer  presigner
	prefix  string
	baseURL string
}

func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})
	return newS3(client, s3.NewPresignClient(client), opts.BucketPrefix, opts.PublicBaseURL), nil
}

func newS3(client s3API, signer presigner, prefix, baseURL string) *S3 {
	return &S3{
		client:  client,
		signer:  signer,
		prefix:  prefix,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *S3) bucketName(bucket, name string) (string, error) {
	if err := CheckBucket(bucket); err != nil {
		return "", err
	}
	if err := CheckName(name); err != nil {
		return "", err
	}
	return s.prefix + bucket, nil
}

func (s *S3) Upload(ctx context.Context, bucket, name string, data []byte, contentType string) error {
	physical, err := s.bucketName(bucket, name)
	if err != nil {
		return err
	}
	in := &s3.PutObjectInput{
		Bucket:        aws.String(physical),
		Key:           aws.String(name),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, name, err)
	}
	return nil
}

func (s *S3) Download(ctx context.Context, bucket, name string) ([]byte, error) {
	physical, err := s.bucketName(bucket, name)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(physical),
		Key:    aws.String(name),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", bucket, name, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3) Remove(ctx context.Context, bucket, name string) error {
	physical, err := s.bucketName(bucket, name)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(physical),
		Key:    aws.String(name),
	}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", bucket, name, err)
	}
	return nil
}

func (s *S3) List(ctx context.Context, bucket string) ([]Object, error) {
	if err := CheckBucket(bucket); err != nil {
		return nil, err
	}
	var out []Object
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.prefix + bucket),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", bucket, err)
		}
		for _, obj := range page.Contents {
			item := Object{Bucket: bucket, Name: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				item.LastModified = obj.LastModified.UTC()
			}
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *S3) SignedURL(ctx context.Context, bucket, name string, ttl time.Duration) (string, error) {
	physical, err := s.bucketName(bucket, name)
	if err != nil {
		return "", err
	}
	req, err := s.signer.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(physical),
		Key:    aws.String(name),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", bucket, name, err)
	}
	return req.URL, nil
}

func (s *S3) PublicURL(bucket, name string) string {
	return s.baseURL + "/" + bucket + "/" + url.PathEscape(name)
}
