// Package storage keeps uploaded files in named buckets, either on the local
// filesystem or in S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const (
	BucketLogos        = "company-logos"
	BucketMSDS         = "msds"
	BucketToolboxTalks = "toolbox-talks"
	BucketPolicies     = "policies"
	BucketIncidents    = "incident-images"
)

var (
	ErrObjectNotFound  = errors.New("object not found")
	ErrUnknownBucket   = errors.New("unknown bucket")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file exceeds max size")
	ErrInvalidName     = errors.New("invalid object name")
)

var buckets = map[string]bucketRule{
	BucketLogos:        {public: true, mimes: imageMimes},
	BucketIncidents:    {public: true, mimes: imageMimes},
	BucketMSDS:         {mimes: documentMimes},
	BucketToolboxTalks: {mimes: documentMimes},
	BucketPolicies:     {mimes: documentMimes},
}

var (
	imageMimes    = []string{"image/png", "image/jpeg", "image/webp", "image/gif"}
	documentMimes = []string{"application/pdf", "image/png", "image/jpeg"}
)

type bucketRule struct {
	public bool
	mimes  []string
}

// Object describes a stored file.
type Object struct {
	Bucket       string    `json:"bucket"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Store is implemented by the local and S3 drivers.
type Store interface {
	Upload(ctx context.Context, bucket, name string, data []byte, contentType string) error
	Download(ctx context.Context, bucket, name string) ([]byte, error)
	Remove(ctx context.Context, bucket, name string) error
	List(ctx context.Context, bucket string) ([]Object, error)
	SignedURL(ctx context.Context, bucket, name string, ttl time.Duration) (string, error)
	PublicURL(bucket, name string) string
}

func Buckets() []string {
	return []string{BucketLogos, BucketMSDS, BucketToolboxTalks, BucketPolicies, BucketIncidents}
}

func IsPublic(bucket string) bool {
	return buckets[bucket].public
}

func CheckBucket(bucket string) error {
	if _, ok := buckets[bucket]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBucket, bucket)
	}
	return nil
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// CheckName rejects names that could escape a bucket.
func CheckName(name string) error {
	if name == "" || name != path.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// ObjectName builds a collision-free object name from an uploaded file name.
func ObjectName(prefix, fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, `\`, "/"))
	base = strings.Trim(unsafeNameChars.ReplaceAllString(strings.ToLower(base), "-"), "-.")
	if base == "" {
		base = "file"
	}
	return prefix + "-" + base
}

// Validate checks an upload against the bucket's allow-list and the size cap
// and returns the sniffed content type.
func Validate(bucket string, data []byte, maxBytes int64) (string, error) {
	rule, ok := buckets[bucket]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownBucket, bucket)
	}
	if len(data) == 0 {
		return "", errors.New("file is empty")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", ErrTooLarge
	}
	detected := mimetype.Detect(data)
	for _, allowed := range rule.mimes {
		if detected.Is(allowed) {
			return allowed, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, detected.String())
}
