package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Local keeps each bucket as a directory under root. Signed URLs are
// HMAC-signed links back to the file API.
type Local struct {
	root    string
	baseURL string
	secret  []byte
	now     func() time.Time
}

func NewLocal(root, publicBaseURL string, secret []byte) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage root is required")
	}
	for _, bucket := range Buckets() {
		if err := os.MkdirAll(filepath.Join(root, bucket), 0o755); err != nil {
			return nil, fmt.Errorf("create bucket dir %s: %w", bucket, err)
		}
	}
	return &Local{
		root:    root,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		secret:  secret,
		now:     time.Now,
	}, nil
}

func (l *Local) objectPath(bucket, name string) (string, error) {
	if err := CheckBucket(bucket); err != nil {
		return "", err
	}
	if err := CheckName(name); err != nil {
		return "", err
	}
	return filepath.Join(l.root, bucket, name), nil
}

func (l *Local) Upload(_ context.Context, bucket, name string, data []byte, _ string) error {
	target, err := l.objectPath(bucket, name)
	if err != nil {
		return err
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s/%s: %w", bucket, name, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit %s/%s: %w", bucket, name, err)
	}
	return nil
}

func (l *Local) Download(_ context.Context, bucket, name string) ([]byte, error) {
	target, err := l.objectPath(bucket, name)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	return raw, err
}

func (l *Local) Remove(_ context.Context, bucket, name string) error {
	target, err := l.objectPath(bucket, name)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrObjectNotFound
		}
		return err
	}
	return nil
}

func (l *Local) List(_ context.Context, bucket string) ([]Object, error) {
	if err := CheckBucket(bucket); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(l.root, bucket))
	if err != nil {
		return nil, err
	}
	out := make([]Object, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, Object{Bucket: bucket, Name: entry.Name(), Size: info.Size(), LastModified: info.ModTime().UTC()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (l *Local) PublicURL(bucket, name string) string {
	return l.baseURL + "/" + bucket + "/" + url.PathEscape(name)
}

func (l *Local) SignedURL(_ context.Context, bucket, name string, ttl time.Duration) (string, error) {
	if _, err := l.objectPath(bucket, name); err != nil {
		return "", err
	}
	expires := l.now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", l.sign(bucket, name, expires))
	return l.PublicURL(bucket, name) + "?" + q.Encode(), nil
}

// VerifySignature checks a signature produced by SignedURL.
func (l *Local) VerifySignature(bucket, name, expires, sig string) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || l.now().Unix() > exp {
		return false
	}
	want := l.sign(bucket, name, exp)
	return hmac.Equal([]byte(want), []byte(sig))
}

func (l *Local) sign(bucket, name string, expires int64) string {
	mac := hmac.New(sha256.New, l.secret)
	fmt.Fprintf(mac, "%s\n%s\n%d", bucket, name, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
