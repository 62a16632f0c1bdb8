package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	pdfHeader = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")
)

func TestValidate(t *testing.T) {
	mime, err := Validate(BucketLogos, pngHeader, 1024)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)

	mime, err = Validate(BucketMSDS, pdfHeader, 1024)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", mime)

	_, err = Validate(BucketLogos, pdfHeader, 1024)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = Validate(BucketMSDS, pdfHeader, 8)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = Validate("secrets", pdfHeader, 1024)
	assert.ErrorIs(t, err, ErrUnknownBucket)

	_, err = Validate(BucketMSDS, nil, 1024)
	assert.Error(t, err)
}

func TestObjectNameAndCheckName(t *testing.T) {
	assert.Equal(t, "abc-site-plan.pdf", ObjectName("abc", "Site Plan.pdf"))
	assert.Equal(t, "abc-evil.pdf", ObjectName("abc", `..\..\evil.pdf`))
	assert.Equal(t, "abc-file", ObjectName("abc", "///"))

	assert.NoError(t, CheckName("abc-file.pdf"))
	for _, bad := range []string{"", ".", "..", "a/b", `a\b`} {
		assert.ErrorIs(t, CheckName(bad), ErrInvalidName, bad)
	}
}

func TestLocalLifecycle(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir(), "http://localhost:8080/api/files/", []byte("secret"))
	require.NoError(t, err)

	require.NoError(t, store.Upload(ctx, BucketPolicies, "b.pdf", pdfHeader, "application/pdf"))
	require.NoError(t, store.Upload(ctx, BucketPolicies, "a.pdf", pdfHeader, "application/pdf"))

	objects, err := store.List(ctx, BucketPolicies)
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "a.pdf", objects[0].Name)
	assert.Equal(t, int64(len(pdfHeader)), objects[0].Size)

	raw, err := store.Download(ctx, BucketPolicies, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, pdfHeader, raw)

	require.NoError(t, store.Remove(ctx, BucketPolicies, "a.pdf"))
	_, err = store.Download(ctx, BucketPolicies, "a.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.ErrorIs(t, store.Remove(ctx, BucketPolicies, "a.pdf"), ErrObjectNotFound)

	_, err = store.Download(ctx, BucketPolicies, "../a.pdf")
	assert.ErrorIs(t, err, ErrInvalidName)

	assert.Equal(t, "http://localhost:8080/api/files/policies/b.pdf", store.PublicURL(BucketPolicies, "b.pdf"))
}

func TestLocalSignedURL(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "http://localhost:8080/api/files", []byte("secret"))
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	signed, err := store.SignedURL(context.Background(), BucketMSDS, "sheet.pdf", time.Hour)
	require.NoError(t, err)
	parsed, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "/api/files/msds/sheet.pdf", parsed.Path)

	q := parsed.Query()
	assert.True(t, store.VerifySignature(BucketMSDS, "sheet.pdf", q.Get("expires"), q.Get("sig")))
	assert.False(t, store.VerifySignature(BucketMSDS, "other.pdf", q.Get("expires"), q.Get("sig")))
	assert.False(t, store.VerifySignature(BucketMSDS, "sheet.pdf", "nope", q.Get("sig")))

	now = now.Add(2 * time.Hour)
	assert.False(t, store.VerifySignature(BucketMSDS, "sheet.pdf", q.Get("expires"), q.Get("sig")))
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = raw
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(raw))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListObjectsV2Output{}
	prefix := aws.ToString(in.Bucket) + "/"
	for key, raw := range f.objects {
		name, ok := bytes.CutPrefix([]byte(key), []byte(prefix))
		if !ok {
			continue
		}
		out.Contents = append(out.Contents, types.Object{Key: aws.String(string(name)), Size: aws.Int64(int64(len(raw)))})
	}
	return out, nil
}

type fakePresigner struct{}

func (fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	opts := s3.PresignOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Expires <= 0 {
		return nil, errors.New("missing expiry")
	}
	return &v4.PresignedHTTPRequest{
		URL: "https://" + aws.ToString(in.Bucket) + ".s3.test/" + aws.ToString(in.Key) + "?X-Amz-Expires=" + opts.Expires.String(),
	}, nil
}

func TestS3Lifecycle(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := newS3(fake, fakePresigner{}, "acme-", "https://app.example.test/api/files")

	require.NoError(t, store.Upload(ctx, BucketLogos, "logo.png", pngHeader, "image/png"))
	assert.Equal(t, "image/png", fake.types["acme-company-logos/logo.png"])

	raw, err := store.Download(ctx, BucketLogos, "logo.png")
	require.NoError(t, err)
	assert.Equal(t, pngHeader, raw)

	objects, err := store.List(ctx, BucketLogos)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "logo.png", objects[0].Name)

	signed, err := store.SignedURL(ctx, BucketLogos, "logo.png", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, signed, "acme-company-logos.s3.test/logo.png")

	require.NoError(t, store.Remove(ctx, BucketLogos, "logo.png"))
	_, err = store.Download(ctx, BucketLogos, "logo.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	assert.ErrorIs(t, store.Upload(ctx, "nope", "x.png", pngHeader, ""), ErrUnknownBucket)
	assert.Equal(t, "https://app.example.test/api/files/company-logos/logo.png", store.PublicURL(BucketLogos, "logo.png"))
}
