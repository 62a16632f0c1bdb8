package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA64(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeFlattensPNG(t *testing.T) {
	img, err := Decode(pngBytes(t, 30, 10))
	require.NoError(t, err)
	assert.Equal(t, "PNG", img.Type)
	assert.Equal(t, 30, img.Width)
	assert.Equal(t, 10, img.Height)
	assert.InDelta(t, 3.0, img.AspectRatio(), 0.0001)

	decoded, err := png.Decode(bytes.NewReader(img.Data))
	require.NoError(t, err)
	_, isNRGBA := decoded.(*image.NRGBA)
	assert.True(t, isNRGBA)
}

func TestDecodeDownscalesLargeImages(t *testing.T) {
	img, err := Decode(pngBytes(t, MaxDimension*2, 100))
	require.NoError(t, err)
	assert.Equal(t, MaxDimension, img.Width)
	assert.Equal(t, 50, img.Height)
}

func TestDecodeRejectsNonImages(t *testing.T) {
	_, err := Decode([]byte("%PDF-1.4 not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = Decode(nil)
	assert.Error(t, err)
}

func TestDecodeDataURL(t *testing.T) {
	payload := []byte("hello")
	raw, mime, err := DecodeDataURL("data:text/plain;base64," + base64.StdEncoding.EncodeToString(payload))
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mime)
	assert.Equal(t, payload, raw)

	for _, bad := range []string{"", "http://x", "data:text/plain,hello", "data:;base64,aGk=", "data:image/png;base64,"} {
		_, _, err := DecodeDataURL(bad)
		assert.Error(t, err, bad)
	}
}

type memObjects map[string][]byte

func (m memObjects) Download(_ context.Context, bucket, name string) ([]byte, error) {
	raw, ok := m[bucket+"/"+name]
	if !ok {
		return nil, assert.AnError
	}
	return raw, nil
}

func TestResolverRoutesSources(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("remote"))
	}))
	defer srv.Close()

	r := &Resolver{
		HTTP:          NewHTTPFetcher(time.Second, WithPrivateNetworks(true)),
		Objects:       memObjects{"company-logos/logo.png": []byte("stored")},
		PublicBaseURL: "https://files.example.test/api/files/",
	}
	ctx := context.Background()

	got, err := r.Fetch(ctx, "storage://company-logos/logo.png")
	require.NoError(t, err)
	assert.Equal(t, "stored", string(got))

	got, err = r.Fetch(ctx, "https://files.example.test/api/files/company-logos/logo.png")
	require.NoError(t, err)
	assert.Equal(t, "stored", string(got))

	got, err = r.Fetch(ctx, srv.URL+"/image.png")
	require.NoError(t, err)
	assert.Equal(t, "remote", string(got))

	_, err = r.Fetch(ctx, srv.URL+"/missing")
	assert.Error(t, err)

	_, err = r.Fetch(ctx, "  ")
	assert.Error(t, err)
}

func TestHTTPFetcherTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewHTTPFetcher(50*time.Millisecond, WithPrivateNetworks(true)).Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestHTTPFetcherBlocksInternalAddresses(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("secret"))
	}))
	defer srv.Close()
	ctx := context.Background()

	for _, target := range []string{
		srv.URL + "/image.png",
		"http://169.254.169.254/latest/meta-data/",
		"http://10.0.0.8/logo.png",
		"http://[::1]:22/",
	} {
		_, err := NewHTTPFetcher(time.Second).Fetch(ctx, target)
		assert.ErrorIs(t, err, ErrBlockedAddress, target)
	}
	assert.Zero(t, hits)

	_, err := NewHTTPFetcher(time.Second).Fetch(ctx, "file:///etc/passwd")
	assert.ErrorIs(t, err, ErrBlockedAddress)
}

func TestHTTPFetcherAllowedHosts(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("image"))
	}))
	defer target.Close()
	redirect := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, strings.Replace(target.URL, "127.0.0.1", "localhost", 1), http.StatusFound)
	}))
	defer redirect.Close()
	ctx := context.Background()

	f := NewHTTPFetcher(time.Second, WithPrivateNetworks(true), WithAllowedHosts(" 127.0.0.1 "))
	got, err := f.Fetch(ctx, target.URL)
	require.NoError(t, err)
	assert.Equal(t, "image", string(got))

	_, err = f.Fetch(ctx, strings.Replace(target.URL, "127.0.0.1", "localhost", 1))
	assert.ErrorIs(t, err, ErrBlockedAddress)

	_, err = f.Fetch(ctx, redirect.URL)
	assert.ErrorIs(t, err, ErrBlockedAddress)
}
