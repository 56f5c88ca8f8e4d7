package upload

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intranet/internal/platform/config"
	"intranet/pkg/platform/sentinel"
	"intranet/pkg/requestcontext"
)

func testConfig(url string) config.CDNConfig {
	return config.CDNConfig{
		UploadURL: url,
		CloudName: "acme",
		APIKey:    "key-123",
		APISecret: "s3cret",
		Folder:    "intranet",
		Timeout:   5 * time.Second,
	}
}

func TestClient_UploadSignsRequest(t *testing.T) {
	at := time.Unix(1700000000, 0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/acme/image/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "key-123", r.FormValue("api_key"))
		assert.Equal(t, "1700000000", r.FormValue("timestamp"))
		assert.Equal(t, "intranet", r.FormValue("folder"))
		assert.Equal(t, Sign(map[string]string{"timestamp": "1700000000", "folder": "intranet"}, "s3cret"), r.FormValue("signature"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "logo.png", hdr.Filename)
		assert.Equal(t, []byte("png-bytes"), body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"secure_url":"https://cdn.example.com/acme/logo.png","public_id":"intranet/logo","bytes":9,"format":"png"}`)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), slog.New(slog.DiscardHandler))
	ctx := requestcontext.WithTime(context.Background(), at)
	res, err := c.Upload(ctx, Object{Data: []byte("png-bytes"), Filename: "logo.png", ContentType: "image/png", Kind: KindImage})
	require.NoError(t, err)
	assert.Equal(t, &Result{
		URL:         "https://cdn.example.com/acme/logo.png",
		PublicID:    "intranet/logo",
		Bytes:       9,
		Format:      "png",
		ContentType: "image/png",
	}, res)
}

func TestClient_DocumentsGoToRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/acme/raw/upload", r.URL.Path)
		_, _ = io.WriteString(w, `{"url":"http://cdn.example.com/h.pdf","public_id":"intranet/h"}`)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), slog.New(slog.DiscardHandler))
	res, err := c.Upload(context.Background(), Object{Data: []byte("%PDF"), Filename: "h.pdf", ContentType: "application/pdf", Kind: KindDocument})
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.example.com/h.pdf", res.URL)
	assert.Equal(t, int64(4), res.Bytes)
}

func TestClient_RejectionsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"Invalid image file"}}`)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), slog.New(slog.DiscardHandler))
	for range 8 {
		_, err := c.Upload(context.Background(), Object{Data: []byte("x"), Filename: "x.png", ContentType: "image/png"})
		require.ErrorIs(t, err, ErrRejected)
		assert.Contains(t, err.Error(), "Invalid image file")
	}
	assert.Equal(t, int32(8), calls.Load())
}

func TestClient_ServerErrorsOpenBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), slog.New(slog.DiscardHandler))
	obj := Object{Data: []byte("x"), Filename: "x.png", ContentType: "image/png"}
	for range 5 {
		_, err := c.Upload(context.Background(), obj)
		require.Error(t, err)
		require.NotErrorIs(t, err, sentinel.ErrUnavailable)
	}
	_, err := c.Upload(context.Background(), obj)
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Equal(t, int32(5), calls.Load())
}

func TestClient_BadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"public_id":""}`)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), slog.New(slog.DiscardHandler))
	_, err := c.Upload(context.Background(), Object{Data: []byte("x"), ContentType: "image/png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing url")
}
