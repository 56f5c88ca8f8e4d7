package upload_test

import (
	"bytes"
	"context"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"intranet/internal/upload"
	"intranet/internal/upload/mocks"
	"intranet/pkg/testutil"
)

func multipartRequest(t *testing.T, kind, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if kind != "" {
		require.NoError(t, mw.WriteField("kind", kind))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newUploadRouter(t *testing.T, cdn upload.Uploader) chi.Router {
	t.Helper()
	h := upload.NewHandler(upload.NewService(cdn, upload.WithMaxBytes(1024)), slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	h.RegisterAdmin(r)
	return r
}

func TestHandler_Upload(t *testing.T) {
	cdn := mocks.NewMockUploader(gomock.NewController(t))
	router := newUploadRouter(t, cdn)

	cdn.EXPECT().Upload(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, obj upload.Object) (*upload.Result, error) {
		return &upload.Result{URL: "https://cdn.example.com/x.pdf", PublicID: "intranet/x", Bytes: int64(len(obj.Data)), ContentType: obj.ContentType}, nil
	})

	rr := testutil.DoRequest(router, multipartRequest(t, "document", "policy.pdf", pdfData))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	res := testutil.UnmarshalResponse[upload.Result](t, rr)
	assert.Equal(t, "intranet/x", res.PublicID)
	assert.Equal(t, "application/pdf", res.ContentType)
}

func TestHandler_UploadErrors(t *testing.T) {
	cdn := mocks.NewMockUploader(gomock.NewController(t))
	router := newUploadRouter(t, cdn)

	t.Run("not multipart", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequestWithBody(t, http.MethodPost, "/uploads", `{}`))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})
	t.Run("missing file", func(t *testing.T) {
		rr := testutil.DoRequest(router, multipartRequest(t, "image", "", nil))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})
	t.Run("unknown kind", func(t *testing.T) {
		rr := testutil.DoRequest(router, multipartRequest(t, "video", "a.png", pngData))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})
	t.Run("wrong type", func(t *testing.T) {
		rr := testutil.DoRequest(router, multipartRequest(t, "image", "a.png", pdfData))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})
	t.Run("body too large", func(t *testing.T) {
		rr := testutil.DoRequest(router, multipartRequest(t, "image", "a.png", make([]byte, 128<<10)))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}
