package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"intranet/internal/platform/config"
	"intranet/pkg/platform/circuit"
	"intranet/pkg/requestcontext"
)

// ErrRejected marks a 4xx from the CDN. It does not count against the breaker.
var ErrRejected = errors.New("cdn rejected upload")

// maxResponseBytes caps how much of a CDN response is read.
const maxResponseBytes = 1 << 20

// Client posts signed multipart uploads to the CDN through a circuit breaker.
type Client struct {
	cfg     config.CDNConfig
	http    *http.Client
	breaker *circuit.Breaker[*Result]
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.http = c
	}
}

func NewClient(cfg config.CDNConfig, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		breaker: circuit.New[*Result]("cdn",
			circuit.WithLogger(logger),
			circuit.WithSuccessFilter(func(err error) bool {
				return err == nil || errors.Is(err, ErrRejected) || errors.Is(err, context.Canceled)
			}),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type cdnResponse struct {
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	PublicID  string `json:"public_id"`
	Bytes     int64  `json:"bytes"`
	Format    string `json:"format"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload sends obj to the CDN. An open breaker yields sentinel.ErrUnavailable.
func (c *Client) Upload(ctx context.Context, obj Object) (*Result, error) {
	return c.breaker.Execute(func() (*Result, error) {
		return c.upload(ctx, obj)
	})
}

func (c *Client) upload(ctx context.Context, obj Object) (*Result, error) {
	body, contentType, err := c.encode(obj, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(obj.ResourceType()), body)
	if err != nil {
		return nil, fmt.Errorf("build cdn request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cdn request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read cdn response: %w", err)
	}
	var out cdnResponse
	decodeErr := json.Unmarshal(raw, &out)

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("cdn returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return nil, fmt.Errorf("%w: %s", ErrRejected, msg)
	case decodeErr != nil:
		return nil, fmt.Errorf("decode cdn response: %w", decodeErr)
	}

	url := out.SecureURL
	if url == "" {
		url = out.URL
	}
	if url == "" || out.PublicID == "" {
		return nil, errors.New("cdn response missing url or public_id")
	}
	bytesStored := out.Bytes
	if bytesStored == 0 {
		bytesStored = int64(len(obj.Data))
	}
	return &Result{
		URL:         url,
		PublicID:    out.PublicID,
		Bytes:       bytesStored,
		Format:      out.Format,
		ContentType: obj.ContentType,
	}, nil
}

// encode builds the multipart body with the signed params and the file.
func (c *Client) encode(obj Object, now time.Time) (io.Reader, string, error) {
	params := map[string]string{
		"timestamp": strconv.FormatInt(now.Unix(), 10),
		"folder":    c.cfg.Folder,
	}
	signature := Sign(params, c.cfg.APISecret)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"api_key":   c.cfg.APIKey,
		"signature": signature,
	}
	for k, v := range params {
		if v != "" {
			fields[k] = v
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	fw, err := mw.CreateFormFile("file", obj.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := fw.Write(obj.Data); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// endpoint is {UploadURL}/{cloud}/{resource}/upload; the cloud segment is
// skipped when no cloud name is configured.
func (c *Client) endpoint(resourceType string) string {
	base := strings.TrimRight(c.cfg.UploadURL, "/")
	if c.cfg.CloudName != "" {
		base += "/" + c.cfg.CloudName
	}
	return base + "/" + resourceType + "/upload"
}
