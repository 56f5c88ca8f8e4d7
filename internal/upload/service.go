package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/platform/audit"
	"intranet/pkg/platform/sentinel"
)

// Uploader stores a validated object and returns where it lives.
type Uploader interface {
	Upload(ctx context.Context, obj Object) (*Result, error)
}

type Metrics interface {
	ObserveUpload(kind, outcome string, bytes int64)
}

const DefaultMaxBytes = 10 << 20

type Service struct {
	uploader Uploader
	maxBytes int64

	logger         *slog.Logger
	auditPublisher audit.Emitter
	metrics        Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Emitter) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithMaxBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// NewService accepts a nil uploader; every upload then fails as unavailable.
func NewService(uploader Uploader, opts ...Option) *Service {
	s := &Service{
		uploader: uploader,
		maxBytes: DefaultMaxBytes,
		logger:   slog.New(slog.DiscardHandler),
		tracer:   otel.Tracer("intranet/upload"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Upload checks size and sniffed type, then forwards the file. The declared
// content type is only logged; the sniffed type decides.
func (s *Service) Upload(ctx context.Context, file io.Reader, filename, contentType string, kind Kind) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "upload.Upload", trace.WithAttributes(
		attribute.String("upload.kind", string(kind)),
	))
	defer span.End()

	if s.uploader == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "file uploads are not configured")
	}
	data, err := io.ReadAll(io.LimitReader(file, s.maxBytes+1))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read upload")
	}
	if len(data) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "file is empty")
	}
	if int64(len(data)) > s.maxBytes {
		s.observe(kind, "too_large", 0)
		return nil, dErrors.New(dErrors.CodeValidation, "file exceeds "+strconv.FormatInt(s.maxBytes, 10)+" bytes")
	}
	sniffed := mimetype.Detect(data).String()
	sniffed, _, _ = strings.Cut(sniffed, ";")
	if !kind.Accepts(sniffed) {
		s.observe(kind, "rejected_type", 0)
		s.logger.InfoContext(ctx, "upload type rejected", "declared", contentType, "sniffed", sniffed, "kind", kind)
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s files are not accepted as %s", sniffed, kind))
	}
	span.SetAttributes(attribute.String("upload.content_type", sniffed), attribute.Int("upload.bytes", len(data)))

	obj := Object{Data: data, Filename: cleanFilename(filename), ContentType: sniffed, Kind: kind}
	res, err := s.uploader.Upload(ctx, obj)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cdn upload failed")
		s.observe(kind, "failed", 0)
		s.logger.ErrorContext(ctx, "cdn upload failed", "error", err, "filename", obj.Filename)
		return nil, translate(err)
	}
	s.observe(kind, "success", res.Bytes)
	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventFileUploaded, "upload", res.PublicID,
		"filename", obj.Filename, "content_type", sniffed, "bytes", strconv.FormatInt(res.Bytes, 10))
	return res, nil
}

func (s *Service) observe(kind Kind, outcome string, n int64) {
	if s.metrics != nil {
		s.metrics.ObserveUpload(string(kind), outcome, n)
	}
}

func cleanFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}

func translate(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "file storage is temporarily unavailable")
	case errors.Is(err, ErrRejected):
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "file storage rejected the upload")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "file upload failed")
	}
}
