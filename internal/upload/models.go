package upload

import (
	"strings"

	dErrors "intranet/pkg/domain-errors"
)

// Kind selects which file types are accepted.
type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindImage, KindDocument:
		return k, nil
	case "":
		return KindImage, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "kind must be image or document")
}

var imageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Accepts reports whether a sniffed MIME type is allowed for the kind.
func (k Kind) Accepts(mime string) bool {
	if _, ok := imageTypes[mime]; ok {
		return true
	}
	return k == KindDocument && mime == "application/pdf"
}

// Object is a validated file ready to send to the CDN.
type Object struct {
	Data        []byte
	Filename    string
	ContentType string
	Kind        Kind
}

// ResourceType is the CDN bucket for the object: images are transformed,
// everything else is stored raw.
func (o Object) ResourceType() string {
	if _, ok := imageTypes[o.ContentType]; ok {
		return "image"
	}
	return "raw"
}

type Result struct {
	URL         string `json:"url"`
	PublicID    string `json:"public_id"`
	Bytes       int64  `json:"bytes"`
	Format      string `json:"format"`
	ContentType string `json:"content_type"`
}
