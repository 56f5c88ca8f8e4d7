// Package domain holds identifier parsing shared by every module.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "intranet/pkg/domain-errors"
)

// maxIDLength bounds input before it reaches the UUID parser.
const maxIDLength = 64

// ParseID parses a path or body identifier. IDs must be valid, non-nil UUIDs.
func ParseID(s string) (uuid.UUID, error) {
	return parse(s, "id")
}

// ParseNamedID is ParseID with the field name reported in the error.
func ParseNamedID(s, field string) (uuid.UUID, error) {
	return parse(s, field)
}

// ParseIDs parses a list of identifiers, failing on the first bad one.
func ParseIDs(values []string, field string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		parsed, err := parse(v, field)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}

func parse(s, field string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	return parsed, nil
}
