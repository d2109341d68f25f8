package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrAccountNotFound = errors.New("user not found")
	ErrInvalidPassword = errors.New("invalid password")
	ErrEmptyText       = errors.New("text input is required")
	ErrClassification  = errors.New("classification failed")
)

// FieldErrors maps a request field to the reason it was rejected.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + ": " + fe[f]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
