package common

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Error taxonomy shared by the diff engine, the structural editor and the patch pipeline
var (
	ErrMalformedTree     = errors.New("malformed tree")
	ErrOutOfBounds       = errors.New("coordinate out of bounds")
	ErrNotAList          = errors.New("node is not a list")
	ErrStaleMatch        = errors.New("content does not match expected value")
	ErrInvalidName       = errors.New("invalid name")
	ErrIndexIntegrity    = errors.New("index integrity violation")
	ErrInvalidEdit       = errors.New("invalid edit")
	ErrUnknownNamespace  = errors.New("unknown namespace")
	ErrUnknownDefinition = errors.New("unknown definition")
	ErrNamespaceExists   = errors.New("namespace already exists")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrMalformedTree, "MalformedTree"},
	{ErrOutOfBounds, "OutOfBounds"},
	{ErrNotAList, "NotAList"},
	{ErrStaleMatch, "StaleMatch"},
	{ErrInvalidName, "InvalidName"},
	{ErrIndexIntegrity, "IndexIntegrityViolation"},
	{ErrInvalidEdit, "InvalidEdit"},
	{ErrUnknownNamespace, "UnknownNamespace"},
	{ErrUnknownDefinition, "UnknownDefinition"},
	{ErrNamespaceExists, "NamespaceExists"},
}

// Kind returns the taxonomy name of err, or "Internal" when err is not one of ours.
// Structural-edit callers receive this name alongside the message.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}

// Wrap attaches formatted context to one of the sentinel errors
func Wrap(sentinel error, message string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(message, args...))
}

// LogAndWrapError logs an error and wraps it with context
func LogAndWrapError(logger zerolog.Logger, err error, level zerolog.Level, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	context := fmt.Sprintf(message, args...)
	logger.WithLevel(level).Err(err).Str("kind", Kind(err)).Msg(context)

	return fmt.Errorf("%s: %w", context, err)
}
