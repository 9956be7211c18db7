package faults

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Kind discriminates pipeline failures. It is stored as the TextCode of the
// underlying go-errors value so callers can switch over it exhaustively.
type Kind string

const (
	KindCredentialsMissing Kind = "CREDENTIALS_MISSING"
	KindClientAuthFailed   Kind = "CLIENT_AUTH_FAILED"
	KindClientRequired     Kind = "CLIENT_REQUIRED"
	KindNotFound           Kind = "NOT_FOUND"
	KindMissingField       Kind = "MISSING_FIELD"
	KindEmptyField         Kind = "EMPTY_FIELD"
	KindRouteProcessing    Kind = "ROUTE_PROCESSING"
	KindInvalidInput       Kind = "INVALID_INPUT"
	KindDeliveryFailed     Kind = "DELIVERY_FAILED"
	KindUnknown            Kind = "UNKNOWN"
)

const (
	MetaField      = "field"
	MetaMessageSID = "message_sid"
	MetaRoute      = "route"
)

type profile struct {
	category goerrors.Category
	code     int
}

var profiles = map[Kind]profile{
	KindCredentialsMissing: {goerrors.CategoryInternal, http.StatusInternalServerError},
	KindClientAuthFailed:   {goerrors.CategoryAuth, http.StatusUnauthorized},
	KindClientRequired:     {goerrors.CategoryInternal, http.StatusInternalServerError},
	KindNotFound:           {goerrors.CategoryNotFound, http.StatusNotFound},
	KindMissingField:       {goerrors.CategoryValidation, http.StatusUnprocessableEntity},
	KindEmptyField:         {goerrors.CategoryValidation, http.StatusUnprocessableEntity},
	KindRouteProcessing:    {goerrors.CategoryOperation, http.StatusInternalServerError},
	KindInvalidInput:       {goerrors.CategoryBadInput, http.StatusBadRequest},
	KindDeliveryFailed:     {goerrors.CategoryExternal, http.StatusBadGateway},
}

// New builds a fault of the given kind.
func New(kind Kind, message string, metadata map[string]any) *goerrors.Error {
	p := lookup(kind)
	err := goerrors.New(message, p.category).
		WithCode(p.code).
		WithTextCode(string(kind))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// Wrap builds a fault of the given kind that keeps source as its cause.
func Wrap(source error, kind Kind, message string, metadata map[string]any) *goerrors.Error {
	if source == nil {
		return New(kind, message, metadata)
	}
	p := lookup(kind)
	err := goerrors.Wrap(source, p.category, message).
		WithCode(p.code).
		WithTextCode(string(kind))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func CredentialsMissing(names ...string) *goerrors.Error {
	return New(KindCredentialsMissing,
		fmt.Sprintf("missing credentials: %s", strings.Join(names, ", ")),
		map[string]any{"missing": names})
}

func MissingField(field string) *goerrors.Error {
	return New(KindMissingField, fmt.Sprintf("Field '%s' is missing", field), map[string]any{MetaField: field})
}

func EmptyField(field string) *goerrors.Error {
	return New(KindEmptyField, fmt.Sprintf("Field '%s' is empty", field), map[string]any{MetaField: field})
}

func InvalidInput(field, message string) *goerrors.Error {
	return New(KindInvalidInput, message, map[string]any{MetaField: field})
}

// KindOf resolves the fault kind carried by err. Errors that were not built by
// this package report KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return KindUnknown
	}
	kind := Kind(rich.TextCode)
	if _, ok := profiles[kind]; !ok {
		return KindUnknown
	}
	return kind
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Field returns the field name attached to a field-level fault, if any.
func Field(err error) string {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Metadata == nil {
		return ""
	}
	field, _ := rich.Metadata[MetaField].(string)
	return field
}

// Meta returns a metadata value attached to a fault.
func Meta(err error, key string) any {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Metadata == nil {
		return nil
	}
	return rich.Metadata[key]
}

// Message returns the human readable message of a fault without its cause.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Message != "" {
		return rich.Message
	}
	return err.Error()
}

func lookup(kind Kind) profile {
	if p, ok := profiles[kind]; ok {
		return p
	}
	return profile{goerrors.CategoryInternal, http.StatusInternalServerError}
}
