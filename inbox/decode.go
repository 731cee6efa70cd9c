package inbox

import (
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

var (
	// ErrNoContent is returned when the response has no "content" field.
	ErrNoContent = errors.New("JSON has no content field")
	// ErrInvalidContentEncoding is returned when decoded content is not UTF-8.
	ErrInvalidContentEncoding = errors.New("content is not valid UTF-8")
)

// InvalidContentTypeError is returned when "content" is not a string.
type InvalidContentTypeError struct {
	Type gjson.Type
}

func (e *InvalidContentTypeError) Error() string {
	return fmt.Sprintf("content field is %s, not a string", e.Type)
}

// InvalidContentError is returned when "content" is not valid base64.
type InvalidContentError struct {
	Err error
}

func (e *InvalidContentError) Error() string {
	return "content is not valid base64: " + e.Err.Error()
}

func (e *InvalidContentError) Unwrap() error {
	return e.Err
}

// DecodeContent extracts the base64 "content" field of a repository file
// response and returns it as text.
func DecodeContent(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("invalid JSON response")
	}
	field := gjson.GetBytes(body, "content")
	switch {
	case !field.Exists() || field.Type == gjson.Null:
		return "", ErrNoContent
	case field.Type != gjson.String:
		return "", &InvalidContentTypeError{Type: field.Type}
	}
	raw, err := base64.StdEncoding.DecodeString(field.String())
	if err != nil {
		return "", &InvalidContentError{Err: err}
	}
	if !utf8.Valid(raw) {
		return "", ErrInvalidContentEncoding
	}
	return string(raw), nil
}
