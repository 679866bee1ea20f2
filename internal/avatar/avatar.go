// Package avatar converts profile images between their stored form (raw
// bytes plus a content type) and their transport form (base64 tagged with
// the content type). Server handlers and the directory client both go
// through this package, so the two sides cannot drift apart.
package avatar

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// MaxBytes is the largest avatar accepted on upload.
const MaxBytes = 2 << 20

const dataURIPrefix = "data:"

var (
	ErrEmpty       = errors.New("avatar: empty payload")
	ErrNotImage    = errors.New("avatar: content is not an image")
	ErrTooLarge    = fmt.Errorf("avatar: image exceeds %d bytes", MaxBytes)
	ErrBadEncoding = errors.New("avatar: malformed base64 payload")
	ErrBadDataURI  = errors.New("avatar: malformed data URI")
)

// Payload is the transport form of an avatar.
type Payload struct {
	ContentType string `json:"contentType"`
	Data        string `json:"data"` // standard base64
}

// Encode turns raw image bytes into a Payload. It returns nil when there is
// no image, so callers can assign it straight to an omitempty field.
func Encode(data []byte, contentType string) *Payload {
	if len(data) == 0 {
		return nil
	}
	return &Payload{
		ContentType: ContentType(data, contentType),
		Data:        base64.StdEncoding.EncodeToString(data),
	}
}

// Decode reverses Encode.
func Decode(p *Payload) ([]byte, string, error) {
	if p == nil || p.Data == "" {
		return nil, "", ErrEmpty
	}
	data, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	return data, ContentType(data, p.ContentType), nil
}

// DataURI renders the payload as a displayable image source:
//
//	data:image/png;base64,iVBORw0KGgo...
func (p *Payload) DataURI() string {
	if p == nil || p.Data == "" {
		return ""
	}
	return dataURIPrefix + p.ContentType + ";base64," + p.Data
}

// ParseDataURI accepts the output of DataURI and returns the payload it
// was built from.
func ParseDataURI(uri string) (*Payload, error) {
	rest, ok := strings.CutPrefix(uri, dataURIPrefix)
	if !ok {
		return nil, ErrBadDataURI
	}
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, ErrBadDataURI
	}
	contentType, ok := strings.CutSuffix(meta, ";base64")
	if !ok || data == "" {
		return nil, ErrBadDataURI
	}
	return &Payload{ContentType: contentType, Data: data}, nil
}

// ContentType returns declared when it is a specific type, otherwise the
// type sniffed from the bytes.
func ContentType(data []byte, declared string) string {
	declared = strings.TrimSpace(strings.ToLower(declared))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return http.DetectContentType(data)
}

// Validate checks an upload before it is stored and returns the content
// type to store alongside it.
func Validate(data []byte, declared string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if len(data) > MaxBytes {
		return "", ErrTooLarge
	}
	contentType := ContentType(data, declared)
	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrNotImage
	}
	return contentType, nil
}
