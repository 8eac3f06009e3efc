// Package datauri parses and builds RFC 2397 data URIs and sniffs media content types.
package datauri

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	scheme   = "data:"
	sniffLen = 3072
)

var (
	ErrNotDataURI   = errors.New("datauri: missing data: scheme")
	ErrMalformed    = errors.New("datauri: missing comma separator")
	ErrBadEncoding  = errors.New("datauri: invalid base64 payload")
	ErrMIMEMismatch = errors.New("datauri: declared type does not match content")
)

// URI is a decoded data URI.
type URI struct {
	// MIMEType is the declared media type without parameters.
	MIMEType string
	// Params holds media type parameters such as charset.
	Params map[string]string
	Base64 bool
	Data   []byte
}

// Parse decodes a data URI of the form data:[<mediatype>][;base64],<data>.
func Parse(s string) (*URI, error) {
	if len(s) < len(scheme) || !strings.EqualFold(s[:len(scheme)], scheme) {
		return nil, ErrNotDataURI
	}
	header, payload, ok := strings.Cut(s[len(scheme):], ",")
	if !ok {
		return nil, ErrMalformed
	}

	u := &URI{Params: map[string]string{}}
	parts := strings.Split(header, ";")
	if last := parts[len(parts)-1]; strings.EqualFold(last, "base64") {
		u.Base64 = true
		parts = parts[:len(parts)-1]
	}

	u.MIMEType = strings.ToLower(strings.TrimSpace(parts[0]))
	for _, p := range parts[1:] {
		k, v, _ := strings.Cut(p, "=")
		if k = strings.TrimSpace(k); k != "" {
			u.Params[strings.ToLower(k)] = strings.TrimSpace(v)
		}
	}
	if u.MIMEType == "" {
		u.MIMEType = "text/plain"
		if _, ok := u.Params["charset"]; !ok {
			u.Params["charset"] = "US-ASCII"
		}
	}
	if !strings.Contains(u.MIMEType, "/") {
		return nil, fmt.Errorf("datauri: invalid media type %q", u.MIMEType)
	}

	if u.Base64 {
		data, err := decodeBase64(payload)
		if err != nil {
			return nil, ErrBadEncoding
		}
		u.Data = data
		return u, nil
	}

	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("datauri: invalid percent encoding: %w", err)
	}
	u.Data = []byte(data)
	return u, nil
}

func decodeBase64(payload string) ([]byte, error) {
	payload = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, payload)
	if data, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
}

// Encode builds a base64 data URI.
func Encode(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = Sniff(data)
	}
	return scheme + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// String re-encodes the URI in base64 form.
func (u *URI) String() string {
	return Encode(u.MIMEType, u.Data)
}

// Sniff detects the content type of data from its leading bytes.
func Sniff(data []byte) string {
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if mt := mimetype.Detect(head); mt != nil {
		if s := baseType(mt.String()); s != "" && s != "application/octet-stream" {
			return s
		}
	}
	return baseType(http.DetectContentType(head))
}

// SniffedType returns the detected type of the payload.
func (u *URI) SniffedType() string {
	return Sniff(u.Data)
}

// Verify checks that the declared type is consistent with the content.
// Unrecognized binary payloads are accepted as declared.
func (u *URI) Verify() error {
	sniffed := u.SniffedType()
	if sniffed == "application/octet-stream" {
		return nil
	}
	if sniffed == "text/plain" && strings.HasPrefix(u.MIMEType, "text/") {
		return nil
	}
	if !aliases(u.MIMEType, sniffed) {
		return fmt.Errorf("%w: declared %s, detected %s", ErrMIMEMismatch, u.MIMEType, sniffed)
	}
	return nil
}

// IsImage reports whether the declared type is an image type.
func (u *URI) IsImage() bool {
	return strings.HasPrefix(u.MIMEType, "image/")
}

func aliases(a, b string) bool {
	norm := func(s string) string {
		switch s {
		case "image/jpg", "image/pjpeg":
			return "image/jpeg"
		case "image/x-png":
			return "image/png"
		}
		return s
	}
	return norm(a) == norm(b)
}

func baseType(s string) string {
	base, _, _ := strings.Cut(s, ";")
	return strings.ToLower(strings.TrimSpace(base))
}
