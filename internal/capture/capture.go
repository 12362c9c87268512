// Package capture holds the payload produced by the face-capture widget.
package capture

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidImage is returned for payloads that are not base64 data URLs.
	ErrInvalidImage = errors.New("invalid image payload")
	// ErrUnsupportedImage is returned for data URLs with a non image mime type.
	ErrUnsupportedImage = errors.New("unsupported image type")
)

var supportedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
}

// Result is one successful capture. It is immutable once created.
type Result struct {
	Image  string `json:"img"`
	Secure bool   `json:"secure"`
}

// Image is a decoded data URL.
type Image struct {
	MimeType string
	Data     []byte
}

// Decode parses and validates the data URL of the capture.
func (r Result) Decode() (*Image, error) {
	return ParseDataURL(r.Image)
}

// ParseDataURL decodes "data:image/jpeg;base64,...". Bare base64 is assumed
// to be JPEG, which is what the widget emits.
func ParseDataURL(raw string) (*Image, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}

	mimeType := "image/jpeg"
	payload := raw
	if strings.HasPrefix(raw, "data:") {
		parts := strings.SplitN(raw, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: missing data separator", ErrInvalidImage)
		}
		meta := strings.TrimPrefix(parts[0], "data:")
		if !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("%w: data url is not base64 encoded", ErrInvalidImage)
		}
		mimeType = strings.ToLower(strings.TrimSuffix(meta, ";base64"))
		payload = parts[1]
	}

	if _, ok := supportedTypes[mimeType]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, mimeType)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	return &Image{MimeType: mimeType, Data: data}, nil
}

// Fingerprint returns the hex SHA-1 of the decoded bytes.
func (i *Image) Fingerprint() string {
	sum := sha1.Sum(i.Data)
	return hex.EncodeToString(sum[:])
}
