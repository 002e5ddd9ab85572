package services

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"chat-hub/internal/models"
)

const (
	MaxImageBytes = 5 << 20
	MaxTextBytes  = 64 << 10

	imageURIPrefix = "data:image/"
	base64Marker   = ";base64,"
)

// imageFormats maps the format named in the data URI to the MIME type the
// decoded bytes have to sniff as.
var imageFormats = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
}

// ValidateContent checks a message payload before anything is written.
func ValidateContent(typ models.MessageType, content []string) error {
	if !typ.Valid() {
		return fmt.Errorf("%w: unknown message type %q", ErrInvalidContent, typ)
	}
	if len(content) == 0 {
		return fmt.Errorf("%w: content is empty", ErrInvalidContent)
	}

	if typ == models.MessageTypeText {
		return validateText(content)
	}
	for i, item := range content {
		if err := validateImage(item); err != nil {
			return fmt.Errorf("image %d: %w", i, err)
		}
	}
	return nil
}

func validateText(lines []string) error {
	total := 0
	blank := true
	for _, line := range lines {
		total += len(line)
		if strings.TrimSpace(line) != "" {
			blank = false
		}
	}
	if blank {
		return fmt.Errorf("%w: content is empty", ErrInvalidContent)
	}
	if total > MaxTextBytes {
		return fmt.Errorf("%w: text exceeds %d bytes", ErrInvalidContent, MaxTextBytes)
	}
	return nil
}

func validateImage(uri string) error {
	if !strings.HasPrefix(uri, imageURIPrefix) {
		return fmt.Errorf("%w: not an image data URI", ErrInvalidContent)
	}
	rest := uri[len(imageURIPrefix):]
	format, payload, ok := strings.Cut(rest, base64Marker)
	if !ok {
		return fmt.Errorf("%w: image payload is not base64", ErrInvalidContent)
	}

	format = strings.ToLower(format)
	wantMIME, ok := imageFormats[format]
	if !ok {
		return fmt.Errorf("%w: unsupported image format %q", ErrInvalidContent, format)
	}

	// reject before decoding anything obviously oversized
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes+3 {
		return fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidContent, MaxImageBytes)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("%w: decode image: %v", ErrInvalidContent, err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("%w: image is empty", ErrInvalidContent)
	}
	if len(raw) > MaxImageBytes {
		return fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidContent, MaxImageBytes)
	}

	if detected := mimetype.Detect(raw); !detected.Is(wantMIME) {
		return fmt.Errorf("%w: image data is %s, declared %s", ErrInvalidContent, detected.String(), format)
	}
	return nil
}
