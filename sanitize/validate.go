package sanitize

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strings"
)

// MaxUploadSize is the largest accepted upload in bytes.
const MaxUploadSize int64 = 10 << 20

var (
	ErrInvalidUpload  = errors.New("invalid upload")
	ErrUploadType     = errors.New("file type not allowed")
	ErrUploadTooLarge = errors.New("file too large")
	ErrInvalidEmail   = errors.New("invalid email address")
	ErrInvalidURL     = errors.New("invalid url")
)

var uploadExtensions = []string{".txt", ".pdf", ".doc", ".docx", ".jpg", ".png", ".gif"}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// AllowedUploadExtensions lists the accepted extensions, lower case with
// the leading dot.
func AllowedUploadExtensions() []string {
	return slices.Clone(uploadExtensions)
}

// ValidateUpload checks a client-supplied file name and size. The
// extension comparison is case-insensitive; size may equal MaxUploadSize.
func ValidateUpload(name string, size int64) error {
	if name == "" || strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("%w: bad file name", ErrInvalidUpload)
	}
	if size < 0 {
		return fmt.Errorf("%w: negative size", ErrInvalidUpload)
	}

	ext := strings.ToLower(path.Ext(name))
	if !slices.Contains(uploadExtensions, ext) {
		return fmt.Errorf("%w: %q", ErrUploadType, ext)
	}
	if size > MaxUploadSize {
		return fmt.Errorf("%w: %d bytes", ErrUploadTooLarge, size)
	}
	return nil
}

func ValidateEmail(s string) error {
	if !emailPattern.MatchString(s) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(s string) error {
	if strings.ContainsAny(s, " \t\r\n") {
		return ErrInvalidURL
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}
