package validation

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file too large")
	ErrInvalidFilename = errors.New("invalid file name")
)

const maxFilenameLength = 255

// ValidateUpload checks a multipart file against the size limit.
func ValidateUpload(header *multipart.FileHeader, maxSize int64) error {
	if header.Size == 0 {
		return ErrEmptyFile
	}
	if maxSize > 0 && header.Size > maxSize {
		return fmt.Errorf("%w: maximum size is %d MB", ErrFileTooLarge, maxSize/(1<<20))
	}
	_, err := SanitizeFilename(header.Filename)
	return err
}

// SanitizeFilename reduces a client-supplied name to a single NFC-normalized
// path segment safe to embed in an object key.
func SanitizeFilename(name string) (string, error) {
	// Some browsers send the full client path.
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(norm.NFC.String(name))

	if name == "" || name == "." || name == ".." {
		return "", ErrInvalidFilename
	}
	if len(name) > maxFilenameLength {
		return "", fmt.Errorf("%w: name exceeds %d bytes", ErrInvalidFilename, maxFilenameLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: control characters are not allowed", ErrInvalidFilename)
		}
	}
	return name, nil
}

// DetectContentType returns the declared MIME type, or sniffs the first 512
// bytes when the client sent none or a generic one. The reader is rewound.
func DetectContentType(file io.ReadSeeker, declared string) (string, error) {
	if declared != "" {
		mediaType, _, err := mime.ParseMediaType(declared)
		if err == nil && mediaType != "application/octet-stream" {
			return declared, nil
		}
	}

	buffer := make([]byte, 512)
	n, err := io.ReadFull(file, buffer)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	_, err = file.Seek(0, io.SeekStart)
	if err != nil {
		return "", fmt.Errorf("failed to reset file pointer: %w", err)
	}

	return http.DetectContentType(buffer[:n]), nil
}
