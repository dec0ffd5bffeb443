package model

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Category string

const (
	CategoryImage    Category = "image"
	CategoryVideo    Category = "video"
	CategoryAudio    Category = "audio"
	CategoryDocument Category = "document"
	CategoryOther    Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryImage,
	CategoryVideo,
	CategoryAudio,
	CategoryDocument,
	CategoryOther,
}

func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

// Object metadata keys as written to the store (x-amz-meta-*).
const (
	metaOriginalName = "original-name"
	metaCategory     = "category"
	metaExtension    = "extension"
	metaUploadDate   = "upload-date"
	metaSize         = "size"
	metaUserID       = "user-id"
	metaUserEmail    = "user-email"
	metaUploadedBy   = "uploaded-by"
)

var ErrInvalidMetadata = errors.New("invalid file metadata")

// FileMetadata is the record attached to every stored object at write time.
type FileMetadata struct {
	OriginalName string    `json:"originalName"`
	Category     Category  `json:"category"`
	Extension    string    `json:"extension"`
	UploadDate   time.Time `json:"uploadDate"`
	Size         int64     `json:"size"`
	UserID       string    `json:"userId"`
	UserEmail    string    `json:"userEmail"`
	UploadedBy   string    `json:"uploadedBy"`
}

// Validate checks the required fields before the record is written.
func (m *FileMetadata) Validate() error {
	switch {
	case m.OriginalName == "":
		return fmt.Errorf("%w: original name is required", ErrInvalidMetadata)
	case !m.Category.Valid():
		return fmt.Errorf("%w: unknown category %q", ErrInvalidMetadata, m.Category)
	case m.UploadDate.IsZero():
		return fmt.Errorf("%w: upload date is required", ErrInvalidMetadata)
	case m.Size < 0:
		return fmt.Errorf("%w: negative size", ErrInvalidMetadata)
	case m.UserID == "":
		return fmt.Errorf("%w: user id is required", ErrInvalidMetadata)
	}
	return nil
}

// ToMap encodes the record as object metadata. Object stores only carry
// US-ASCII header values, so free-text fields are percent-encoded.
func (m *FileMetadata) ToMap() map[string]string {
	return map[string]string{
		metaOriginalName: url.PathEscape(m.OriginalName),
		metaCategory:     string(m.Category),
		metaExtension:    m.Extension,
		metaUploadDate:   m.UploadDate.UTC().Format(time.RFC3339Nano),
		metaSize:         strconv.FormatInt(m.Size, 10),
		metaUserID:       m.UserID,
		metaUserEmail:    url.PathEscape(m.UserEmail),
		metaUploadedBy:   url.PathEscape(m.UploadedBy),
	}
}

// MetadataFromMap decodes object metadata written by ToMap. Unknown or
// malformed values are left zero; objects written by other tools still list.
func MetadataFromMap(raw map[string]string) FileMetadata {
	get := func(key string) string {
		if v, ok := raw[key]; ok {
			return v
		}
		// Some S3 implementations return metadata keys with different casing.
		for k, v := range raw {
			if strings.EqualFold(k, key) {
				return v
			}
		}
		return ""
	}

	m := FileMetadata{
		OriginalName: unescape(get(metaOriginalName)),
		Category:     Category(get(metaCategory)),
		Extension:    get(metaExtension),
		UserID:       get(metaUserID),
		UserEmail:    unescape(get(metaUserEmail)),
		UploadedBy:   unescape(get(metaUploadedBy)),
	}
	if t, err := time.Parse(time.RFC3339Nano, get(metaUploadDate)); err == nil {
		m.UploadDate = t
	}
	if n, err := strconv.ParseInt(get(metaSize), 10, 64); err == nil {
		m.Size = n
	}
	return m
}

func unescape(s string) string {
	v, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return v
}

// FileEntry is one object in a user's listing.
type FileEntry struct {
	Name         string       `json:"name"`
	URL          string       `json:"url"`
	Size         int64        `json:"size"`
	LastModified time.Time    `json:"lastModified"`
	ContentType  string       `json:"contentType,omitempty"`
	Metadata     FileMetadata `json:"metadata"`
	Category     Category     `json:"category"`
}

// FileInfo describes a completed upload.
type FileInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Type       string    `json:"type"`
	Category   Category  `json:"category"`
	Extension  string    `json:"extension"`
	UploadDate time.Time `json:"uploadDate"`
	UserID     string    `json:"userId"`
	UserEmail  string    `json:"userEmail"`
}
