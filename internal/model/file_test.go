package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMetadata() FileMetadata {
	return FileMetadata{
		OriginalName: "photo.png",
		Category:     CategoryImage,
		Extension:    "png",
		UploadDate:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Size:         2048,
		UserID:       "u1",
		UserEmail:    "alice@example.com",
		UploadedBy:   "Alice",
	}
}

func TestFileMetadata_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *FileMetadata)
	}{
		{"missing name", func(m *FileMetadata) { m.OriginalName = "" }},
		{"unknown category", func(m *FileMetadata) { m.Category = "music" }},
		{"zero upload date", func(m *FileMetadata) { m.UploadDate = time.Time{} }},
		{"negative size", func(m *FileMetadata) { m.Size = -1 }},
		{"missing owner", func(m *FileMetadata) { m.UserID = "" }},
	}

	m := validMetadata()
	require.NoError(t, m.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMetadata()
			tt.mutate(&m)
			err := m.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidMetadata))
		})
	}
}

func TestFileMetadata_NonASCIIValuesSurviveHeaders(t *testing.T) {
	m := validMetadata()
	m.OriginalName = "résumé 2025.pdf"
	m.UploadedBy = "Zoë"

	raw := m.ToMap()
	for k, v := range raw {
		for _, r := range v {
			assert.Less(t, r, rune(128), "metadata %s must be ASCII, got %q", k, v)
		}
	}

	got := MetadataFromMap(raw)
	assert.Equal(t, "résumé 2025.pdf", got.OriginalName)
	assert.Equal(t, "Zoë", got.UploadedBy)
	assert.True(t, m.UploadDate.Equal(got.UploadDate))
}

func TestMetadataFromMap_CaseInsensitiveKeysAndGarbage(t *testing.T) {
	got := MetadataFromMap(map[string]string{
		"Original-Name": "a.txt",
		"Size":          "not-a-number",
		"upload-date":   "yesterday",
	})

	assert.Equal(t, "a.txt", got.OriginalName)
	assert.Zero(t, got.Size)
	assert.True(t, got.UploadDate.IsZero())
}

func TestSession_KeyPrefix(t *testing.T) {
	s := &Session{UserID: "abc"}
	assert.Equal(t, "users/abc/", s.KeyPrefix())
}

func TestCategory_Valid(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.Valid(), c)
	}
	for _, c := range []Category{"", "Image", "photos", "other "} {
		assert.False(t, c.Valid(), c)
	}
}
