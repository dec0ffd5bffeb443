package service

import (
	"path"
	"strings"

	"github.com/templui/drive/internal/model"
)

// ClassifyMIME derives the storage category from a MIME type.
func ClassifyMIME(mimeType string) model.Category {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mt, "image/"):
		return model.CategoryImage
	case strings.HasPrefix(mt, "video/"):
		return model.CategoryVideo
	case strings.HasPrefix(mt, "audio/"):
		return model.CategoryAudio
	case strings.Contains(mt, "pdf"),
		strings.Contains(mt, "document"),
		strings.Contains(mt, "text"),
		strings.Contains(mt, "msword"):
		return model.CategoryDocument
	}
	return model.CategoryOther
}

var extensionCategories = map[string]model.Category{}

func init() {
	table := map[model.Category][]string{
		model.CategoryImage:    {"jpg", "jpeg", "png", "gif", "bmp", "webp", "svg", "ico"},
		model.CategoryVideo:    {"mp4", "avi", "mov", "wmv", "flv", "webm", "mkv"},
		model.CategoryAudio:    {"mp3", "wav", "flac", "aac", "ogg", "m4a"},
		model.CategoryDocument: {"pdf", "doc", "docx", "txt", "rtf", "csv", "xlsx", "ppt", "pptx", "md", "markdown"},
	}
	for cat, exts := range table {
		for _, ext := range exts {
			extensionCategories[ext] = cat
		}
	}
}

// ClassifyExtension derives a category from a file name's extension.
func ClassifyExtension(name string) model.Category {
	if cat, ok := extensionCategories[Extension(name)]; ok {
		return cat
	}
	return model.CategoryOther
}

// DisplayCategory is the category shown in listings: the stored category,
// unless it is missing or "other", in which case the extension decides.
func DisplayCategory(stored model.Category, name string) model.Category {
	if stored.Valid() && stored != model.CategoryOther {
		return stored
	}
	return ClassifyExtension(name)
}

// Extension returns the lower-cased extension without the dot.
func Extension(name string) string {
	ext := path.Ext(name)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
