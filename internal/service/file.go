package service

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/templui/drive/internal/markdown"
	"github.com/templui/drive/internal/model"
	"github.com/templui/drive/internal/storage"
	"github.com/templui/drive/internal/validation"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	SortDate = "date"
	SortName = "name"
	SortSize = "size"

	// Markdown larger than this previews without rendered HTML.
	maxMarkdownPreview = 1 << 20

	previewExpiry = 5 * time.Minute
)

// FileService is the blob access layer. Every key it touches lives under
// users/{userID}/ and every key taken from a client passes authorizeKey.
type FileService struct {
	storage       storage.Storage
	markdown      *markdown.Parser
	presignExpiry time.Duration
	now           func() time.Time
}

func NewFileService(store storage.Storage, parser *markdown.Parser, presignExpiry time.Duration) *FileService {
	return &FileService{
		storage:       store,
		markdown:      parser,
		presignExpiry: presignExpiry,
		now:           time.Now,
	}
}

type UploadInput struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
	Category    model.Category // optional; derived from ContentType when empty
}

type UploadResult struct {
	Key  string         `json:"key"`
	URL  string         `json:"url"`
	Info model.FileInfo `json:"fileInfo"`
}

// Upload stores the file under a timestamped key with its metadata record.
// Store failures are returned as ErrUploadFailed and are not retried.
func (s *FileService) Upload(ctx context.Context, session *model.Session, in UploadInput) (*UploadResult, error) {
	if session == nil || session.UserID == "" {
		return nil, ErrUnauthenticated
	}

	name, err := validation.SanitizeFilename(in.Name)
	if err != nil {
		return nil, badRequest("%s", err.Error())
	}

	category := in.Category
	if category == "" {
		category = ClassifyMIME(in.ContentType)
	}
	if !category.Valid() {
		return nil, badRequest("invalid category %q", category)
	}

	now := s.now().UTC()
	key := fmt.Sprintf("%s%s/%d-%s", session.KeyPrefix(), category, now.UnixMilli(), name)

	uploadedBy := session.Name
	if uploadedBy == "" {
		uploadedBy = session.Email
	}
	meta := model.FileMetadata{
		OriginalName: name,
		Category:     category,
		Extension:    Extension(name),
		UploadDate:   now,
		Size:         in.Size,
		UserID:       session.UserID,
		UserEmail:    session.Email,
		UploadedBy:   uploadedBy,
	}
	err = meta.Validate()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	err = s.storage.Put(ctx, key, in.Body, storage.PutOptions{
		ContentType:        in.ContentType,
		ContentDisposition: disposition("attachment", name),
		Size:               in.Size,
		Metadata:           meta.ToMap(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	slog.Info("file uploaded", "user_id", session.UserID, "key", key, "size", in.Size, "category", category)

	return &UploadResult{
		Key: key,
		URL: s.accessURL(ctx, key, storage.PresignOptions{}),
		Info: model.FileInfo{
			Name:       name,
			Size:       in.Size,
			Type:       in.ContentType,
			Category:   category,
			Extension:  meta.Extension,
			UploadDate: now,
			UserID:     session.UserID,
			UserEmail:  session.Email,
		},
	}, nil
}

type ListOptions struct {
	Category model.Category // restricts the key prefix
	Type     model.Category // filters on display category
	Search   string         // case-insensitive substring of name or key
	Sort     string         // date (default), name or size
}

// List returns the caller's files, newest first unless opts.Sort says otherwise.
func (s *FileService) List(ctx context.Context, session *model.Session, opts ListOptions) ([]model.FileEntry, error) {
	if session == nil || session.UserID == "" {
		return nil, ErrUnauthenticated
	}
	if opts.Category != "" && !opts.Category.Valid() {
		return nil, badRequest("invalid category %q", opts.Category)
	}
	if opts.Type != "" && !opts.Type.Valid() {
		return nil, badRequest("invalid type %q", opts.Type)
	}
	switch opts.Sort {
	case "", SortDate, SortName, SortSize:
	default:
		return nil, badRequest("invalid sort %q", opts.Sort)
	}

	prefix := session.KeyPrefix()
	if opts.Category != "" {
		prefix += string(opts.Category) + "/"
	}

	infos, err := s.storage.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListFailed, err)
	}

	search := strings.ToLower(strings.TrimSpace(opts.Search))
	files := make([]model.FileEntry, 0, len(infos))
	for _, info := range infos {
		if !strings.HasPrefix(info.Key, prefix) {
			continue
		}

		entry := s.entry(ctx, info)
		if search != "" &&
			!strings.Contains(strings.ToLower(entry.Metadata.OriginalName), search) &&
			!strings.Contains(strings.ToLower(entry.Name), search) {
			continue
		}
		if opts.Type != "" && entry.Category != opts.Type {
			continue
		}
		files = append(files, entry)
	}

	sortEntries(files, opts.Sort)
	return files, nil
}

func (s *FileService) entry(ctx context.Context, info storage.ObjectInfo) model.FileEntry {
	meta := model.MetadataFromMap(info.Metadata)
	if meta.OriginalName == "" {
		meta.OriginalName = originalNameFromKey(info.Key)
	}
	if meta.Size == 0 {
		meta.Size = info.Size
	}

	return model.FileEntry{
		Name:         info.Key,
		URL:          s.accessURL(ctx, info.Key, storage.PresignOptions{}),
		Size:         info.Size,
		LastModified: info.LastModified,
		ContentType:  info.ContentType,
		Metadata:     meta,
		Category:     DisplayCategory(meta.Category, meta.OriginalName),
	}
}

func sortEntries(files []model.FileEntry, by string) {
	slices.SortStableFunc(files, func(a, b model.FileEntry) int {
		var c int
		switch by {
		case SortName:
			c = strings.Compare(strings.ToLower(a.Metadata.OriginalName), strings.ToLower(b.Metadata.OriginalName))
		case SortSize:
			c = cmp.Compare(b.Size, a.Size)
		default:
			c = b.LastModified.Compare(a.LastModified)
		}
		if c != 0 {
			return c
		}
		// Keys embed the upload time in millis, so this keeps same-second uploads newest first.
		return strings.Compare(b.Name, a.Name)
	})
}

type Download struct {
	Body        io.ReadCloser
	FileName    string
	ContentType string
	Size        int64
}

// Download opens an owned object for streaming. displayName defaults to the
// stored original name, then the last key segment.
func (s *FileService) Download(ctx context.Context, session *model.Session, key, displayName string) (*Download, error) {
	err := authorizeKey(session, key)
	if err != nil {
		return nil, err
	}

	obj, err := s.storage.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = model.MetadataFromMap(obj.Metadata).OriginalName
	}
	if name == "" {
		name = path.Base(key)
	}
	if name == "" || name == "." || name == "/" {
		name = "file"
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &Download{
		Body:        obj.Body,
		FileName:    name,
		ContentType: contentType,
		Size:        obj.Size,
	}, nil
}

// Delete removes an owned object and returns its key. A missing object
// reports ErrNotFound, so the loser of two racing deletes sees NotFound.
func (s *FileService) Delete(ctx context.Context, session *model.Session, key string) (string, error) {
	err := authorizeKey(session, key)
	if err != nil {
		return "", err
	}

	_, err = s.storage.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}

	err = s.storage.Delete(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}

	slog.Info("file deleted", "user_id", session.UserID, "key", key)
	return key, nil
}

type Preview struct {
	URL         string         `json:"url"`
	Category    model.Category `json:"category"`
	ContentType string         `json:"contentType"`
	Name        string         `json:"name"`
	Title       string         `json:"title,omitempty"`
	HTML        string         `json:"html,omitempty"`
}

// Preview returns a short-lived inline URL for an owned object. Markdown
// documents are also rendered to HTML.
func (s *FileService) Preview(ctx context.Context, session *model.Session, key string) (*Preview, error) {
	err := authorizeKey(session, key)
	if err != nil {
		return nil, err
	}

	info, err := s.storage.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: %w", ErrPreviewFailed, err)
	}

	entry := s.entry(ctx, *info)
	p := &Preview{
		Category:    entry.Category,
		ContentType: info.ContentType,
		Name:        entry.Metadata.OriginalName,
		URL: s.accessURL(ctx, key, storage.PresignOptions{
			Expiry:             previewExpiry,
			ContentDisposition: disposition("inline", entry.Metadata.OriginalName),
			ContentType:        info.ContentType,
		}),
	}

	if !isMarkdown(p.Name) || s.markdown == nil {
		return p, nil
	}
	if info.Size > maxMarkdownPreview {
		slog.Debug("markdown too large to render", "key", key, "size", info.Size)
		return p, nil
	}

	obj, err := s.storage.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPreviewFailed, err)
	}
	defer func() {
		closeErr := obj.Body.Close()
		if closeErr != nil {
			slog.Error("failed to close object body", "error", closeErr, "key", key)
		}
	}()

	var src bytes.Buffer
	_, err = src.ReadFrom(io.LimitReader(obj.Body, maxMarkdownPreview))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPreviewFailed, err)
	}

	doc, err := s.markdown.Render(src.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPreviewFailed, err)
	}

	p.HTML = string(doc.HTML)
	p.Title = doc.Title
	if p.Title == "" {
		p.Title = titleFromName(p.Name)
	}
	return p, nil
}

// accessURL presigns a GET URL, falling back to the direct URL.
func (s *FileService) accessURL(ctx context.Context, key string, opts storage.PresignOptions) string {
	if opts.Expiry == 0 {
		opts.Expiry = s.presignExpiry
	}
	u, err := s.storage.PresignedURL(ctx, key, opts)
	if err != nil {
		slog.Warn("failed to presign URL, using direct URL", "error", err, "key", key)
		return s.storage.URL(key)
	}
	return u
}

// authorizeKey is the ownership check for every client-supplied key: the key
// must be a clean path under the caller's own users/{id}/ prefix.
func authorizeKey(session *model.Session, key string) error {
	if session == nil || session.UserID == "" {
		return ErrUnauthenticated
	}
	if key == "" {
		return badRequest("No file specified")
	}

	prefix := session.KeyPrefix()
	if !strings.HasPrefix(key, prefix) || len(key) == len(prefix) || path.Clean(key) != key {
		slog.Warn("cross-user key access denied", "user_id", session.UserID, "key", key)
		return ErrForbidden
	}
	return nil
}

// originalNameFromKey strips the users/{id}/{category}/{millis}- prefix.
func originalNameFromKey(key string) string {
	base := path.Base(key)
	if ts, rest, ok := strings.Cut(base, "-"); ok && ts != "" && strings.Trim(ts, "0123456789") == "" {
		return rest
	}
	return base
}

func disposition(kind, name string) string {
	v := mime.FormatMediaType(kind, map[string]string{"filename": name})
	if v == "" {
		return kind
	}
	return v
}

func isMarkdown(name string) bool {
	switch Extension(name) {
	case "md", "markdown":
		return true
	}
	return false
}

func titleFromName(name string) string {
	base := strings.TrimSuffix(name, path.Ext(name))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	return cases.Title(language.English).String(base)
}
