package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/templui/drive/internal/ctxkeys"
	"github.com/templui/drive/internal/model"
	"github.com/templui/drive/internal/service"
	"github.com/templui/drive/internal/validation"
)

type fileHandler struct {
	fileService   *service.FileService
	maxUploadSize int64
	uploadMemory  int64
}

func NewFileHandler(fileService *service.FileService, maxUploadSize, uploadMemory int64) *fileHandler {
	return &fileHandler{
		fileService:   fileService,
		maxUploadSize: maxUploadSize,
		uploadMemory:  uploadMemory,
	}
}

type uploadResponse struct {
	Success  bool           `json:"success"`
	Key      string         `json:"key"`
	URL      string         `json:"url"`
	FileInfo model.FileInfo `json:"fileInfo"`
}

type batchResult struct {
	FileName string          `json:"fileName"`
	Success  bool            `json:"success"`
	Key      string          `json:"key,omitempty"`
	URL      string          `json:"url,omitempty"`
	FileInfo *model.FileInfo `json:"fileInfo,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type batchResponse struct {
	Success bool          `json:"success"`
	Results []batchResult `json:"results"`
}

var uploadMessages = messages{Failed: "Upload failed"}

// multipartOverhead lets a file of exactly the size limit through the request
// body cap. Each file is then checked against the limit on its own.
const multipartOverhead = 1 << 20

// Upload stores every "file" part of a multipart request. A single file gets
// the plain response; several get per-file results with 200 or 207, or with
// 400/500 when nothing was stored.
func (h *fileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	session := ctxkeys.Session(r.Context())
	if session == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)
	err := r.ParseMultipartForm(h.uploadMemory)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "File too large")
			return
		}
		slog.Debug("failed to parse upload form", "error", err)
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer func() {
		removeErr := r.MultipartForm.RemoveAll()
		if removeErr != nil {
			slog.Error("failed to remove multipart temp files", "error", removeErr)
		}
	}()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	category := model.Category(r.FormValue("category"))
	if category != "" && !category.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid category")
		return
	}

	if len(headers) == 1 {
		res, err := h.uploadOne(r.Context(), session, headers[0], category)
		if err != nil {
			writeServiceError(w, r, err, uploadMessages)
			return
		}
		writeJSON(w, http.StatusOK, uploadResponse{
			Success:  true,
			Key:      res.Key,
			URL:      res.URL,
			FileInfo: res.Info,
		})
		return
	}

	results := make([]batchResult, 0, len(headers))
	var ok int
	worst := http.StatusOK
	for _, header := range headers {
		res, err := h.uploadOne(r.Context(), session, header, category)
		if err != nil {
			worst = max(worst, statusFor(err))
			if statusFor(err) >= http.StatusInternalServerError {
				slog.Error("batch upload item failed", "error", err, "file", header.Filename, "user_id", session.UserID)
			}
			results = append(results, batchResult{FileName: header.Filename, Error: messageFor(err, uploadMessages)})
			continue
		}
		ok++
		info := res.Info
		results = append(results, batchResult{
			FileName: header.Filename,
			Success:  true,
			Key:      res.Key,
			URL:      res.URL,
			FileInfo: &info,
		})
	}

	status := http.StatusOK
	switch {
	case ok == 0 && worst >= http.StatusInternalServerError:
		status = http.StatusInternalServerError
	case ok == 0:
		status = http.StatusBadRequest
	case ok < len(headers):
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, batchResponse{Success: ok == len(headers), Results: results})
}

func (h *fileHandler) uploadOne(ctx context.Context, session *model.Session, header *multipart.FileHeader, category model.Category) (*service.UploadResult, error) {
	err := validation.ValidateUpload(header, h.maxUploadSize)
	if err != nil {
		return nil, err
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", service.ErrUploadFailed, err)
	}
	defer func() {
		closeErr := file.Close()
		if closeErr != nil {
			slog.Error("failed to close uploaded file", "error", closeErr)
		}
	}()

	contentType, err := validation.DetectContentType(file, header.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", service.ErrUploadFailed, err)
	}

	return h.fileService.Upload(ctx, session, service.UploadInput{
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
		Category:    category,
	})
}

type listResponse struct {
	Success bool              `json:"success"`
	Files   []model.FileEntry `json:"files"`
}

func (h *fileHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	files, err := h.fileService.List(r.Context(), ctxkeys.Session(r.Context()), service.ListOptions{
		Category: model.Category(q.Get("category")),
		Type:     model.Category(q.Get("type")),
		Search:   q.Get("q"),
		Sort:     q.Get("sort"),
	})
	if err != nil {
		writeServiceError(w, r, err, messages{Failed: "Failed to get files"})
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Success: true, Files: files})
}

type deleteResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	DeletedFile string `json:"deletedFile"`
}

func (h *fileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key, err := h.fileService.Delete(r.Context(), ctxkeys.Session(r.Context()), r.URL.Query().Get("blobName"))
	if err != nil {
		writeServiceError(w, r, err, messages{
			Forbidden: "Unauthorized to delete this file",
			Failed:    "Failed to delete file",
		})
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{
		Success:     true,
		Message:     "File deleted successfully",
		DeletedFile: key,
	})
}

// Download streams an owned object as an attachment.
func (h *fileHandler) Download(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("blobName")
	if key == "" {
		writeError(w, http.StatusBadRequest, "Missing blobName parameter")
		return
	}

	dl, err := h.fileService.Download(r.Context(), ctxkeys.Session(r.Context()), key, r.URL.Query().Get("fileName"))
	if err != nil {
		writeServiceError(w, r, err, messages{
			Forbidden: "Unauthorized to download this file",
			Failed:    "Failed to download file",
		})
		return
	}
	defer func() {
		closeErr := dl.Body.Close()
		if closeErr != nil {
			slog.Error("failed to close download body", "error", closeErr, "key", key)
		}
	}()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": dl.FileName})
	if disposition == "" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if dl.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	// Headers are sent; a failed copy can only be logged.
	_, err = io.Copy(w, dl.Body)
	if err != nil {
		slog.Warn("download interrupted", "error", err, "key", key)
	}
}

type previewResponse struct {
	Success bool `json:"success"`
	*service.Preview
}

func (h *fileHandler) Preview(w http.ResponseWriter, r *http.Request) {
	p, err := h.fileService.Preview(r.Context(), ctxkeys.Session(r.Context()), r.URL.Query().Get("blobName"))
	if err != nil {
		writeServiceError(w, r, err, messages{Failed: "Failed to preview file"})
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{Success: true, Preview: p})
}
