// Package storagetest provides an in-memory storage.Storage for tests.
package storagetest

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/templui/drive/internal/storage"
)

type object struct {
	body        []byte
	contentType string
	disposition string
	metadata    map[string]string
	modified    time.Time
}

// Memory is a concurrency-safe in-memory object store. Set the *Err fields
// to make the matching operation fail.
type Memory struct {
	mu      sync.Mutex
	objects map[string]*object

	// Now stamps LastModified; defaults to time.Now.
	Now func() time.Time

	PutErr    error
	ListErr   error
	StatErr   error
	GetErr    error
	DeleteErr error
}

var _ storage.Storage = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{objects: map[string]*object{}, Now: time.Now}
}

func (m *Memory) Put(_ context.Context, key string, body io.Reader, opts storage.PutOptions) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = &object{
		body:        data,
		contentType: opts.ContentType,
		disposition: opts.ContentDisposition,
		metadata:    maps.Clone(opts.Metadata),
		modified:    m.Now(),
	}
	return nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []storage.ObjectInfo
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, obj.info(key))
		}
	}
	// Lexicographic, like S3.
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) Stat(_ context.Context, key string) (*storage.ObjectInfo, error) {
	if m.StatErr != nil {
		return nil, m.StatErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	info := obj.info(key)
	return &info, nil
}

func (m *Memory) Get(_ context.Context, key string) (*storage.Object, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return &storage.Object{
		ObjectInfo: obj.info(key),
		Body:       io.NopCloser(strings.NewReader(string(obj.body))),
	}, nil
}

// Delete is idempotent, like S3 DeleteObject.
func (m *Memory) Delete(_ context.Context, key string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) PresignedURL(_ context.Context, key string, opts storage.PresignOptions) (string, error) {
	q := url.Values{}
	q.Set("expires", opts.Expiry.String())
	if opts.ContentDisposition != "" {
		q.Set("response-content-disposition", opts.ContentDisposition)
	}
	return m.URL(key) + "?" + q.Encode(), nil
}

func (m *Memory) URL(key string) string {
	return "memory://drive/" + key
}

// Disposition returns the stored Content-Disposition of key.
func (m *Memory) Disposition(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if obj, ok := m.objects[key]; ok {
		return obj.disposition
	}
	return ""
}

// Keys returns every stored key, sorted.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (o *object) info(key string) storage.ObjectInfo {
	return storage.ObjectInfo{
		Key:          key,
		Size:         int64(len(o.body)),
		LastModified: o.modified,
		ContentType:  o.contentType,
		Metadata:     maps.Clone(o.metadata),
	}
}
