package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	body        []byte
	contentType string
	disposition string
	meta        map[string]string
	modified    time.Time
}

// fakeS3 is a path-style S3 endpoint covering the calls S3Storage makes.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]*fakeObject
	failPut bool
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{bucket: bucket, objects: map[string]*fakeObject{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/"+f.bucket)
	key := strings.TrimPrefix(path, "/")

	if key == "" {
		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
			f.list(w, r.URL.Query().Get("prefix"))
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
		return
	}

	switch r.Method {
	case http.MethodPut:
		if f.failPut {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `<Error><Code>InternalError</Code><Message>boom</Message></Error>`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		meta := map[string]string{}
		for k, v := range r.Header {
			if strings.HasPrefix(strings.ToLower(k), "x-amz-meta-") {
				meta[strings.ToLower(strings.TrimPrefix(strings.ToLower(k), "x-amz-meta-"))] = v[0]
			}
		}
		f.objects[key] = &fakeObject{
			body:        body,
			contentType: r.Header.Get("Content-Type"),
			disposition: r.Header.Get("Content-Disposition"),
			meta:        meta,
			modified:    time.Now().UTC().Truncate(time.Second),
		}
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead, http.MethodGet:
		obj, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				_, _ = io.WriteString(w, `<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			}
			return
		}
		for k, v := range obj.meta {
			w.Header().Set("x-amz-meta-"+k, v)
		}
		w.Header().Set("Content-Type", obj.contentType)
		w.Header().Set("Content-Length", fmt.Sprint(len(obj.body)))
		w.Header().Set("Last-Modified", obj.modified.Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(obj.body)
		}
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (f *fakeS3) list(w http.ResponseWriter, prefix string) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	fmt.Fprintf(&b, `<Name>%s</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>`, f.bucket, prefix, len(keys))
	for _, k := range keys {
		obj := f.objects[k]
		fmt.Fprintf(&b, `<Contents><Key>%s</Key><LastModified>%s</LastModified><ETag>"etag"</ETag><Size>%d</Size><StorageClass>STANDARD</StorageClass></Contents>`,
			k, obj.modified.Format("2006-01-02T15:04:05.000Z"), len(obj.body))
	}
	b.WriteString(`</ListBucketResult>`)

	w.Header().Set("Content-Type", "application/xml")
	_, _ = io.WriteString(w, b.String())
}

func newTestS3(t *testing.T) (*S3Storage, *fakeS3) {
	t.Helper()
	fake := newFakeS3("drive")
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewS3Storage(context.Background(), S3Config{
		Region:        "us-east-1",
		Bucket:        "drive",
		AccessKey:     "test",
		SecretKey:     "test",
		Endpoint:      srv.URL,
		UsePathStyle:  true,
		PresignExpiry: time.Hour,
	})
	require.NoError(t, err)
	return s, fake
}

func TestS3Storage_PutStatGetDelete(t *testing.T) {
	s, fake := newTestS3(t)
	ctx := context.Background()
	key := "users/u1/image/1700000000000-photo.png"

	err := s.Put(ctx, key, bytes.NewReader([]byte("png-bytes")), PutOptions{
		ContentType:        "image/png",
		ContentDisposition: `attachment; filename="photo.png"`,
		Size:               9,
		Metadata:           map[string]string{"original-name": "photo.png", "category": "image"},
	})
	require.NoError(t, err)

	stored := fake.objects[key]
	require.NotNil(t, stored)
	assert.Equal(t, "png-bytes", string(stored.body))
	assert.Equal(t, "image/png", stored.contentType)
	assert.Equal(t, `attachment; filename="photo.png"`, stored.disposition)
	assert.Equal(t, "photo.png", stored.meta["original-name"])

	info, err := s.Stat(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(9), info.Size)
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, "image", info.Metadata["category"])

	obj, err := s.Get(ctx, key)
	require.NoError(t, err)
	body, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	require.NoError(t, obj.Body.Close())
	assert.Equal(t, "png-bytes", string(body))

	require.NoError(t, s.Delete(ctx, key))

	_, err = s.Stat(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestS3Storage_ListScopesByPrefixAndCarriesMetadata(t *testing.T) {
	s, _ := newTestS3(t)
	ctx := context.Background()

	for _, key := range []string{
		"users/u1/image/1-a.png",
		"users/u1/document/2-b.pdf",
		"users/u2/image/3-c.png",
	} {
		err := s.Put(ctx, key, strings.NewReader("x"), PutOptions{
			Metadata: map[string]string{"original-name": key[strings.LastIndex(key, "-")+1:]},
		})
		require.NoError(t, err)
	}

	infos, err := s.List(ctx, "users/u1/")
	require.NoError(t, err)
	require.Len(t, infos, 2)

	names := map[string]string{}
	for _, info := range infos {
		assert.True(t, strings.HasPrefix(info.Key, "users/u1/"))
		assert.False(t, info.LastModified.IsZero())
		names[info.Key] = info.Metadata["original-name"]
	}
	assert.Equal(t, "a.png", names["users/u1/image/1-a.png"])
	assert.Equal(t, "b.pdf", names["users/u1/document/2-b.pdf"])

	infos, err = s.List(ctx, "users/u3/")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestS3Storage_PutFailureIsNotRetried(t *testing.T) {
	s, fake := newTestS3(t)
	fake.failPut = true

	err := s.Put(context.Background(), "users/u1/other/1-x.bin", strings.NewReader("x"), PutOptions{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrObjectNotFound)
}

func TestS3Storage_PresignedURL(t *testing.T) {
	s, _ := newTestS3(t)

	u, err := s.PresignedURL(context.Background(), "users/u1/image/1-photo.png", PresignOptions{
		Expiry:             5 * time.Minute,
		ContentDisposition: "inline",
	})
	require.NoError(t, err)
	assert.Contains(t, u, "/drive/users/u1/image/1-photo.png")
	assert.Contains(t, u, "X-Amz-Expires=300")
	assert.Contains(t, u, "response-content-disposition=inline")
}

func TestS3Storage_URLEscapesSegments(t *testing.T) {
	s, _ := newTestS3(t)

	u := s.URL("users/u1/document/1-my report.pdf")
	assert.True(t, strings.HasSuffix(u, "/drive/users/u1/document/1-my%20report.pdf"), u)
}
