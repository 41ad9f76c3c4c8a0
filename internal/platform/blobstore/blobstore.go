// Package blobstore stores uploaded files (lab result documents, patient
// photos) behind a small Store interface. LocalStore writes under a directory
// served at /uploads, S3Store writes to an S3-compatible bucket and
// MemoryStore backs tests.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
	ErrEmptyFile          = errors.New("file is empty")
	ErrInvalidKey         = errors.New("invalid object key")
)

// Object describes a stored blob.
type Object struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256,omitempty"`
	StoredAt    time.Time `json:"stored_at"`
}

// Store is the contract for blob storage backends. Delete of a missing key
// is not an error.
type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (*Object, error)
	Get(ctx context.Context, key string) (io.ReadCloser, *Object, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	URL(key string) string
}

// DocumentTypes are accepted for lab result attachments.
var DocumentTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"text/plain":      true,
	"text/csv":        true,
}

// ImageTypes are accepted for patient photos.
var ImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
}

// Policy bounds what an upload endpoint accepts.
type Policy struct {
	MaxSize      int64
	ContentTypes map[string]bool
}

// Validate checks an upload and returns its normalised media type. An empty
// or generic content type is inferred from the file extension.
func (p Policy) Validate(fileName, contentType string, size int64) (string, error) {
	if strings.TrimSpace(fileName) == "" {
		return "", ErrMissingFileName
	}
	if size == 0 {
		return "", ErrEmptyFile
	}
	if p.MaxSize > 0 && size > p.MaxSize {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, size, p.MaxSize)
	}

	mediaType := ""
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			mediaType = strings.ToLower(mt)
		}
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName))); byExt != "" {
			mediaType, _, _ = mime.ParseMediaType(byExt)
		}
	}
	if mediaType == "image/jpg" {
		mediaType = "image/jpeg"
	}
	if !p.ContentTypes[mediaType] {
		return "", fmt.Errorf("%w: %q", ErrInvalidContentType, contentType)
	}
	return mediaType, nil
}

// ValidateUpload validates a lab result document against max.
func ValidateUpload(fileName, contentType string, size, max int64) (string, error) {
	return Policy{MaxSize: max, ContentTypes: DocumentTypes}.Validate(fileName, contentType, size)
}

// ObjectKey builds "<prefix>/<uuid><ext>". Only the lower-cased extension of
// the client file name survives, so client paths never reach storage.
func ObjectKey(prefix, fileName string) string {
	ext := strings.ToLower(filepath.Ext(path.Base(strings.ReplaceAll(fileName, "\\", "/"))))
	if len(ext) > 10 || strings.ContainsAny(ext, " /\\\x00") {
		ext = ""
	}
	prefix = strings.Trim(path.Clean("/"+prefix), "/")
	if prefix == "" {
		return uuid.New().String() + ext
	}
	return prefix + "/" + uuid.New().String() + ext
}

// validKey rejects keys that could escape the storage root.
func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// readAll buffers r and returns its content with a SHA-256 digest.
func readAll(r io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("reading content: %w", err)
	}
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type storedBlob struct {
	object  Object
	content []byte
}

// MemoryStore is a thread-safe in-memory Store for tests.
type MemoryStore struct {
	mu        sync.RWMutex
	blobs     map[string]*storedBlob
	urlPrefix string
}

func NewMemoryStore(urlPrefix string) *MemoryStore {
	return &MemoryStore{
		blobs:     make(map[string]*storedBlob),
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
	}
}

func (s *MemoryStore) Put(_ context.Context, key, contentType string, r io.Reader) (*Object, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	data, sum, err := readAll(r)
	if err != nil {
		return nil, err
	}

	obj := Object{
		Key:         key,
		URL:         s.URL(key),
		ContentType: contentType,
		Size:        int64(len(data)),
		SHA256:      sum,
		StoredAt:    time.Now().UTC(),
	}

	s.mu.Lock()
	s.blobs[key] = &storedBlob{object: obj, content: data}
	s.mu.Unlock()

	out := obj
	return &out, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, *Object, error) {
	s.mu.RLock()
	blob, ok := s.blobs[key]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	obj := blob.object
	return io.NopCloser(bytes.NewReader(blob.content)), &obj, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[key]
	return ok, nil
}

func (s *MemoryStore) URL(key string) string {
	return s.urlPrefix + "/" + key
}

// Len returns the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
