package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Validate(t *testing.T) {
	p := Policy{MaxSize: 1024, ContentTypes: DocumentTypes}

	tests := []struct {
		name        string
		fileName    string
		contentType string
		size        int64
		want        string
		wantErr     error
	}{
		{"pdf", "report.pdf", "application/pdf", 100, "application/pdf", nil},
		{"csv with params", "panel.csv", "text/csv; charset=utf-8", 100, "text/csv", nil},
		{"jpg alias", "scan.jpg", "image/jpg", 100, "image/jpeg", nil},
		{"inferred from extension", "scan.png", "application/octet-stream", 100, "image/png", nil},
		{"inferred when empty", "report.pdf", "", 100, "application/pdf", nil},
		{"missing name", " ", "application/pdf", 100, "", ErrMissingFileName},
		{"empty", "a.pdf", "application/pdf", 0, "", ErrEmptyFile},
		{"too large", "a.pdf", "application/pdf", 2048, "", ErrFileTooLarge},
		{"html rejected", "a.html", "text/html", 100, "", ErrInvalidContentType},
		{"exe rejected", "a.exe", "application/octet-stream", 100, "", ErrInvalidContentType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Validate(tt.fileName, tt.contentType, tt.size)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateUpload_UsesDocumentTypes(t *testing.T) {
	_, err := ValidateUpload("x.pdf", "application/pdf", 10, 100)
	assert.NoError(t, err)

	_, err = ValidateUpload("x.pdf", "application/pdf", 101, 100)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestImagePolicy_RejectsDocuments(t *testing.T) {
	p := Policy{MaxSize: 1 << 20, ContentTypes: ImageTypes}
	_, err := p.Validate("cv.pdf", "application/pdf", 10)
	assert.ErrorIs(t, err, ErrInvalidContentType)
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("lab-results/p1", "Blood Panel.PDF")
	assert.True(t, strings.HasPrefix(key, "lab-results/p1/"), key)
	assert.True(t, strings.HasSuffix(key, ".pdf"), key)
	assert.NoError(t, validKey(key))

	key = ObjectKey("../../etc", `C:\Users\me\photo.jpeg`)
	assert.True(t, strings.HasPrefix(key, "etc/"), key)
	assert.True(t, strings.HasSuffix(key, ".jpeg"), key)
	assert.NoError(t, validKey(key))

	key = ObjectKey("", "noext")
	assert.NotContains(t, key, "/")
	assert.Len(t, key, 36)

	assert.NotEqual(t, ObjectKey("a", "x.pdf"), ObjectKey("a", "x.pdf"))
}

func TestValidKey(t *testing.T) {
	for _, k := range []string{"", "/abs", "a/../b", "a//b", "./a", `a\b`, "a\x00b"} {
		assert.ErrorIs(t, validKey(k), ErrInvalidKey, k)
	}
	assert.NoError(t, validKey("photos/p1/abc.png"))
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("/uploads/")

	obj, err := store.Put(ctx, "photos/p1/a.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/photos/p1/a.png", obj.URL)
	assert.Equal(t, int64(9), obj.Size)
	assert.Len(t, obj.SHA256, 64)

	ok, err := store.Exists(ctx, "photos/p1/a.png")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, got, err := store.Get(ctx, "photos/p1/a.png")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "image/png", got.ContentType)

	require.NoError(t, store.Delete(ctx, "photos/p1/a.png"))
	require.NoError(t, store.Delete(ctx, "photos/p1/a.png"), "delete is idempotent")

	_, _, err = store.Get(ctx, "photos/p1/a.png")
	assert.ErrorIs(t, err, ErrBlobNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_RejectsBadKey(t *testing.T) {
	_, err := NewMemoryStore("").Put(context.Background(), "../x", "text/plain", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestMemoryStore_ReadError(t *testing.T) {
	_, err := NewMemoryStore("").Put(context.Background(), "a.txt", "text/plain", failingReader{})
	assert.Error(t, err)
}
