package blobstore

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartContext(t *testing.T, field, fileName, contentType, content string) echo.Context {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if field != "" {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+fileName+`"`)
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.WriteField("test_name", "CBC"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestReadFormFile(t *testing.T) {
	c := multipartContext(t, "file", "panel.pdf", "application/pdf", "%PDF-1.7")
	p := Policy{MaxSize: 1024, ContentTypes: DocumentTypes}

	f, err := ReadFormFile(c, "file", p, false)
	require.NoError(t, err)
	require.NotNil(t, f)
	defer f.Close()
	assert.Equal(t, "panel.pdf", f.FileName)
	assert.Equal(t, "application/pdf", f.ContentType)
	assert.Equal(t, int64(8), f.Size)
}

func TestReadFormFile_Optional(t *testing.T) {
	c := multipartContext(t, "", "", "", "")
	p := Policy{MaxSize: 1024, ContentTypes: DocumentTypes}

	f, err := ReadFormFile(c, "file", p, true)
	assert.NoError(t, err)
	assert.Nil(t, f)

	_, err = ReadFormFile(c, "file", p, false)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

func TestReadFormFile_RejectsType(t *testing.T) {
	c := multipartContext(t, "photo", "x.html", "text/html", "<script>")
	_, err := ReadFormFile(c, "photo", Policy{MaxSize: 1024, ContentTypes: ImageTypes}, false)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnsupportedMediaType, he.Code)
}

func TestHTTPError(t *testing.T) {
	assert.Equal(t, http.StatusRequestEntityTooLarge, HTTPError(ErrFileTooLarge).Code)
	assert.Equal(t, http.StatusNotFound, HTTPError(ErrBlobNotFound).Code)
	assert.Equal(t, http.StatusBadRequest, HTTPError(ErrEmptyFile).Code)
	assert.Equal(t, http.StatusInternalServerError, HTTPError(context.DeadlineExceeded).Code)
}

func TestServe(t *testing.T) {
	store := NewMemoryStore("/uploads")
	_, err := store.Put(context.Background(), "lab-results/p1/x.pdf", "application/pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)

	rc, obj, err := store.Get(context.Background(), "lab-results/p1/x.pdf")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, Serve(c, rc, obj, "CBC \"march\".pdf"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, `attachment; filename="CBC march.pdf"`, rec.Header().Get(echo.HeaderContentDisposition))
	assert.Equal(t, "%PDF", rec.Body.String())
}

func TestCleanFileName(t *testing.T) {
	assert.Equal(t, "x.pdf", cleanFileName("../../x.pdf"))
	assert.Equal(t, "y.png", cleanFileName(`C:\tmp\y.png`))
	assert.Equal(t, "ab", cleanFileName("a\r\nb"))
}
