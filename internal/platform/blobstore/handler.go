package blobstore

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// FormFile is a validated multipart upload. Callers must Close it.
type FormFile struct {
	FileName    string
	ContentType string
	Size        int64
	multipart.File
}

// ReadFormFile pulls field from a multipart request and validates it
// against p. A missing field returns (nil, nil) when optional is true.
func ReadFormFile(c echo.Context, field string, p Policy, optional bool) (*FormFile, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if optional && errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s is required", field))
	}

	ct, err := p.Validate(fh.Filename, fh.Header.Get(echo.HeaderContentType), fh.Size)
	if err != nil {
		return nil, HTTPError(err)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
	}
	return &FormFile{FileName: cleanFileName(fh.Filename), ContentType: ct, Size: fh.Size, File: f}, nil
}

// HTTPError maps blobstore errors to HTTP errors.
func HTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ErrInvalidContentType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, ErrMissingFileName), errors.Is(err, ErrEmptyFile), errors.Is(err, ErrInvalidKey):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrBlobNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "file storage error")
	}
}

// Serve streams rc to the client as an attachment named fileName.
func Serve(c echo.Context, rc io.ReadCloser, obj *Object, fileName string) error {
	defer rc.Close()

	if fileName == "" {
		fileName = obj.Key[strings.LastIndex(obj.Key, "/")+1:]
	}
	ct := obj.ContentType
	if ct == "" {
		ct = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, cleanFileName(fileName)))
	if obj.Size > 0 {
		c.Response().Header().Set(echo.HeaderContentLength, fmt.Sprintf("%d", obj.Size))
	}
	return c.Stream(http.StatusOK, ct, rc)
}

// cleanFileName keeps the base name of a client-supplied file name and
// drops characters that would break a Content-Disposition header.
func cleanFileName(name string) string {
	name = name[strings.LastIndexAny(name, `/\`)+1:]
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == '"' || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if len(name) > 255 {
		name = name[:255]
	}
	return name
}
