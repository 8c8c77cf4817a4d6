package upload

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schooldir/internal/apperr"
)

func metas(n int, size int64, mimeType string) []Meta {
	out := make([]Meta, n)
	for i := range out {
		out[i] = Meta{Filename: fmt.Sprintf("f%d.png", i), MimeType: mimeType, Size: size}
	}
	return out
}

func TestValidate(t *testing.T) {
	v := New(1, 10, 5<<20, nil)

	cases := []struct {
		name  string
		files []Meta
		want  error
	}{
		{"one file", metas(1, 1024, "image/png"), nil},
		{"ten files", metas(10, 1024, "image/jpeg"), nil},
		{"exactly max size", metas(1, 5<<20, "image/webp"), nil},
		{"no files", nil, apperr.ErrNoFiles},
		{"eleven files", metas(11, 1024, "image/png"), apperr.ErrTooManyFiles},
		{"six megabytes", metas(1, 6<<20, "image/png"), apperr.ErrFileTooLarge},
		{"text file", metas(1, 10, "text/plain"), apperr.ErrUnsupportedType},
		{"count before size", metas(11, 6<<20, "image/png"), apperr.ErrTooManyFiles},
		{"size before type", metas(1, 6<<20, "text/plain"), apperr.ErrFileTooLarge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.files)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.Equal(t, 400, apperr.HTTPStatus(err))
		})
	}
}

func TestValidateAllowsZeroFilesWhenMinIsZero(t *testing.T) {
	v := New(0, 10, 0, nil)
	assert.NoError(t, v.Validate(nil))
}

func TestNewDefaults(t *testing.T) {
	v := New(-1, 0, 0, nil)
	assert.Equal(t, DefaultMinFiles, v.MinFiles)
	assert.Equal(t, DefaultMaxFiles, v.MaxFiles)
	assert.EqualValues(t, DefaultMaxFileSize, v.MaxFileSize)
	assert.Equal(t, DefaultAllowedTypes, v.AllowedTypes)
	assert.EqualValues(t, 10*(5<<20)+(1<<20), v.MaxRequestBytes())
}

type part struct {
	field       string
	name        string
	contentType string
	data        []byte
}

func filePart(name, contentType string, data []byte) part {
	return part{field: "images", name: name, contentType: contentType, data: data}
}

// multipartReader writes parts into a real multipart body.
func multipartReader(t *testing.T, fields map[string]string, parts ...part) *multipart.Reader {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, val := range fields {
		require.NoError(t, mw.WriteField(k, val))
	}
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, p.field, p.name))
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	return multipart.NewReader(&buf, mw.Boundary())
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func TestReadMultipartKeepsFieldsAndFiles(t *testing.T) {
	data := pngBytes(t)
	mr := multipartReader(t, map[string]string{"name": "Green Valley", "city": "Pune"},
		filePart("a.png", "image/png", data),
		part{field: "images[]", name: "b.jpg", contentType: "IMAGE/JPEG; charset=binary", data: []byte("jpegish")},
		part{field: "other", name: "ignored.txt", contentType: "text/plain", data: []byte("skip")},
	)

	form, err := New(1, 10, 5<<20, nil).ReadMultipart(mr, "images", "images[]")
	require.NoError(t, err)
	assert.Equal(t, "Green Valley", form.Value("name"))
	assert.Equal(t, "Pune", form.Value("city"))
	assert.Empty(t, form.Value("missing"))

	require.Len(t, form.Files, 2)
	assert.Equal(t, "a.png", form.Files[0].Filename)
	assert.Equal(t, "image/png", form.Files[0].MimeType)
	assert.Equal(t, data, form.Files[0].Data)
	assert.EqualValues(t, len(data), form.Files[0].Size)
	assert.Equal(t, "image/jpeg", form.Files[1].MimeType)
}

func TestReadMultipartSniffsUntypedParts(t *testing.T) {
	mr := multipartReader(t, nil,
		filePart("upload.bin", "application/octet-stream", pngBytes(t)),
		filePart("noheader", "", pngBytes(t)),
	)

	form, err := New(1, 10, 5<<20, nil).ReadMultipart(mr, "images")
	require.NoError(t, err)
	require.Len(t, form.Files, 2)
	assert.Equal(t, "image/png", form.Files[0].MimeType)
	assert.Equal(t, "image/png", form.Files[1].MimeType)
}

func TestReadMultipartRejectsType(t *testing.T) {
	mr := multipartReader(t, nil, filePart("notes.txt", "text/plain", []byte("hello")))

	form, err := New(1, 10, 5<<20, nil).ReadMultipart(mr, "images")
	require.Error(t, err)
	assert.Nil(t, form)
	assert.True(t, errors.Is(err, apperr.ErrUnsupportedType))
}

func TestReadMultipartEnforcesSize(t *testing.T) {
	mr := multipartReader(t, nil, filePart("big.png", "image/png", bytes.Repeat([]byte{1}, 2048)))

	_, err := New(1, 10, 1024, nil).ReadMultipart(mr, "images")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrFileTooLarge))
}

func TestReadMultipartCountWinsOverSize(t *testing.T) {
	parts := []part{filePart("big.png", "image/png", bytes.Repeat([]byte{1}, 2048))}
	for i := 0; i < 3; i++ {
		parts = append(parts, filePart("ok.png", "image/png", pngBytes(t)))
	}
	mr := multipartReader(t, nil, parts...)

	_, err := New(1, 3, 1024, nil).ReadMultipart(mr, "images")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrTooManyFiles), "got %v", err)
}

func TestReadMultipartRequiresFiles(t *testing.T) {
	mr := multipartReader(t, map[string]string{"name": "x"})

	_, err := New(1, 10, 1024, nil).ReadMultipart(mr, "images")
	assert.True(t, errors.Is(err, apperr.ErrNoFiles), "got %v", err)
}

func TestReadMultipartCapsFields(t *testing.T) {
	mr := multipartReader(t, map[string]string{"address": strings.Repeat("a", MaxFieldBytes+1)},
		filePart("a.png", "image/png", pngBytes(t)))

	_, err := New(1, 10, 1024, nil).ReadMultipart(mr, "images")
	require.Error(t, err)
	assert.True(t, errors.Is(err, &apperr.Error{Code: apperr.CodeInvalidInput}), "got %v", err)
}
