// Package upload gatekeeps multipart photo batches before anything is
// persisted. It checks file count, per-file size and the MIME allow-list.
package upload

import (
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"schooldir/internal/apperr"
	"schooldir/pkg/utils"
)

const (
	DefaultMinFiles    = 1
	DefaultMaxFiles    = 10
	DefaultMaxFileSize = 5 << 20 // 5 MB

	// MaxFieldBytes caps a single text field.
	MaxFieldBytes = 64 << 10
)

var DefaultAllowedTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp"}

// Meta is what validation looks at.
type Meta struct {
	Filename string
	MimeType string
	Size     int64
}

// File is a validated upload held in memory, ready for persistence.
type File struct {
	Meta
	Data []byte
}

type Validator struct {
	MinFiles     int
	MaxFiles     int
	MaxFileSize  int64
	AllowedTypes []string

	allowed map[string]bool
}

// New builds a validator; zero values fall back to the defaults.
func New(minFiles, maxFiles int, maxFileSize int64, allowedTypes []string) *Validator {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	if minFiles < 0 {
		minFiles = DefaultMinFiles
	}
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	if len(allowedTypes) == 0 {
		allowedTypes = DefaultAllowedTypes
	}

	v := &Validator{
		MinFiles:     minFiles,
		MaxFiles:     maxFiles,
		MaxFileSize:  maxFileSize,
		AllowedTypes: allowedTypes,
		allowed:      make(map[string]bool, len(allowedTypes)),
	}
	for _, t := range allowedTypes {
		v.allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return v
}

// MaxRequestBytes bounds the whole multipart body: every file at full size
// plus room for the text fields and multipart framing.
func (v *Validator) MaxRequestBytes() int64 {
	return int64(v.MaxFiles)*v.MaxFileSize + 1<<20
}

// Validate checks the batch as a whole. The first violation wins, in the
// order count, size, type.
func (v *Validator) Validate(files []Meta) error {
	if len(files) < v.MinFiles {
		return apperr.Validation(apperr.CodeNoFiles,
			"At least %d image(s) required", v.MinFiles)
	}
	if len(files) > v.MaxFiles {
		return apperr.Validation(apperr.CodeTooManyFiles,
			"Too many files. Maximum allowed is %d files", v.MaxFiles)
	}

	for _, f := range files {
		if f.Size > v.MaxFileSize {
			return v.tooLarge(f)
		}
	}

	for _, f := range files {
		if !v.allowed[f.MimeType] {
			return apperr.Validation(apperr.CodeUnsupportedType,
				"Invalid file type %q for %q. Allowed types: %s", f.MimeType, f.Filename, strings.Join(v.AllowedTypes, ", "))
		}
	}
	return nil
}

// Form is a streamed create request: text fields plus validated files.
type Form struct {
	Values map[string]string
	Files  []File
}

func (f *Form) Value(key string) string {
	return f.Values[key]
}

// ReadMultipart consumes the body part by part. Parts named in fileFields
// are files: the (MaxFiles+1)th one fails at once, and no file is read
// past MaxFileSize+1 bytes. The batch is validated once every part has
// arrived. Read errors that are not limit violations are returned as-is.
func (v *Validator) ReadMultipart(mr *multipart.Reader, fileFields ...string) (*Form, error) {
	isFile := make(map[string]bool, len(fileFields))
	for _, f := range fileFields {
		isFile[f] = true
	}

	form := &Form{Values: make(map[string]string)}
	var (
		metas    []Meta
		oversize *Meta
	)

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, v.readFailure(err, oversize)
		}

		name := p.FormName()
		if !isFile[name] {
			if p.FileName() != "" || name == "" {
				p.Close()
				continue
			}
			value, err := readField(p)
			if err != nil {
				return nil, v.readFailure(err, oversize)
			}
			if _, seen := form.Values[name]; !seen {
				form.Values[name] = value
			}
			continue
		}

		if len(metas) == v.MaxFiles {
			p.Close()
			return nil, apperr.Validation(apperr.CodeTooManyFiles,
				"Too many files. Maximum allowed is %d files", v.MaxFiles)
		}

		data, err := io.ReadAll(io.LimitReader(p, v.MaxFileSize+1))
		if err != nil {
			return nil, v.readFailure(err, oversize)
		}
		meta := Meta{Filename: p.FileName(), Size: int64(len(data))}
		if meta.Size > v.MaxFileSize {
			if oversize == nil {
				oversize = &meta
			}
			// drain so later parts can still be counted
			if _, err := io.Copy(io.Discard, p); err != nil {
				return nil, v.readFailure(err, oversize)
			}
			data = nil
		} else {
			meta.MimeType = declaredType(p.Header.Get("Content-Type"), data)
		}
		metas = append(metas, meta)
		form.Files = append(form.Files, File{Meta: meta, Data: data})
		p.Close()
	}

	if err := v.Validate(metas); err != nil {
		return nil, err
	}
	return form, nil
}

// readFailure prefers a limit violation already seen over the raw error;
// an oversize file usually is what broke the body cap.
func (v *Validator) readFailure(err error, oversize *Meta) error {
	if oversize != nil {
		return v.tooLarge(*oversize)
	}
	return err
}

func (v *Validator) tooLarge(m Meta) error {
	return apperr.Validation(apperr.CodeFileTooLarge,
		"File %q is too large. Maximum size allowed is %s", m.Filename, utils.FormatBytes(v.MaxFileSize))
}

func readField(p *multipart.Part) (string, error) {
	defer p.Close()
	data, err := io.ReadAll(io.LimitReader(p, MaxFieldBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > MaxFieldBytes {
		return "", apperr.Validation(apperr.CodeInvalidInput,
			"Field %s exceeds %s", p.FormName(), utils.FormatBytes(MaxFieldBytes))
	}
	return string(data), nil
}

// declaredType normalizes the part's Content-Type. Parts sent without a
// meaningful type are sniffed from their first bytes.
func declaredType(raw string, data []byte) string {
	if raw != "" {
		if mt, _, err := mime.ParseMediaType(raw); err == nil && mt != "application/octet-stream" {
			return strings.ToLower(mt)
		}
	}
	mt, _, _ := mime.ParseMediaType(mimetype.Detect(data).String())
	return strings.ToLower(mt)
}
