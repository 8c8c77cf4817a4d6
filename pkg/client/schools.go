package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type School struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Contact   string    `json:"contact"`
	EmailID   string    `json:"email_id"`
	Images    []string  `json:"images"`
	CreatedAt time.Time `json:"created_at"`
}

// ImageFile is one photo attached to a new school.
type ImageFile struct {
	Filename string
	MimeType string
	Data     []byte
}

type SchoolCreateData struct {
	Name    string
	Address string
	City    string
	State   string
	Contact string
	EmailID string
	Images  []ImageFile
}

type Image struct {
	Data     []byte
	MimeType string
	Filename string
}

type Health struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Timestamp   string `json:"timestamp"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	Database    string `json:"database"`
	Schools     int64  `json:"schools"`
	Stats       struct {
		Schools    int64 `json:"schools"`
		Images     int64 `json:"images"`
		ImageBytes int64 `json:"image_bytes"`
	} `json:"stats"`
}

func (c *Client) ListSchools(ctx context.Context) ([]School, error) {
	body, err := c.query(ctx, keySchools+"list", "/api/schools")
	if err != nil {
		return nil, err
	}
	schools, _, err := decodeData[[]School](body, http.StatusOK)
	return schools, err
}

// SearchSchools trims q; a blank query lists every school.
func (c *Client) SearchSchools(ctx context.Context, q string) ([]School, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return c.ListSchools(ctx)
	}

	path := "/api/schools/search?" + url.Values{"q": {q}}.Encode()
	body, err := c.query(ctx, keySchools+"search:"+q, path)
	if err != nil {
		return nil, err
	}
	schools, _, err := decodeData[[]School](body, http.StatusOK)
	return schools, err
}

func (c *Client) GetSchool(ctx context.Context, id uint) (School, error) {
	key := keySchools + "get:" + strconv.FormatUint(uint64(id), 10)
	body, err := c.query(ctx, key, "/api/schools/"+strconv.FormatUint(uint64(id), 10))
	if err != nil {
		return School{}, err
	}
	school, _, err := decodeData[School](body, http.StatusOK)
	return school, err
}

// CreateSchool submits the school as multipart/form-data. On success all
// memoized school queries are dropped.
func (c *Client) CreateSchool(ctx context.Context, data SchoolCreateData) (School, error) {
	body, contentType, err := buildMultipart(data)
	if err != nil {
		return School{}, err
	}

	resp, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/api/schools",
		body:        body,
		contentType: contentType,
		retries:     c.mutationRetries,
	})
	if err != nil {
		return School{}, err
	}

	school, _, err := decodeData[School](resp.body, resp.status)
	if err != nil {
		return School{}, err
	}
	c.Invalidate()
	return school, nil
}

// ImageURL is the address of a stored image, for embedding.
func (c *Client) ImageURL(id string) string {
	return c.baseURL + "/api/images/" + escapePath(id)
}

// FetchImage downloads image bytes. Concurrent fetches of the same id
// share one request; the bytes are not memoized.
func (c *Client) FetchImage(ctx context.Context, id string) (Image, error) {
	v, err := c.shared(ctx, "image:"+id, func(ctx context.Context) (interface{}, error) {
		return c.do(ctx, request{
			method:  http.MethodGet,
			path:    "/api/images/" + escapePath(id),
			retries: c.queryRetries,
		})
	})
	if err != nil {
		return Image{}, err
	}

	resp := v.(*response)
	img := Image{
		Data:     resp.body,
		MimeType: resp.header.Get("Content-Type"),
	}
	if _, params, err := mime.ParseMediaType(resp.header.Get("Content-Disposition")); err == nil {
		img.Filename = params["filename"]
	}
	return img, nil
}

// Health is never memoized.
func (c *Client) Health(ctx context.Context) (Health, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/health", retries: c.queryRetries})
	if err != nil {
		return Health{}, err
	}

	var h Health
	if err := json.Unmarshal(resp.body, &h); err != nil {
		return Health{}, fmt.Errorf("decode health: %w", err)
	}
	return h, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func buildMultipart(data SchoolCreateData) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"name", data.Name},
		{"address", data.Address},
		{"city", data.City},
		{"state", data.State},
		{"contact", data.Contact},
		{"email_id", data.EmailID},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}

	for _, img := range data.Images {
		mimeType := img.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="images"; filename="%s"`, quoteEscaper.Replace(img.Filename)))
		h.Set("Content-Type", mimeType)

		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", img.Filename, err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", img.Filename, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
