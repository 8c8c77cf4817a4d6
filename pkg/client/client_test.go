package client

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schoolsJSON = `{"success":true,"data":[{"id":1,"name":"Green Valley","address":"12 MG Road","city":"Mumbai","state":"Maharashtra","contact":"+919876543210","email_id":"a@b.co","images":["7"],"created_at":"2026-01-02T03:04:05Z"}]}`

type fakeAPI struct {
	lists    atomic.Int32
	searches atomic.Int32
	creates  atomic.Int32
	images   atomic.Int32
	release  chan struct{}
	lastForm *multipart.Form
	mu       sync.Mutex
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/schools", func(w http.ResponseWriter, r *http.Request) {
		f.lists.Add(1)
		if f.release != nil {
			<-f.release
		}
		io.WriteString(w, schoolsJSON)
	})
	mux.HandleFunc("GET /api/schools/search", func(w http.ResponseWriter, r *http.Request) {
		f.searches.Add(1)
		assert.Equal(t, "mumbai", r.URL.Query().Get("q"))
		io.WriteString(w, schoolsJSON)
	})
	mux.HandleFunc("GET /api/schools/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"success":false,"error":"School not found","code":"resource/school_not_found"}`)
	})
	mux.HandleFunc("POST /api/schools", func(w http.ResponseWriter, r *http.Request) {
		f.creates.Add(1)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		f.mu.Lock()
		f.lastForm = r.MultipartForm
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"success":true,"data":{"id":2,"name":"New","images":["8"]},"message":"School created successfully"}`)
	})
	mux.HandleFunc("GET /api/images/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.images.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Disposition", "inline; filename=front.png")
		w.Write([]byte("PNGDATA"))
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"message":"Server is running successfully","environment":"test","schools":3,"stats":{"schools":3,"images":4}}`)
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeAPI, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	c := New(srv.URL, append([]Option{WithRetryBackoff(time.Millisecond)}, opts...)...)
	t.Cleanup(c.Close)
	return c
}

func TestListSchoolsMemoized(t *testing.T) {
	f := &fakeAPI{}
	c := newTestClient(t, f)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		schools, err := c.ListSchools(ctx)
		require.NoError(t, err)
		require.Len(t, schools, 1)
		assert.Equal(t, "Green Valley", schools[0].Name)
		assert.Equal(t, []string{"7"}, schools[0].Images)
	}
	assert.EqualValues(t, 1, f.lists.Load())
}

func TestFreshnessWindowExpires(t *testing.T) {
	f := &fakeAPI{}
	c := newTestClient(t, f, WithFreshness(20*time.Millisecond))
	ctx := context.Background()

	_, err := c.ListSchools(ctx)
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)
	_, err = c.ListSchools(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.lists.Load())
}

func TestConcurrentQueriesCoalesce(t *testing.T) {
	f := &fakeAPI{release: make(chan struct{})}
	c := newTestClient(t, f, WithFreshness(0))

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ListSchools(context.Background())
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return f.lists.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(f.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, f.lists.Load())
}

func TestCancelledCallerLeavesSharedRequest(t *testing.T) {
	f := &fakeAPI{release: make(chan struct{})}
	c := newTestClient(t, f, WithFreshness(0))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.ListSchools(ctx)
		first <- err
	}()
	require.Eventually(t, func() bool { return f.lists.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() {
		schools, err := c.ListSchools(context.Background())
		if err == nil && len(schools) != 1 {
			err = errors.New("unexpected result")
		}
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-first:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(f.release)
	select {
	case err := <-second:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shared request never finished")
	}
	assert.EqualValues(t, 1, f.lists.Load())
}

func TestCoalescingCanBeDisabled(t *testing.T) {
	f := &fakeAPI{release: make(chan struct{})}
	c := newTestClient(t, f, WithFreshness(0), WithCoalescing(false))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ListSchools(context.Background())
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return f.lists.Load() == 4 }, time.Second, time.Millisecond)
	close(f.release)
	wg.Wait()
	assert.EqualValues(t, 4, f.lists.Load())
}

func TestSearchTrimsAndFallsBack(t *testing.T) {
	f := &fakeAPI{}
	c := newTestClient(t, f)
	ctx := context.Background()

	_, err := c.SearchSchools(ctx, "  mumbai ")
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.searches.Load())

	_, err = c.SearchSchools(ctx, "   ")
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.searches.Load())
	assert.EqualValues(t, 1, f.lists.Load())
}

func TestCreateSchoolInvalidatesQueries(t *testing.T) {
	f := &fakeAPI{}
	c := newTestClient(t, f)
	ctx := context.Background()

	_, err := c.ListSchools(ctx)
	require.NoError(t, err)

	school, err := c.CreateSchool(ctx, SchoolCreateData{
		Name:    "New",
		Address: "1 Road",
		City:    "Pune",
		State:   "Maharashtra",
		Contact: "9876543210",
		EmailID: "x@y.co",
		Images: []ImageFile{
			{Filename: "a.png", MimeType: "image/png", Data: []byte("one")},
			{Filename: `we"ird.jpg`, MimeType: "image/jpeg", Data: []byte("two")},
		},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, school.ID)

	f.mu.Lock()
	form := f.lastForm
	f.mu.Unlock()
	assert.Equal(t, []string{"Pune"}, form.Value["city"])
	require.Len(t, form.File["images"], 2)
	assert.Equal(t, "a.png", form.File["images"][0].Filename)
	assert.Equal(t, "image/jpeg", form.File["images"][1].Header.Get("Content-Type"))

	_, err = c.ListSchools(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.lists.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	f := &fakeAPI{}
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		f.handler(t).ServeHTTP(w, r)
	}))
	defer srv.Close()

	c := New(srv.URL, WithRetryBackoff(time.Millisecond))
	defer c.Close()

	_, err := c.GetSchool(context.Background(), 5)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "resource/school_not_found", apiErr.Code)
	assert.Equal(t, "School not found", apiErr.Message)
	assert.EqualValues(t, 1, hits.Load())
}

func TestServerErrorsAreRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"success":false,"error":"Internal server error occurred. Please try again."}`)
			return
		}
		io.WriteString(w, schoolsJSON)
	}))
	defer srv.Close()

	c := New(srv.URL, WithRetryBackoff(time.Millisecond))
	defer c.Close()

	schools, err := c.ListSchools(context.Background())
	require.NoError(t, err)
	assert.Len(t, schools, 1)
	assert.EqualValues(t, 3, hits.Load())
}

func TestMutationRetriesOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, WithRetryBackoff(time.Millisecond))
	defer c.Close()

	_, err := c.CreateSchool(context.Background(), SchoolCreateData{Name: "x"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.EqualValues(t, 2, hits.Load())
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, WithRetries(1, 0), WithRetryBackoff(time.Millisecond))
	defer c.Close()

	_, err := c.ListSchools(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreachable))
}

func TestFetchImageAndURL(t *testing.T) {
	f := &fakeAPI{}
	c := newTestClient(t, f)

	img, err := c.FetchImage(context.Background(), "8")
	require.NoError(t, err)
	assert.Equal(t, []byte("PNGDATA"), img.Data)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, "front.png", img.Filename)

	assert.True(t, strings.HasSuffix(c.ImageURL("8"), "/api/images/8"))
}

func TestHealth(t *testing.T) {
	f := &fakeAPI{}
	c := newTestClient(t, f)

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, h.Success)
	assert.EqualValues(t, 3, h.Schools)
	assert.EqualValues(t, 4, h.Stats.Images)
}

func TestBuildMultipartDefaultsType(t *testing.T) {
	body, contentType, err := buildMultipart(SchoolCreateData{
		Name:   "x",
		Images: []ImageFile{{Filename: "blob", Data: []byte("b")}},
	})
	require.NoError(t, err)

	mt, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mt)

	form, err := multipart.NewReader(strings.NewReader(string(body)), params["boundary"]).ReadForm(1 << 20)
	require.NoError(t, err)
	defer form.RemoveAll()
	assert.Equal(t, "application/octet-stream", form.File["images"][0].Header.Get("Content-Type"))
}
