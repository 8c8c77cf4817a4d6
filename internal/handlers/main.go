package handlers

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"schooldir/internal/apperr"
	"schooldir/internal/store"
	"schooldir/internal/upload"
	"schooldir/pkg/logger"
	"schooldir/pkg/utils"
)

type Options struct {
	Version     string
	Environment string
}

// Handler serves the school directory API over an injected store.
type Handler struct {
	store   *store.Store
	uploads *upload.Validator
	forms   *validator.Validate
	opts    Options
}

func New(st *store.Store, uploads *upload.Validator, opts Options) *Handler {
	if opts.Environment == "" {
		opts.Environment = "development"
	}
	return &Handler{
		store:   st,
		uploads: uploads,
		forms:   newFormValidator(),
		opts:    opts,
	}
}

// Routes registers the API, the health probe and the JSON 404 fallback.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Schools
	mux.HandleFunc("POST /api/schools", h.CreateSchool)
	mux.HandleFunc("GET /api/schools", h.ListSchools)
	mux.HandleFunc("GET /api/schools/search", h.SearchSchools)
	mux.HandleFunc("GET /api/schools/{id}", h.GetSchool)

	// Images
	mux.HandleFunc("GET /api/images/{id}", h.GetImage)

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("/", h.NotFound)
	return mux
}

// writeErr converts any error into the response envelope. Details of
// 5xx failures go to the log only.
func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	code, msg := apperr.PublicMessage(err)
	if status >= http.StatusInternalServerError {
		logger.LogError("%s %s failed: %v", r.Method, r.URL.Path, err)
	}
	utils.WriteError(w, status, code, msg)
}

func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}
