package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"schooldir/internal/apperr"
	"schooldir/internal/store"
	"schooldir/pkg/utils"
)

// imageFields are the accepted multipart field names for photos.
var imageFields = []string{"images", "images[]"}

type createSchoolForm struct {
	Name    string `form:"name" validate:"required,max=255"`
	Address string `form:"address" validate:"required,max=500"`
	City    string `form:"city" validate:"required,max=100"`
	State   string `form:"state" validate:"required,max=100"`
	Contact string `form:"contact" validate:"required,max=32"`
	EmailID string `form:"email_id" validate:"required,email,max=255"`
}

// CreateSchool handles the multipart school submission.
// POST /api/schools
func (h *Handler) CreateSchool(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxRequestBytes())

	mr, err := r.MultipartReader()
	if err != nil {
		h.writeErr(w, r, multipartError(err, h.uploads.MaxRequestBytes()))
		return
	}

	body, err := h.uploads.ReadMultipart(mr, imageFields...)
	if err != nil {
		h.writeErr(w, r, multipartError(err, h.uploads.MaxRequestBytes()))
		return
	}

	form := createSchoolForm{
		Name:    strings.TrimSpace(body.Value("name")),
		Address: strings.TrimSpace(body.Value("address")),
		City:    strings.TrimSpace(body.Value("city")),
		State:   strings.TrimSpace(body.Value("state")),
		Contact: strings.TrimSpace(body.Value("contact")),
		EmailID: strings.TrimSpace(body.Value("email_id")),
	}
	if err := h.forms.Struct(form); err != nil {
		h.writeErr(w, r, formError(err))
		return
	}

	school, err := h.store.CreateSchool(r.Context(), store.SchoolInput{
		Name:    form.Name,
		Address: form.Address,
		City:    form.City,
		State:   form.State,
		Contact: form.Contact,
		EmailID: form.EmailID,
	}, body.Files)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	utils.WriteData(w, http.StatusCreated, school, "School created successfully")
}

// ListSchools returns every school, newest first.
// GET /api/schools
func (h *Handler) ListSchools(w http.ResponseWriter, r *http.Request) {
	schools, err := h.store.ListSchools(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	utils.WriteData(w, http.StatusOK, schools, "")
}

// SearchSchools matches name, city or state.
// GET /api/schools/search?q=
func (h *Handler) SearchSchools(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	schools, err := h.store.SearchSchools(r.Context(), q)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	msg := fmt.Sprintf("Found %d schools", len(schools))
	if q != "" {
		msg = fmt.Sprintf("Found %d schools matching %q", len(schools), q)
	}
	utils.WriteData(w, http.StatusOK, schools, msg)
}

// GetSchool returns a single school.
// GET /api/schools/{id}
func (h *Handler) GetSchool(w http.ResponseWriter, r *http.Request) {
	id, ok := utils.ParseID(r.PathValue("id"))
	if !ok {
		h.writeErr(w, r, apperr.Validation(apperr.CodeInvalidInput, "Valid school ID is required"))
		return
	}

	school, err := h.store.GetSchoolByID(r.Context(), id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	utils.WriteData(w, http.StatusOK, school, "")
}

// multipartError maps body read failures. Limit violations found by the
// upload validator pass through unchanged.
func multipartError(err error, limit int64) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Validation(utils.ErrRequestBodyTooLarge,
			"Upload too large. The request may not exceed %s", utils.FormatBytes(limit))
	}
	if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
		return apperr.Validation(apperr.CodeInvalidInput, "Request must be multipart/form-data")
	}
	return apperr.Validation(utils.ErrRequestMalformed, "Malformed multipart body")
}

func formError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation(apperr.CodeInvalidInput, "Invalid school details")
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return apperr.Validation(apperr.CodeInvalidInput,
			"All fields are required: name, address, city, state, contact, email_id (missing %s)", fe.Field())
	case "email":
		return apperr.Validation(apperr.CodeInvalidInput, "Please enter a valid email address")
	case "max":
		return apperr.Validation(apperr.CodeInvalidInput, "Field %s is too long (max %s characters)", fe.Field(), fe.Param())
	default:
		return apperr.Validation(apperr.CodeInvalidInput, "Field %s is invalid", fe.Field())
	}
}
