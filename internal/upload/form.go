package upload

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// VideoField is the multipart field carrying the optional video file.
const VideoField = "video"

// Form is the metadata part of an upload request.
type Form struct {
	Title       string `form:"title" validate:"required"`
	Genre       string `form:"genre" validate:"required"`
	Description string `form:"description" validate:"required"`
}

// ValidationError lists the fields that are missing or not acceptable, in
// form order.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing or invalid fields: " + strings.Join(e.Fields, ", ")
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func formValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ErrTooLarge is returned when the video or the whole body exceeds the limit.
var ErrTooLarge = errors.New("upload too large")

// FormOverhead is allowed on top of the file limit for the text fields and
// part headers.
const FormOverhead = 1 << 20

// ParseForm reads a multipart request whose video part may hold at most
// maxFile bytes. The body as a whole is capped at maxFile+FormOverhead. The
// returned file header is nil when no video was attached. Callers must call
// r.MultipartForm.RemoveAll when done.
func ParseForm(w http.ResponseWriter, r *http.Request, maxFile int64) (Form, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFile+FormOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return Form{}, nil, ErrTooLarge
		}
		return Form{}, nil, fmt.Errorf("parse multipart: %w", err)
	}
	f := Form{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Genre:       strings.TrimSpace(r.FormValue("genre")),
		Description: strings.TrimSpace(r.FormValue("description")),
	}
	var fh *multipart.FileHeader
	if files := r.MultipartForm.File[VideoField]; len(files) > 0 && files[0].Filename != "" {
		fh = files[0]
		if fh.Size > maxFile {
			return Form{}, nil, ErrTooLarge
		}
	}
	return f, fh, nil
}

// Validate checks that every field is present. When allowedGenres is not
// empty the genre must be one of them.
func (f Form) Validate(allowedGenres []string) error {
	bad := make(map[string]bool)
	if err := formValidator().Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			bad[fe.Field()] = true
		}
	}
	if f.Genre != "" && len(allowedGenres) > 0 && !contains(allowedGenres, f.Genre) {
		bad["genre"] = true
	}
	if len(bad) == 0 {
		return nil
	}
	var fields []string
	for _, name := range fieldOrder {
		if bad[name] {
			fields = append(fields, name)
		}
	}
	return &ValidationError{Fields: fields}
}

var fieldOrder = []string{"title", "genre", "description"}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
