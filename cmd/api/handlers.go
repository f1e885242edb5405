package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"cinefree/internal/catalog"
	"cinefree/internal/upload"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func errorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// internalError logs err with the request id and hides it from the caller.
func (d *deps) internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	d.log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg(msg)
	errorJSON(w, http.StatusInternalServerError, "internal error")
}

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func handleLogin(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			d.metrics.LoginResult("rejected")
			errorJSON(w, http.StatusBadRequest, "invalid body")
			return
		}
		token, exp, err := d.auth.Login(req.Username, req.Password)
		if err != nil {
			d.metrics.LoginResult("failure")
			d.log.Warn().Str("remote", r.RemoteAddr).Msg("failed admin login")
			errorJSON(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		d.metrics.LoginResult("success")
		writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp.UTC()})
	}
}

func handleListMovies(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		movies, err := d.store.List(r.Context())
		if err != nil {
			d.internalError(w, r, err, "list movies")
			return
		}
		movies = catalog.FilterByGenre(movies, r.URL.Query().Get("genre"))
		if movies == nil {
			movies = []catalog.Movie{}
		}
		writeJSON(w, http.StatusOK, movies)
	}
}

type fieldsError struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields"`
}

// handleCreateMovie runs behind RequireAuth, so the body is only read for
// an authorized caller.
func handleCreateMovie(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, fh, err := upload.ParseForm(w, r, d.maxUpload)
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}
		if err != nil {
			if errors.Is(err, upload.ErrTooLarge) {
				errorJSON(w, http.StatusRequestEntityTooLarge, "upload too large")
				return
			}
			errorJSON(w, http.StatusBadRequest, "invalid multipart body")
			return
		}
		if err := form.Validate(d.allowedGenres); err != nil {
			var verr *upload.ValidationError
			if errors.As(err, &verr) {
				writeJSON(w, http.StatusBadRequest, fieldsError{Error: "missing or invalid fields", Fields: verr.Fields})
				return
			}
			d.internalError(w, r, err, "validate upload")
			return
		}

		movie := catalog.Movie{Title: form.Title, Genre: form.Genre, Description: form.Description}
		if fh != nil {
			ref, size, err := d.uploads.Save(fh)
			if err != nil {
				d.internalError(w, r, err, "store video")
				return
			}
			movie.VideoURL = &ref
			d.metrics.UploadBytes.Add(float64(size))
		}

		created, err := d.store.Create(r.Context(), movie)
		if err != nil {
			if movie.HasVideo() {
				if rmErr := d.uploads.Remove(*movie.VideoURL); rmErr != nil {
					d.log.Warn().Err(rmErr).Str("file", *movie.VideoURL).Msg("could not remove video of failed create")
				}
			}
			d.internalError(w, r, err, "create movie")
			return
		}
		d.metrics.MoviesCreated.Inc()
		d.log.Info().Str("id", created.ID).Str("title", created.Title).Bool("video", created.HasVideo()).Msg("movie created")
		writeJSON(w, http.StatusCreated, created)
	}
}

func handleDeleteMovie(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		removed, ok, err := d.store.Delete(r.Context(), id)
		if err != nil {
			d.internalError(w, r, err, "delete movie")
			return
		}
		if !ok {
			errorJSON(w, http.StatusNotFound, "movie not found")
			return
		}
		if removed.HasVideo() {
			if err := d.uploads.Remove(*removed.VideoURL); err != nil {
				d.log.Warn().Err(err).Str("id", id).Str("file", *removed.VideoURL).Msg("could not remove video file")
			}
		}
		d.metrics.MoviesDeleted.Inc()
		d.log.Info().Str("id", id).Msg("movie deleted")
		w.WriteHeader(http.StatusNoContent)
	}
}
