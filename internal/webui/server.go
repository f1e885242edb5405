package webui

import (
	"bytes"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"cinefree/internal/client"
	"cinefree/internal/upload"
	"cinefree/pkg/logger"
)

const (
	TokenCookie  = "cinefree_token"
	NoticeCookie = "cinefree_notice"
)

type server struct {
	app  *App
	opts RenderOptions
	log  zerolog.Logger
}

// NewHandler serves the front end.
func NewHandler(app *App, opts RenderOptions, log zerolog.Logger) http.Handler {
	s := &server{app: app, opts: opts, log: log}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logger.Middleware(log), middleware.Recoverer)

	r.Get("/", s.handleHome)
	r.Get("/admin", s.handleAdmin)
	r.Get("/play/{id}", s.handlePlay)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)
	r.Post("/movies", s.handleUpload)
	r.Post("/movies/{id}/delete", s.handleDelete)
	r.Get("/healthz", s.handleHealth)
	return r
}

func (s *server) load(w http.ResponseWriter, r *http.Request) State {
	st := s.app.Load(r.Context(), tokenFrom(r))
	if n := takeNotice(w, r); n != nil && st.Notice == nil {
		st.Notice = n
	}
	return st
}

func (s *server) render(w http.ResponseWriter, status int, st State) {
	var buf bytes.Buffer
	if err := Render(&buf, st, s.opts); err != nil {
		s.log.Error().Err(err).Msg("render page")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *server) handleHome(w http.ResponseWriter, r *http.Request) {
	st := s.load(w, r).WithFilter(r.URL.Query().Get("genre")).Navigate(SectionHome)
	s.render(w, http.StatusOK, st)
}

func (s *server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, s.load(w, r).Navigate(SectionAdmin))
}

func (s *server) handlePlay(w http.ResponseWriter, r *http.Request) {
	st := s.load(w, r).Play(chi.URLParam(r, "id"))
	status := http.StatusOK
	if st.Section != SectionPlayer {
		status = http.StatusNotFound
	}
	s.render(w, status, st)
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	st, sess, err := s.app.Login(r.Context(), NewState(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err == nil {
		http.SetCookie(w, &http.Cookie{
			Name:     TokenCookie,
			Value:    sess.Token,
			Path:     "/",
			Expires:  sess.ExpiresAt,
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
	}
	s.redirect(w, r, "/admin", st)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	clearToken(w, r)
	s.redirect(w, r, "/", NewState().WithNotice(NoticeSuccess, "Logged out"))
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	token := tokenFrom(r)
	if token == "" {
		s.redirect(w, r, "/admin", NewState().WithNotice(NoticeError, "Please log in first"))
		return
	}
	form, fh, err := upload.ParseForm(w, r, s.app.maxUpload)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		msg := "Could not read the upload form"
		if errors.Is(err, upload.ErrTooLarge) {
			msg = "The file is too large"
		}
		s.redirect(w, r, "/admin", NewState().WithNotice(NoticeError, msg))
		return
	}

	m := client.NewMovie{Title: form.Title, Genre: form.Genre, Description: form.Description}
	var size int64
	if fh != nil {
		f, err := fh.Open()
		if err != nil {
			s.redirect(w, r, "/admin", NewState().WithNotice(NoticeError, "Could not read the video file"))
			return
		}
		defer f.Close()
		m.Video, m.VideoName, size = f, fh.Filename, fh.Size
	}

	st, err := s.app.Upload(r.Context(), NewState(), token, m, size)
	if errors.Is(err, client.ErrUnauthorized) {
		clearToken(w, r)
	}
	s.redirect(w, r, "/admin", st)
}

func (s *server) handleDelete(w http.ResponseWriter, r *http.Request) {
	token := tokenFrom(r)
	if token == "" {
		s.redirect(w, r, "/admin", NewState().WithNotice(NoticeError, "Please log in first"))
		return
	}
	st, err := s.app.Delete(r.Context(), NewState(), token, chi.URLParam(r, "id"))
	if errors.Is(err, client.ErrUnauthorized) {
		clearToken(w, r)
	}
	s.redirect(w, r, "/admin", st)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	apiOK := s.app.api.Health(r.Context()) == nil
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true, "api": apiOK})
}

// redirect follows a POST with a GET and carries the notice in a cookie.
func (s *server) redirect(w http.ResponseWriter, r *http.Request, to string, st State) {
	if st.Notice != nil {
		if v, err := encodeNotice(*st.Notice); err == nil {
			http.SetCookie(w, &http.Cookie{
				Name:     NoticeCookie,
				Value:    v,
				Path:     "/",
				MaxAge:   60,
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
		}
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func tokenFrom(r *http.Request) string {
	c, err := r.Cookie(TokenCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func clearToken(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeNotice reads the flash cookie and expires it.
func takeNotice(w http.ResponseWriter, r *http.Request) *Notice {
	c, err := r.Cookie(NoticeCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: NoticeCookie, Value: "", Path: "/", MaxAge: -1})
	n, err := decodeNotice(c.Value)
	if err != nil {
		return nil
	}
	return &n
}

func encodeNotice(n Notice) (string, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func decodeNotice(v string) (Notice, error) {
	var n Notice
	data, err := base64.RawURLEncoding.DecodeString(v)
	if err != nil {
		return n, err
	}
	if err := json.Unmarshal(data, &n); err != nil {
		return n, err
	}
	if n.Kind != NoticeSuccess && n.Kind != NoticeError {
		return n, errors.New("unknown notice kind")
	}
	return n, nil
}
