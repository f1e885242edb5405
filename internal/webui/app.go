package webui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"cinefree/internal/catalog"
	"cinefree/internal/client"
	"cinefree/internal/upload"
)

// API is the part of the catalog service the front end uses.
type API interface {
	Health(ctx context.Context) error
	Login(ctx context.Context, username, password string) (client.Session, error)
	ListMovies(ctx context.Context, genre string) ([]catalog.Movie, error)
	CreateMovie(ctx context.Context, token string, m client.NewMovie) (catalog.Movie, error)
	DeleteMovie(ctx context.Context, token, id string) error
}

// App owns the front end's interaction with the API. The backend is always
// required: when it cannot be reached the catalog is shown empty with an
// error notice, nothing is kept locally.
type App struct {
	api       API
	log       zerolog.Logger
	maxUpload int64
}

func NewApp(api API, log zerolog.Logger, maxUpload int64) *App {
	return &App{api: api, log: log.With().Str("component", "webui").Logger(), maxUpload: maxUpload}
}

// Load builds the initial state: restore the session flag from token, then
// fetch the catalog.
func (a *App) Load(ctx context.Context, token string) State {
	s := NewState()
	s.LoggedIn = token != ""
	s.MaxUploadBytes = a.maxUpload
	movies, err := a.api.ListMovies(ctx, "")
	if err != nil {
		a.log.Error().Err(err).Msg("load catalog")
		s.Movies = []catalog.Movie{}
		return s.WithNotice(NoticeError, "Could not load movies, the catalog service is unreachable")
	}
	s.Movies = movies
	return s
}

// Login exchanges credentials for a session.
func (a *App) Login(ctx context.Context, s State, username, password string) (State, client.Session, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return s.WithNotice(NoticeError, "Enter username and password"), client.Session{}, client.ErrUnauthorized
	}
	sess, err := a.api.Login(ctx, username, password)
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		return s.WithNotice(NoticeError, "Invalid credentials"), client.Session{}, err
	case err != nil:
		a.log.Error().Err(err).Msg("login")
		return s.WithNotice(NoticeError, "Login failed, the catalog service is unreachable"), client.Session{}, err
	}
	s.LoggedIn = true
	return s.WithNotice(NoticeSuccess, "Logged in"), sess, nil
}

// Upload validates the form locally and then sends it. The mirror only
// changes when the API accepted the movie.
func (a *App) Upload(ctx context.Context, s State, token string, m client.NewMovie, size int64) (State, error) {
	form := upload.Form{
		Title:       strings.TrimSpace(m.Title),
		Genre:       strings.TrimSpace(m.Genre),
		Description: strings.TrimSpace(m.Description),
	}
	if err := form.Validate(nil); err != nil {
		var verr *upload.ValidationError
		if errors.As(err, &verr) {
			return s.WithNotice(NoticeError, "Please fill in "+strings.Join(verr.Fields, ", ")), err
		}
		return s.WithNotice(NoticeError, "Upload failed"), err
	}
	m.Title, m.Genre, m.Description = form.Title, form.Genre, form.Description

	created, err := a.api.CreateMovie(ctx, token, m)
	if err != nil {
		return a.mutationFailed(s, "Upload failed", err), err
	}
	s.Movies = append(append([]catalog.Movie{}, s.Movies...), created)
	msg := fmt.Sprintf("Uploaded %q", created.Title)
	if created.HasVideo() && size > 0 {
		msg += " (" + HumanSize(size) + ")"
	}
	return s.WithNotice(NoticeSuccess, msg), nil
}

// Delete removes id through the API and then from the mirror.
func (a *App) Delete(ctx context.Context, s State, token, id string) (State, error) {
	if err := a.api.DeleteMovie(ctx, token, id); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return s.WithNotice(NoticeError, "That movie no longer exists"), err
		}
		return a.mutationFailed(s, "Delete failed", err), err
	}
	kept := make([]catalog.Movie, 0, len(s.Movies))
	for _, m := range s.Movies {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	s.Movies = kept
	if s.Current != nil && s.Current.ID == id {
		s = s.Navigate(SectionHome)
	}
	return s.WithNotice(NoticeSuccess, "Movie deleted"), nil
}

func (a *App) mutationFailed(s State, prefix string, err error) State {
	var fe *client.FieldsError
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		s.LoggedIn = false
		return s.WithNotice(NoticeError, "Session expired, please log in again")
	case errors.Is(err, client.ErrTooLarge):
		return s.WithNotice(NoticeError, "The file is too large")
	case errors.As(err, &fe):
		return s.WithNotice(NoticeError, prefix+": invalid "+strings.Join(fe.Fields, ", "))
	}
	a.log.Error().Err(err).Msg(strings.ToLower(prefix))
	return s.WithNotice(NoticeError, prefix+", please try again")
}
