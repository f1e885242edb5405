// Package webui renders the CineFree front end and drives it against the
// API. The browser holds no script state: every request rebuilds a State
// from the path, the query and cookies, and Render turns it into HTML.
package webui

import "cinefree/internal/catalog"

// Section is the page area being shown.
type Section string

const (
	SectionHome   Section = "home"
	SectionAdmin  Section = "admin"
	SectionPlayer Section = "player"
)

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a transient message shown once and then dismissed.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// State is everything the page depends on. Transitions return a new value.
type State struct {
	Section  Section
	Filter   string
	LoggedIn bool
	Movies   []catalog.Movie
	Current  *catalog.Movie
	Notice   *Notice
	// MaxUploadBytes is shown next to the file picker when positive.
	MaxUploadBytes int64
}

func NewState() State {
	return State{Section: SectionHome, Filter: catalog.AllGenres}
}

// Navigate switches section. Leaving the player forgets the current movie.
func (s State) Navigate(sec Section) State {
	switch sec {
	case SectionHome, SectionAdmin, SectionPlayer:
	default:
		sec = SectionHome
	}
	s.Section = sec
	if sec != SectionPlayer {
		s.Current = nil
	}
	return s
}

// WithFilter sets the genre filter. An empty value means all genres.
func (s State) WithFilter(genre string) State {
	if genre == "" {
		genre = catalog.AllGenres
	}
	s.Filter = genre
	return s
}

// Visible is the part of the catalog the home grid shows.
func (s State) Visible() []catalog.Movie {
	return catalog.FilterByGenre(s.Movies, s.Filter)
}

// Play opens the player for id. An unknown id falls back to home with an
// error notice.
func (s State) Play(id string) State {
	m, ok := catalog.Find(s.Movies, id)
	if !ok {
		return s.Navigate(SectionHome).WithNotice(NoticeError, "Movie not found")
	}
	s.Current = &m
	s.Section = SectionPlayer
	return s
}

func (s State) WithNotice(kind NoticeKind, msg string) State {
	s.Notice = &Notice{Kind: kind, Message: msg}
	return s
}
