package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", srv.Client())
}

func TestHealth(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	})
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}

func TestLogin(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["username"] == "admin" && req["password"] == "pw" {
			_, _ = io.WriteString(w, `{"token":"t0k","expiresAt":"2030-01-01T00:00:00Z"}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"invalid credentials"}`)
	})

	s, err := c.Login(context.Background(), "admin", "pw")
	if err != nil || s.Token != "t0k" || s.ExpiresAt.Year() != 2030 {
		t.Fatalf("Login = %+v, %v", s, err)
	}
	if _, err := c.Login(context.Background(), "admin", "bad"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestListMovies(t *testing.T) {
	var gotQuery string
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, `[{"id":"1","title":"A","genre":"Comedy","description":"d","videoUrl":null},
			{"id":"2","title":"B","genre":"Comedy","description":"d","videoUrl":"/uploads/1_b.mp4"}]`)
	})

	movies, err := c.ListMovies(context.Background(), "Comedy")
	if err != nil {
		t.Fatalf("ListMovies: %v", err)
	}
	if gotQuery != "genre=Comedy" {
		t.Fatalf("query = %q", gotQuery)
	}
	if len(movies) != 2 || movies[0].VideoURL != nil || *movies[1].VideoURL != "/uploads/1_b.mp4" {
		t.Fatalf("unexpected movies %+v", movies)
	}

	if _, err := c.ListMovies(context.Background(), "all"); err != nil || gotQuery != "" {
		t.Fatalf("all should not send a filter, query %q err %v", gotQuery, err)
	}
}

func TestCreateMovie(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("title") == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"missing or invalid fields","fields":["title"]}`)
			return
		}
		ref := ""
		if files := r.MultipartForm.File["video"]; len(files) == 1 {
			f, _ := files[0].Open()
			data, _ := io.ReadAll(f)
			f.Close()
			ref = "/uploads/1_" + files[0].Filename + "_" + string(data)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "new", "title": r.FormValue("title"), "genre": r.FormValue("genre"),
			"description": r.FormValue("description"), "videoUrl": ref,
		})
	})
	ctx := context.Background()

	m, err := c.CreateMovie(ctx, "good", NewMovie{
		Title: "X", Genre: "Drama", Description: "Y",
		VideoName: "clip.mp4", Video: strings.NewReader("abc"),
	})
	if err != nil {
		t.Fatalf("CreateMovie: %v", err)
	}
	if m.ID != "new" || m.Title != "X" || *m.VideoURL != "/uploads/1_clip.mp4_abc" {
		t.Fatalf("unexpected movie %+v", m)
	}

	_, err = c.CreateMovie(ctx, "good", NewMovie{Genre: "Drama", Description: "Y"})
	var fe *FieldsError
	if !errors.As(err, &fe) || len(fe.Fields) != 1 || fe.Fields[0] != "title" {
		t.Fatalf("expected FieldsError for title, got %v", err)
	}

	if _, err := c.CreateMovie(ctx, "bad", NewMovie{Title: "X", Genre: "Drama", Description: "Y", Video: strings.NewReader("v")}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestDeleteMovie(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method != http.MethodDelete:
			w.WriteHeader(http.StatusMethodNotAllowed)
		case r.Header.Get("Authorization") != "Bearer good":
			w.WriteHeader(http.StatusUnauthorized)
		case r.URL.Path == "/api/movies/present":
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/api/movies/broken":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":"internal error"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"movie not found"}`)
		}
	})
	ctx := context.Background()

	if err := c.DeleteMovie(ctx, "good", "present"); err != nil {
		t.Fatalf("DeleteMovie: %v", err)
	}
	if err := c.DeleteMovie(ctx, "good", "absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := c.DeleteMovie(ctx, "", "present"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	var se *StatusError
	if err := c.DeleteMovie(ctx, "good", "broken"); !errors.As(err, &se) || se.Code != 500 || se.Message != "internal error" {
		t.Fatalf("expected StatusError, got %v", err)
	}
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := New(url, nil)
	if _, err := c.ListMovies(context.Background(), ""); err == nil {
		t.Fatal("expected a transport error")
	}
}

func TestCreateMovie_TooLarge(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_, _ = io.WriteString(w, `{"error":"upload too large"}`)
	})
	_, err := c.CreateMovie(context.Background(), "good", NewMovie{
		Title: "X", Genre: "Drama", Description: "Y",
		VideoName: "big.mp4", Video: strings.NewReader(strings.Repeat("v", 4096)),
	})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}
