// Package client talks to the CineFree API over HTTP.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"cinefree/internal/catalog"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrTooLarge     = errors.New("upload too large")
)

// FieldsError is a 400 answer that names the offending form fields.
type FieldsError struct {
	Message string
	Fields  []string
}

func (e *FieldsError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Fields, ", ")
}

// StatusError is any other unexpected answer.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned %d", e.Code)
	}
	return fmt.Sprintf("api returned %d: %s", e.Code, e.Message)
}

// Client calls the catalog API at a fixed base URL.
type Client struct {
	base string
	http *http.Client
}

// New returns a client for the API at baseURL. A nil httpClient gets a
// default with a 30s timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) BaseURL() string {
	return c.base
}

// Health reports whether the API answers its health check.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/health", "", nil, &out); err != nil {
		return err
	}
	if !out.OK {
		return errors.New("api reports not ok")
	}
	return nil
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return Session{}, err
	}
	var s Session
	err = c.doJSON(ctx, http.MethodPost, "/api/login", "", bytes.NewReader(body), &s)
	return s, err
}

// ListMovies fetches the catalog. An empty genre or "all" returns
// everything.
func (c *Client) ListMovies(ctx context.Context, genre string) ([]catalog.Movie, error) {
	p := "/api/movies"
	if genre != "" && genre != catalog.AllGenres {
		p += "?genre=" + url.QueryEscape(genre)
	}
	movies := []catalog.Movie{}
	if err := c.doJSON(ctx, http.MethodGet, p, "", nil, &movies); err != nil {
		return nil, err
	}
	return movies, nil
}

// NewMovie is the upload payload. Video may be nil.
type NewMovie struct {
	Title       string
	Genre       string
	Description string
	VideoName   string
	Video       io.Reader
}

// CreateMovie streams a multipart upload to the API.
func (c *Client) CreateMovie(ctx context.Context, token string, m NewMovie) (catalog.Movie, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeMovieForm(mw, m))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/movies", pr)
	if err != nil {
		pr.Close()
		return catalog.Movie{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	var created catalog.Movie
	err = c.send(req, &created)
	pr.Close()
	return created, err
}

func writeMovieForm(mw *multipart.Writer, m NewMovie) error {
	for _, f := range [][2]string{{"title", m.Title}, {"genre", m.Genre}, {"description", m.Description}} {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	if m.Video != nil {
		name := m.VideoName
		if name == "" {
			name = "video"
		}
		fw, err := mw.CreateFormFile("video", name)
		if err != nil {
			return err
		}
		if _, err := io.Copy(fw, m.Video); err != nil {
			return err
		}
	}
	return mw.Close()
}

func (c *Client) DeleteMovie(ctx context.Context, token, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/movies/"+url.PathEscape(id), token, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, p, token string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+p, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s: %w", req.URL.Path, err)
		}
		return nil
	}

	var apiErr struct {
		Error  string   `json:"error"`
		Fields []string `json:"fields"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr)
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusRequestEntityTooLarge:
		return ErrTooLarge
	case http.StatusBadRequest:
		if len(apiErr.Fields) > 0 {
			return &FieldsError{Message: apiErr.Error, Fields: apiErr.Fields}
		}
	}
	return &StatusError{Code: resp.StatusCode, Message: apiErr.Error}
}
