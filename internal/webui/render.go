package webui

import (
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strings"

	"cinefree/internal/catalog"
)

// RenderOptions carries values that do not change between requests.
type RenderOptions struct {
	// PublicAPIURL is the API base as seen by the browser. Video references
	// are resolved against it.
	PublicAPIURL string
}

type page struct {
	State
	Shown  []catalog.Movie
	Genres []string
	opts   RenderOptions
}

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"humanSize": HumanSize,
}).Parse(pageHTML))

// Render writes the page for s. It has no side effects besides writing to w.
func Render(w io.Writer, s State, opts RenderOptions) error {
	p := page{
		State:  s,
		Shown:  s.Visible(),
		Genres: catalog.Genres,
		opts:   opts,
	}
	return pageTemplate.Execute(w, p)
}

// VideoSrc resolves a stored reference against the public API URL.
func (p page) VideoSrc() string {
	if p.Current == nil || !p.Current.HasVideo() {
		return ""
	}
	return ResolveVideoURL(p.opts.PublicAPIURL, *p.Current.VideoURL)
}

// ResolveVideoURL joins a relative reference such as /uploads/x.mp4 to base.
// Absolute references are returned unchanged.
func ResolveVideoURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if u.IsAbs() || base == "" {
		return ref
	}
	b, err := url.Parse(strings.TrimRight(base, "/") + "/")
	if err != nil {
		return ref
	}
	return b.ResolveReference(u).String()
}

// HumanSize formats a byte count the way the upload form shows it.
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

const pageHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
  <title>CineFree</title>
  <style>
    :root {
      --bg: #0f1115;
      --panel: #181b22;
      --text: #eef0f4;
      --muted: #9aa3b2;
      --accent: #e50914;
      --ok: #1f9d55;
    }
    * { box-sizing: border-box; }
    body { margin: 0; font-family: system-ui, sans-serif; background: var(--bg); color: var(--text); }
    header { display: flex; align-items: center; gap: 16px; padding: 12px 24px; background: var(--panel); }
    header h1 { margin: 0; font-size: 1.4rem; color: var(--accent); }
    header nav { display: flex; gap: 12px; margin-left: auto; align-items: center; }
    a { color: var(--text); }
    main { padding: 24px; max-width: 1100px; margin: 0 auto; }
    .grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(220px, 1fr)); gap: 16px; }
    .card { background: var(--panel); border-radius: 8px; padding: 16px; }
    .card h3 { margin: 0 0 4px; }
    .genre { color: var(--muted); font-size: .85rem; }
    .empty { color: var(--muted); }
    form.inline { display: inline; }
    label { display: block; margin: 8px 0 4px; color: var(--muted); }
    input, select, textarea { width: 100%; padding: 8px; background: #0b0d11; color: var(--text); border: 1px solid #2a2f3a; border-radius: 4px; }
    button { margin-top: 12px; padding: 8px 16px; background: var(--accent); color: #fff; border: 0; border-radius: 4px; cursor: pointer; }
    button.link { background: none; color: var(--muted); margin: 0; padding: 0; }
    .manage li { display: flex; justify-content: space-between; align-items: center; padding: 6px 0; border-bottom: 1px solid #2a2f3a; }
    .player video, .player .placeholder { width: 100%; max-height: 70vh; background: #000; border-radius: 8px; }
    .player .placeholder { display: flex; align-items: center; justify-content: center; height: 320px; color: var(--muted); }
    .notice { position: fixed; right: 24px; bottom: 24px; padding: 12px 18px; border-radius: 6px; animation: dismiss 4s forwards; }
    .notice.success { background: var(--ok); }
    .notice.error { background: var(--accent); }
    @keyframes dismiss { 0%, 80% { opacity: 1; } 100% { opacity: 0; visibility: hidden; } }
  </style>
</head>
<body>
<header>
  <h1>CineFree</h1>
  <nav>
    <a href="/">Home</a>
    <a href="/admin">Admin</a>
    {{if .LoggedIn}}<form class="inline" method="post" action="/logout"><button class="link" type="submit">Log out</button></form>{{end}}
  </nav>
</header>
<main>
{{if eq .Section "home"}}
  <form method="get" action="/">
    <label for="genre">Genre</label>
    <select id="genre" name="genre" onchange="this.form.submit()">
      <option value="all"{{if eq .Filter "all"}} selected{{end}}>All</option>
      {{range .Genres}}<option value="{{.}}"{{if eq $.Filter .}} selected{{end}}>{{.}}</option>{{end}}
    </select>
    <noscript><button type="submit">Filter</button></noscript>
  </form>
  <h2>Movies</h2>
  {{if .Shown}}
  <div class="grid">
    {{range .Shown}}
    <div class="card">
      <h3>{{.Title}}</h3>
      <div class="genre">{{.Genre}}</div>
      <p>{{.Description}}</p>
      <a href="/play/{{.ID}}">Play</a>
    </div>
    {{end}}
  </div>
  {{else}}
  <p class="empty">No movies yet.</p>
  {{end}}
{{else if eq .Section "admin"}}
  {{if .LoggedIn}}
  <h2>Upload a movie</h2>
  <form method="post" action="/movies" enctype="multipart/form-data">
    <label for="title">Title</label>
    <input id="title" name="title" required/>
    <label for="upload-genre">Genre</label>
    <select id="upload-genre" name="genre" required>
      <option value="">Choose a genre</option>
      {{range .Genres}}<option value="{{.}}">{{.}}</option>{{end}}
    </select>
    <label for="description">Description</label>
    <textarea id="description" name="description" rows="3" required></textarea>
    <label for="video">Video file{{if gt .MaxUploadBytes 0}} (up to {{humanSize .MaxUploadBytes}}){{end}}</label>
    <input id="video" name="video" type="file" accept="video/*"/>
    <button type="submit">Upload</button>
  </form>
  <h2>Manage movies</h2>
  {{if .Movies}}
  <ul class="manage">
    {{range .Movies}}
    <li>
      <span>{{.Title}} <span class="genre">{{.Genre}}</span></span>
      <form class="inline" method="post" action="/movies/{{.ID}}/delete"><button type="submit">Delete</button></form>
    </li>
    {{end}}
  </ul>
  {{else}}
  <p class="empty">The catalog is empty.</p>
  {{end}}
  {{else}}
  <h2>Admin login</h2>
  <form method="post" action="/login">
    <label for="username">Username</label>
    <input id="username" name="username" autocomplete="username" required/>
    <label for="password">Password</label>
    <input id="password" name="password" type="password" autocomplete="current-password" required/>
    <button type="submit">Log in</button>
  </form>
  {{end}}
{{else if eq .Section "player"}}
  {{with .Current}}
  <div class="player">
    <h2>{{.Title}}</h2>
    <div class="genre">{{.Genre}}</div>
    {{if $.VideoSrc}}
    <video controls autoplay src="{{$.VideoSrc}}"></video>
    {{else}}
    <div class="placeholder">No video file for this movie.</div>
    {{end}}
    <p>{{.Description}}</p>
    <a href="/">Back to movies</a>
  </div>
  {{end}}
{{end}}
</main>
{{with .Notice}}<div class="notice {{.Kind}}" role="status">{{.Message}}</div>{{end}}
</body>
</html>
`
