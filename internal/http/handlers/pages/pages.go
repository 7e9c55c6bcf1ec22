// Package pages serves the single-page-app shell.
//
// Every page route returns the same HTML document; the client bundle
// renders the page named in the path. Access control happens before
// this handler, in the guard middleware, so by the time the shell is
// served the request is already allowed.
package pages

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/byonco/webgate/internal/lib/sl"
)

var shellTmpl = template.Must(template.New("shell").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>ByOnco</title>
<link rel="stylesheet" href="/assets/app.css">
</head>
<body>
<div id="root" data-page="{{.Page}}"></div>
<script src="/assets/app.js" defer></script>
</body>
</html>
`))

type shellData struct {
	Page string
}

// Handler serves the SPA shell for page routes.
type Handler struct {
	log *slog.Logger
}

// New creates a pages Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

// ServeHTTP writes the shell document. The requested path is passed to
// the bundle so it can hydrate the right page.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.pages"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := shellTmpl.Execute(w, shellData{Page: r.URL.Path}); err != nil {
		log.Error("failed to render shell", sl.Err(err))
	}
}
