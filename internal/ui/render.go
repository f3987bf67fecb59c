package ui

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
)

func Render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	RenderStatus(w, r, http.StatusOK, c)
}

// RenderStatus writes status and then the component. A render error after
// the header is sent can only be logged.
func RenderStatus(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render failed", "error", err)
	}
}

// RenderOOB wraps c in an hx-swap-oob element for target.
func RenderOOB(w http.ResponseWriter, r *http.Request, c templ.Component, target string) {
	if _, err := fmt.Fprintf(w, `<div hx-swap-oob="%s">`, templ.EscapeString(target)); err != nil {
		slog.Error("render oob write wrapper start failed", "error", err)
		return
	}

	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render oob component render failed", "error", err)
		return
	}

	if _, err := w.Write([]byte(`</div>`)); err != nil {
		slog.Error("render oob write wrapper end failed", "error", err)
	}
}
