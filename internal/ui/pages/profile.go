// Package pages renders full HTML pages.
package pages

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/vetlink/vetlink/internal/ctxkeys"
	"github.com/vetlink/vetlink/internal/model"
	"github.com/vetlink/vetlink/internal/ui/components/photo"
)

// ProfileProps feeds the profile page.
type ProfileProps struct {
	User      *model.User
	Posts     []*model.FeedPost
	CSRFToken string
	Accept    []string // allowed extensions for the file input
	MaxSizeMB int64
}

func Profile(p ProfileProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		nonce := templ.EscapeString(templ.GetNonce(ctx))
		csrf := templ.EscapeString(p.CSRFToken)
		accept := templ.EscapeString(strings.Join(p.Accept, ","))

		if _, err := fmt.Fprintf(w, `<!DOCTYPE html><html lang="pt-BR"><head><meta charset="utf-8">`+
			`<meta name="csrf-token" content="%s"><title>%s - %s</title>`+
			`<script nonce="%s">document.addEventListener("htmx:configRequest",function(e){e.detail.headers["X-CSRF-Token"]=document.querySelector('meta[name="csrf-token"]').content})</script>`+
			`</head><body><div id="toast-container"></div><main><h1>%s</h1>`,
			csrf, templ.EscapeString(p.User.Name), templ.EscapeString(appName(ctx)), nonce, templ.EscapeString(p.User.Name)); err != nil {
			return err
		}

		if _, err := fmt.Fprintf(w, `<div id="%s">`, photo.ProfileSlotID); err != nil {
			return err
		}
		if err := photo.Image(photo.ProfilePhotoID, p.User.PhotoURL, p.User.Name).Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `</div>`); err != nil {
			return err
		}

		if _, err := fmt.Fprintf(w, `<form hx-post="/perfil/alterar-foto" hx-encoding="multipart/form-data" hx-swap="none">`+
			`<input type="file" name="foto" accept="%s" required><small>Max %d MB</small>`+
			`<button type="submit">Alterar foto</button></form>`, accept, p.MaxSizeMB); err != nil {
			return err
		}

		if _, err := io.WriteString(w, `<form hx-post="/feed" hx-swap="none">`+
			`<textarea name="description" maxlength="2000" required></textarea>`+
			`<button type="submit">Publicar</button></form><section id="feed">`); err != nil {
			return err
		}
		for _, post := range p.Posts {
			if _, err := fmt.Fprintf(w, `<article><p>%s</p><div id="%s">`,
				templ.EscapeString(post.Description), photo.FeedSlotID(post.ID)); err != nil {
				return err
			}
			if err := photo.Image(photo.FeedImageID(post.ID), post.ImageURL, post.Description).Render(ctx, w); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, `</div><form hx-post="/feed/%d/imagem" hx-encoding="multipart/form-data" hx-swap="none">`+
				`<input type="file" name="imagem" accept="%s" required><button type="submit">Enviar imagem</button></form></article>`,
				post.ID, accept); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</section></main></body></html>`)
		return err
	})
}

func appName(ctx context.Context) string {
	if cfg := ctxkeys.Config(ctx); cfg != nil && cfg.AppName != "" {
		return cfg.AppName
	}
	return "VetLink"
}
