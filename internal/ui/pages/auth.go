package pages

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// Auth renders the login and registration forms.
func Auth(csrfToken string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		csrf := templ.EscapeString(csrfToken)
		_, err := fmt.Fprintf(w, `<!DOCTYPE html><html lang="pt-BR"><head><meta charset="utf-8"><title>Entrar - %s</title></head>`+
			`<body><div id="toast-container"></div><main>`+
			`<form method="post" action="/auth/login" hx-post="/auth/login" hx-swap="none">`+
			`<input type="hidden" name="csrf_token" value="%s">`+
			`<input type="email" name="email" autocomplete="email" required>`+
			`<input type="password" name="password" autocomplete="current-password" required>`+
			`<button type="submit">Entrar</button></form>`+
			`<form method="post" action="/auth/register" hx-post="/auth/register" hx-swap="none">`+
			`<input type="hidden" name="csrf_token" value="%s">`+
			`<input type="text" name="name" autocomplete="name" required>`+
			`<input type="email" name="email" autocomplete="email" required>`+
			`<input type="password" name="password" autocomplete="new-password" minlength="12" required>`+
			`<button type="submit">Criar conta</button></form>`+
			`</main></body></html>`, templ.EscapeString(appName(ctx)), csrf, csrf)
		return err
	})
}
