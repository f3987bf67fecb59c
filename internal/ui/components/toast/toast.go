// Package toast renders notification toasts swapped into #toast-container.
package toast

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

type Variant string

const (
	VariantSuccess Variant = "success"
	VariantError   Variant = "error"
	VariantInfo    Variant = "info"
)

type Props struct {
	Title       string
	Description string
	Variant     Variant
	Dismissible bool
}

// Container is the OOB swap target for toasts.
const Container = "beforeend:#toast-container"

func Toast(p Props) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		variant := p.Variant
		if variant == "" {
			variant = VariantInfo
		}
		role := "status"
		if variant == VariantError {
			role = "alert"
		}

		_, err := fmt.Fprintf(w,
			`<div class="toast toast-%s" role="%s"><strong class="toast-title">%s</strong><p class="toast-description">%s</p>`,
			templ.EscapeString(string(variant)), role,
			templ.EscapeString(p.Title), templ.EscapeString(p.Description))
		if err != nil {
			return err
		}
		if p.Dismissible {
			if _, err := io.WriteString(w, `<button type="button" class="toast-close" aria-label="Close">&times;</button>`); err != nil {
				return err
			}
		}
		_, err = io.WriteString(w, `</div>`)
		return err
	})
}

func Success(description string) templ.Component {
	return Toast(Props{Title: "Success", Description: description, Variant: VariantSuccess, Dismissible: true})
}

func Error(description string) templ.Component {
	return Toast(Props{Title: "Error", Description: description, Variant: VariantError, Dismissible: true})
}
