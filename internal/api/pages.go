/**
 * @description
 * HTML pages served to the approver's browser: the confirmation form with
 * the hosted sign-in button, and the result page every confirmation outcome
 * renders into.
 */
package api

import (
	"embed"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

const (
	confirmTemplate = "confirm.html"
	resultTemplate  = "result.html"
)

// confirmPage is the data for the confirmation form.
type confirmPage struct {
	Identifier string
	State      string
	ClientID   string
}

// resultPage is the data for the outcome page.
type resultPage struct {
	Title   string
	Message string
}

func (h *Handler) renderPage(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("failed to render page", "template", name, "error", err)
	}
}

func (h *Handler) renderResult(w http.ResponseWriter, status int, title, message string) {
	h.renderPage(w, status, resultTemplate, resultPage{Title: title, Message: message})
}
