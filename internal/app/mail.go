/**
 * @description
 * HTML bodies for the lifecycle notices. Every notice is sent with a plain
 * text body plus an HTML rendering of the same content; a template failure
 * degrades the mail to plain text instead of blocking the workflow.
 */
package app

import (
	"embed"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var mailTemplatesFS embed.FS

var mailTemplates = template.Must(template.ParseFS(mailTemplatesFS, "templates/*.html"))

const (
	mailCreated     = "created.html"
	mailDeleted     = "deleted.html"
	mailDeactivated = "deactivated.html"
	mailReminder    = "reminder.html"
)

type createdMail struct {
	PrimaryEmail string
	Password     string
}

type deletedMail struct {
	PrimaryEmail string
	SurveyLink   string
}

type deactivatedMail struct {
	PrimaryEmail string
}

type reminderMail struct {
	PrimaryEmail string
	Days         int
	Link         string
}

func renderMail(name string, data interface{}) (string, error) {
	var b strings.Builder
	if err := mailTemplates.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
