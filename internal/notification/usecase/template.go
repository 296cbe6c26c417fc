package usecase

import (
	"bytes"
	"embed"
	"errors"
	"html/template"

	"github.com/shandysiswandi/ayurclinic/internal/notification/entity"
)

//go:embed templates/*.html
var templateFS embed.FS

var errTemplateNotFound = errors.New("notification: email template not found")

type emailTemplate struct {
	subject string
	body    *template.Template
}

var emailTemplates = map[entity.TriggerKey]emailTemplate{
	entity.TriggerKeyRegistration: {
		subject: "Your registration code",
		body:    mustParse("otp_registration.html"),
	},
	entity.TriggerKeyPasswordReset: {
		subject: "Your password reset code",
		body:    mustParse("otp_password_reset.html"),
	},
}

func mustParse(name string) *template.Template {
	return template.Must(template.New(name).Option("missingkey=zero").ParseFS(templateFS, "templates/"+name))
}

func renderTemplate(tk entity.TriggerKey, data map[string]any) (subject, body string, err error) {
	tpl, ok := emailTemplates[tk]
	if !ok {
		return "", "", errTemplateNotFound
	}

	var buf bytes.Buffer
	if err := tpl.body.Execute(&buf, data); err != nil {
		return "", "", err
	}

	return tpl.subject, buf.String(), nil
}
