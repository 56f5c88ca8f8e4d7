package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"text/template"
	"time"
)

//go:embed templates/*.tmpl
var templateFiles embed.FS

var (
	textTemplates = template.Must(template.ParseFS(templateFiles, "templates/*.txt.tmpl"))
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFiles, "templates/*.html.tmpl"))
)

type otpData struct {
	Name         string
	Code         string
	PurposeLabel string
	ValidFor     string
}

// OTPMessage renders the one-time code email.
func OTPMessage(to, name, code, purpose string, ttl time.Duration) (Message, error) {
	label := "sign-in"
	subject := "Your intranet sign-in code"
	if purpose == "password_reset" {
		label = "password reset"
		subject = "Your intranet password reset code"
	}
	data := otpData{Name: name, Code: code, PurposeLabel: label, ValidFor: ttl.Round(time.Minute).String()}
	return render("otp", []string{to}, subject, data)
}

type alertData struct {
	Title    string
	Message  string
	StartsAt string
	Link     string
}

// AlertMessage renders the critical safety alert email for one recipient.
func AlertMessage(to, title, message string, startsAt time.Time, link string) (Message, error) {
	data := alertData{
		Title:    title,
		Message:  message,
		StartsAt: startsAt.UTC().Format("02 Jan 2006 15:04 MST"),
		Link:     link,
	}
	return render("alert", []string{to}, "[CRITICAL] "+title, data)
}

func render(name string, to []string, subject string, data any) (Message, error) {
	var text, html bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, name+".txt.tmpl", data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", name, err)
	}
	if err := htmlTemplates.ExecuteTemplate(&html, name+".html.tmpl", data); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", name, err)
	}
	return Message{To: to, Subject: subject, Text: text.String(), HTML: html.String()}, nil
}
