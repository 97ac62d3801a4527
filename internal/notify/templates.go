package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"onboarding/internal/domain"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Message is a rendered notification ready for delivery.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

var headings = map[domain.MessageKind]string{
	domain.MessageRegistrationOTP:  "Email Verification",
	domain.MessageLoginOTP:         "Login Verification",
	domain.MessagePasswordResetOTP: "Password Reset",
}

var htmlBody = htmltemplate.Must(htmltemplate.New("otp").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
  <h2>{{.Heading}}</h2>
  <p>Hello{{if .Username}} {{.Username}}{{end}},</p>
  <p>Use the code below to continue. It expires in {{.ExpiryMinutes}} minutes.</p>
  <p style="font-size: 32px; font-weight: bold; letter-spacing: 8px;">{{.Code}}</p>
  <p style="font-size: 14px; color: #856404;">If you did not request this code, you can ignore this email.</p>
  <p style="font-size: 12px; color: #999;">{{.AppName}}</p>
</body>
</html>
`))

var textBody = texttemplate.Must(texttemplate.New("otp").Parse(`{{.Heading}}

Hello{{if .Username}} {{.Username}}{{end}},

Your code is {{.Code}}. It expires in {{.ExpiryMinutes}} minutes.

If you did not request this code, you can ignore this email.
{{.AppName}}
`))

type view struct {
	AppName       string
	Heading       string
	Username      string
	Code          string
	ExpiryMinutes int
}

// Render builds the subject and bodies for kind. data carries Code,
// Username, ExpiryMinutes and Purpose.
func Render(appName string, kind domain.MessageKind, data map[string]any) (Message, error) {
	heading, ok := headings[kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown message kind %q", kind)
	}
	v := view{AppName: appName, Heading: heading}
	v.Code, _ = data["Code"].(string)
	v.Username, _ = data["Username"].(string)
	v.ExpiryMinutes, _ = data["ExpiryMinutes"].(int)
	if v.Code == "" {
		return Message{}, fmt.Errorf("message %s: missing code", kind)
	}

	purpose, _ := data["Purpose"].(string)
	if purpose == "" {
		purpose = strings.TrimSuffix(string(kind), "_otp")
	}

	var h, t bytes.Buffer
	if err := htmlBody.Execute(&h, v); err != nil {
		return Message{}, err
	}
	if err := textBody.Execute(&t, v); err != nil {
		return Message{}, err
	}
	return Message{
		Subject: fmt.Sprintf("%s - %s Code", appName, formatPurpose(purpose)),
		HTML:    h.String(),
		Text:    t.String(),
	}, nil
}

func formatPurpose(purpose string) string {
	p := strings.ReplaceAll(purpose, "_", " ")
	return cases.Title(language.English).String(p)
}
