// internal/service/email/sender.go
package email

import (
	"bytes"
	"context"
	"html/template"
)

// Sender delivers one HTML email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Message struct {
	To       string
	Subject  string
	BodyHTML string
	// Tag groups messages in the provider dashboard.
	Tag string
}

var layout = template.Must(template.New("layout").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8" />
<title>{{.Subject}}</title>
<style>
body { font-family: Arial, sans-serif; background-color: #f6f8fa; padding: 30px; }
.container { max-width: 600px; margin: auto; background: #fff; border-radius: 10px; overflow: hidden; }
.header { background: #0f766e; color: white; text-align: center; padding: 20px; font-size: 22px; font-weight: bold; }
.body { padding: 25px; color: #333; line-height: 1.6; }
.footer { background: #f1f1f1; color: #555; text-align: center; padding: 15px; font-size: 13px; }
a.button { display: inline-block; background: #0f766e; color: white; padding: 10px 20px; border-radius: 5px; text-decoration: none; }
</style>
</head>
<body>
<div class="container">
<div class="header">MedConnect AI</div>
<div class="body">{{.Body}}</div>
<div class="footer">You are receiving this because you have a MedConnect AI account.</div>
</div>
</body>
</html>`))

// render wraps the message body in the branded layout. Bodies are built by
// the notification service from escaped values, so they are trusted here.
func render(m Message) (string, error) {
	var buf bytes.Buffer
	err := layout.Execute(&buf, struct {
		Subject string
		Body    template.HTML
	}{Subject: m.Subject, Body: template.HTML(m.BodyHTML)})
	return buf.String(), err
}
