package http

import (
	"html/template"
	"log/slog"
	"net/http"
)

// PasswordField is the form field carrying a submitted download password.
const PasswordField = "download_password"

var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Status}} {{.StatusText}}</title></head>
<body>
<center><h1>{{.Status}} {{.StatusText}}</h1></center>
<center><p>{{.Message}}</p></center>
<hr><center>ferry</center>
</body>
</html>
`))

var passwordPage = template.Must(template.New("password").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><meta name="robots" content="noindex"><title>{{.Name}}</title></head>
<body>
<h1>{{.Name}}</h1>
<p>This download is password protected. Please enter the password below.</p>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="{{.Action}}">
<label for="{{.Field}}">Password</label>
<input type="password" id="{{.Field}}" name="{{.Field}}" autocomplete="current-password" required>
<button type="submit">Download</button>
</form>
</body>
</html>
`))

func writeErrorPage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	err := errorPage.Execute(w, struct {
		Status     int
		StatusText string
		Message    string
	}{status, http.StatusText(status), message})
	if err != nil {
		slog.Error("failed to render error page", "error", err)
	}
}

// writePasswordForm renders the password prompt that posts back to the
// download URL.
func writePasswordForm(w http.ResponseWriter, status int, name, action, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	err := passwordPage.Execute(w, struct {
		Name   string
		Action string
		Field  string
		Error  string
	}{name, action, PasswordField, message})
	if err != nil {
		slog.Error("failed to render password form", "error", err)
	}
}
