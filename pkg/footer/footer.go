// Package footer renders the sidebar footer shared by the dashboard pages.
package footer

import (
	"bytes"
	"html/template"
)

// Config captures the labels and style hooks of the footer.
type Config struct {
	ElementID         string
	BaseClass         string
	ModeLabel         string
	VersionPrefix     string
	Version           string
	LogoutAction      string
	LogoutLabel       string
	LogoutButtonClass string
}

var footerTemplate = template.Must(template.New("footer").Parse(`<footer id="{{.ElementID}}" class="{{.BaseClass}}">
  {{with .ModeLabel}}<p>{{.}}</p>{{end}}
  {{if .Version}}<p>{{.VersionPrefix}}{{.Version}}</p>{{end}}
  <form method="post" action="{{.LogoutAction}}">
    <button class="{{.LogoutButtonClass}}" type="submit">{{.LogoutLabel}}</button>
  </form>
</footer>`))

// Render returns the footer HTML for the provided configuration.
func Render(config Config) (template.HTML, error) {
	var buffer bytes.Buffer
	if err := footerTemplate.Execute(&buffer, config); err != nil {
		return "", err
	}
	return template.HTML(buffer.String()), nil
}
