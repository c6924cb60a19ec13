package httpapi

import (
	_ "embed"
	"html/template"
)

//go:embed templates/layout.tmpl
var layoutTemplateHTML string

//go:embed templates/checking.tmpl
var checkingTemplateHTML string

//go:embed templates/login.tmpl
var loginTemplateHTML string

//go:embed templates/register.tmpl
var registerTemplateHTML string

//go:embed templates/dashboard.tmpl
var dashboardTemplateHTML string

//go:embed templates/leads.tmpl
var leadsTemplateHTML string

//go:embed templates/projects.tmpl
var projectsTemplateHTML string

//go:embed templates/plans.tmpl
var plansTemplateHTML string

//go:embed templates/settings.tmpl
var settingsTemplateHTML string

const layoutTemplateName = "layout"

var layoutTemplate = template.Must(template.New(layoutTemplateName).Parse(layoutTemplateHTML))

// layoutPageTemplate combines the shared layout with a page defining "content".
func layoutPageTemplate(pageSource string) *template.Template {
	return template.Must(template.Must(layoutTemplate.Clone()).Parse(pageSource))
}
