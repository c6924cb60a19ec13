// Package capture renders the installation snippet that site owners paste
// into their pages to send form submissions to the capture API.
package capture

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

const (
	DefaultFormSelector = "#form-contato"
	DefaultAPIBaseURL   = "http://localhost:3001"
	capturePath         = "/api/capture"

	FieldName         = "nome"
	FieldEmail        = "email"
	FieldPhone        = "telefone"
	FieldCity         = "cidade"
	FieldObservations = "observacoes"

	errorMessageRenderScript = "render capture script"
)

// ErrMissingProjectID is returned when no project id is given.
var ErrMissingProjectID = errors.New("missing_project_id")

//go:embed assets/capture_script.tmpl
var captureScriptSource string

var captureScriptTemplate = template.Must(template.New("capture_script").Parse(captureScriptSource))

type fieldKeywords struct {
	Field    string
	Keywords []string
}

// Mapping order decides ties: a field matching several lists goes to the first.
var defaultMapping = []fieldKeywords{
	{Field: FieldName, Keywords: []string{"nome", "name", "fullname", "your-name"}},
	{Field: FieldEmail, Keywords: []string{"email", "mail", "e-mail"}},
	{Field: FieldPhone, Keywords: []string{"tel", "phone", "celular", "whatsapp", "fone"}},
	{Field: FieldCity, Keywords: []string{"cidade", "city", "municipio", "localidade"}},
}

// Generator renders snippets against one capture endpoint.
type Generator struct {
	endpoint     string
	formSelector string
}

// NewGenerator builds a Generator. A blank apiBaseURL uses DefaultAPIBaseURL and
// a blank selector uses DefaultFormSelector.
func NewGenerator(apiBaseURL string, formSelector string) *Generator {
	baseURL := strings.TrimRight(strings.TrimSpace(apiBaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	selector := strings.TrimSpace(formSelector)
	if selector == "" {
		selector = DefaultFormSelector
	}
	return &Generator{endpoint: baseURL + capturePath, formSelector: selector}
}

// Endpoint is the URL the snippet posts to, without the project id.
func (generator *Generator) Endpoint() string {
	return generator.endpoint
}

// FormSelector is the CSS selector the snippet looks for.
func (generator *Generator) FormSelector() string {
	return generator.formSelector
}

// Script renders the snippet for projectID. The output depends on nothing else.
func (generator *Generator) Script(projectID string) (string, error) {
	trimmedID := strings.TrimSpace(projectID)
	if trimmedID == "" {
		return "", ErrMissingProjectID
	}

	configJSON, configErr := json.Marshal(struct {
		SiteID       string `json:"siteId"`
		APIEndpoint  string `json:"apiEndpoint"`
		FormSelector string `json:"formSelector"`
	}{SiteID: trimmedID, APIEndpoint: generator.endpoint, FormSelector: generator.formSelector})
	if configErr != nil {
		return "", fmt.Errorf("%s: %w", errorMessageRenderScript, configErr)
	}
	mappingJSON, mappingErr := orderedMappingJSON()
	if mappingErr != nil {
		return "", fmt.Errorf("%s: %w", errorMessageRenderScript, mappingErr)
	}

	var buffer bytes.Buffer
	executeErr := captureScriptTemplate.Execute(&buffer, struct {
		Config  string
		Mapping string
	}{Config: string(configJSON), Mapping: mappingJSON})
	if executeErr != nil {
		return "", fmt.Errorf("%s: %w", errorMessageRenderScript, executeErr)
	}
	return buffer.String(), nil
}

// orderedMappingJSON keeps the declaration order of defaultMapping, which a
// Go map would lose.
func orderedMappingJSON() (string, error) {
	var builder strings.Builder
	builder.WriteString("{")
	for index, entry := range defaultMapping {
		if index > 0 {
			builder.WriteString(",")
		}
		keyJSON, keyErr := json.Marshal(entry.Field)
		if keyErr != nil {
			return "", keyErr
		}
		keywordsJSON, keywordsErr := json.Marshal(entry.Keywords)
		if keywordsErr != nil {
			return "", keywordsErr
		}
		builder.Write(keyJSON)
		builder.WriteString(":")
		builder.Write(keywordsJSON)
	}
	builder.WriteString("}")
	return builder.String(), nil
}
