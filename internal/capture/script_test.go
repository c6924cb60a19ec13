package capture

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScriptEmbedsProjectAndEndpoint(testingT *testing.T) {
	generator := NewGenerator("https://api.example.com/", "")
	require.Equal(testingT, "https://api.example.com/api/capture", generator.Endpoint())

	script, err := generator.Script("p-123")
	require.NoError(testingT, err)
	require.True(testingT, strings.HasPrefix(script, "<script>"))
	require.True(testingT, strings.HasSuffix(strings.TrimSpace(script), "</script>"))
	require.Contains(testingT, script, `{"siteId":"p-123","apiEndpoint":"https://api.example.com/api/capture","formSelector":"#form-contato"}`)
	require.Contains(testingT, script, `{"nome":["nome","name","fullname","your-name"],"email":["email","mail","e-mail"],"telefone":["tel","phone","celular","whatsapp","fone"],"cidade":["cidade","city","municipio","localidade"]}`)
	require.Contains(testingT, script, `config.apiEndpoint + "/" + config.siteId`)
	require.Contains(testingT, script, "observacoes")
	require.Contains(testingT, script, "DOMContentLoaded")
}

func TestScriptIsPureFunctionOfProjectID(testingT *testing.T) {
	generator := NewGenerator("", "#lead-form")
	first, err := generator.Script("abc")
	require.NoError(testingT, err)
	second, err := generator.Script("abc")
	require.NoError(testingT, err)
	require.Equal(testingT, first, second)
	require.Contains(testingT, first, `"apiEndpoint":"http://localhost:3001/api/capture"`)
	require.Contains(testingT, first, `"formSelector":"#lead-form"`)

	other, err := generator.Script("xyz")
	require.NoError(testingT, err)
	require.NotEqual(testingT, first, other)
}

func TestScriptEscapesMarkup(testingT *testing.T) {
	script, err := NewGenerator("", "").Script("</script><b>")
	require.NoError(testingT, err)
	require.NotContains(testingT, script, "</script><b>")
	require.Contains(testingT, script, `\u003c/script\u003e\u003cb\u003e`)
}

func TestScriptRequiresProjectID(testingT *testing.T) {
	_, err := NewGenerator("", "").Script("  ")
	require.ErrorIs(testingT, err, ErrMissingProjectID)
}
