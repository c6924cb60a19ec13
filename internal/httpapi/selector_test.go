package httpapi_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectProject(testingT *testing.T) {
	testCases := []struct {
		name             string
		form             url.Values
		expectedLocation string
		expectedSubtitle string
	}{
		{name: "known project", form: url.Values{"project_id": {"p2"}, "redirect": {"/leads"}}, expectedLocation: "/leads", expectedSubtitle: "Exibindo leads para: Loja B"},
		{name: "all projects", form: url.Values{"project_id": {"all"}, "redirect": {"/leads?page=2"}}, expectedLocation: "/leads?page=2", expectedSubtitle: "Exibindo leads para: Todos os Projetos"},
		{name: "unknown project keeps selection", form: url.Values{"project_id": {"p404"}, "redirect": {"/leads"}}, expectedLocation: "/leads", expectedSubtitle: "Exibindo leads para: Site A"},
		{name: "foreign redirect", form: url.Values{"project_id": {"p2"}, "redirect": {"//evil.example/x"}}, expectedLocation: "/", expectedSubtitle: "Exibindo leads para: Loja B"},
		{name: "absolute redirect", form: url.Values{"project_id": {"p2"}, "redirect": {"https://evil.example"}}, expectedLocation: "/", expectedSubtitle: "Exibindo leads para: Loja B"},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(testingT *testing.T) {
			harness := newTestHarness(testingT, newStubBackend())
			harness.login(testingT)

			recorder := harness.do(testingT, http.MethodPost, "/project-selection", testCase.form)
			require.Equal(testingT, http.StatusSeeOther, recorder.Code)
			require.Equal(testingT, testCase.expectedLocation, recorder.Header().Get("Location"))

			leadsPage := harness.do(testingT, http.MethodGet, "/leads", nil)
			require.Equal(testingT, http.StatusOK, leadsPage.Code)
			require.Contains(testingT, leadsPage.Body.String(), testCase.expectedSubtitle)
		})
	}
}
