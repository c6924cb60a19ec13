package capture_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/ultradash/internal/capture"
)

const (
	capturePageRoutePath                 = "/contato"
	capturePageContentType               = "text/html; charset=utf-8"
	captureProjectID                     = "p1"
	captureSubmitSelector                = "#enviar"
	captureFormSelector                  = "#form-contato"
	integrationTestTimeout               = 20 * time.Second
	captureReceiveTimeout                = 5 * time.Second
	headlessBrowserSkipReason            = "chromedp headless browser not available"
	headlessBrowserLocateErrorMessage    = "locate headless browser executable"
	headlessBrowserEnvironmentChromedp   = "CHROMEDP_BROWSER"
	headlessBrowserEnvironmentChromePath = "CHROME_PATH"
	silenceAlertsScript                  = `window.alert = function () {}; true`
)

const capturePageHTMLTemplate = `<!doctype html><html lang="pt-BR"><head><meta charset="utf-8"><title>Contato</title></head><body>
<form id="form-contato">
  <label for="campo-nome">Seu nome</label><input id="campo-nome" name="your-name" type="text">
  <input name="contato" type="email">
  <input name="whatsapp" type="text">
  <input name="cidade" type="text">
  <label for="campo-empresa">Empresa</label><input id="campo-empresa" name="empresa" type="text">
  <textarea name="mensagem"></textarea>
  <input name="vazio" type="text">
  <button id="enviar" type="submit">Enviar</button>
</form>
%s
</body></html>`

var headlessBrowserExecutableNames = []string{
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"chrome",
	"headless-shell",
}

var errHeadlessBrowserNotFound = errors.New("headless browser executable not found")

type capturedRequest struct {
	Path    string
	Payload map[string]string
}

func TestCaptureScriptPostsMappedPayload(testingT *testing.T) {
	gin.SetMode(gin.TestMode)

	browserContext := buildHeadlessBrowserContext(testingT)

	capturedRequests := make(chan capturedRequest, 1)
	router := gin.New()
	router.POST("/api/capture/:projectId", func(ginContext *gin.Context) {
		body, readErr := io.ReadAll(ginContext.Request.Body)
		if readErr != nil {
			ginContext.Status(http.StatusBadRequest)
			return
		}
		payload := map[string]string{}
		if decodeErr := json.Unmarshal(body, &payload); decodeErr != nil {
			ginContext.Status(http.StatusBadRequest)
			return
		}
		capturedRequests <- capturedRequest{Path: ginContext.Request.URL.Path, Payload: payload}
		ginContext.JSON(http.StatusCreated, gin.H{"id": "lead-1"})
	})

	server := httptest.NewServer(router)
	testingT.Cleanup(server.Close)

	generator := capture.NewGenerator(server.URL, captureFormSelector)
	script, scriptErr := generator.Script(captureProjectID)
	require.NoError(testingT, scriptErr)

	capturePageHTML := fmt.Sprintf(capturePageHTMLTemplate, script)
	router.GET(capturePageRoutePath, func(ginContext *gin.Context) {
		ginContext.Data(http.StatusOK, capturePageContentType, []byte(capturePageHTML))
	})

	runErr := chromedp.Run(browserContext,
		chromedp.Navigate(server.URL+capturePageRoutePath),
		chromedp.WaitVisible(captureSubmitSelector, chromedp.ByQuery),
		chromedp.Evaluate(silenceAlertsScript, nil),
		chromedp.SetValue(`input[name="your-name"]`, "Ana Souza", chromedp.ByQuery),
		chromedp.SetValue(`input[name="contato"]`, "ana@example.com", chromedp.ByQuery),
		chromedp.SetValue(`input[name="whatsapp"]`, "81999990000", chromedp.ByQuery),
		chromedp.SetValue(`input[name="cidade"]`, "Recife", chromedp.ByQuery),
		chromedp.SetValue(`input[name="empresa"]`, "Acme", chromedp.ByQuery),
		chromedp.SetValue(`textarea[name="mensagem"]`, "Quero um orçamento", chromedp.ByQuery),
		chromedp.Click(captureSubmitSelector, chromedp.ByQuery),
	)
	require.NoError(testingT, runErr)

	var received capturedRequest
	select {
	case received = <-capturedRequests:
	case <-time.After(captureReceiveTimeout):
		testingT.Fatal("capture endpoint received no request")
	}

	require.Equal(testingT, "/api/capture/"+captureProjectID, received.Path)
	require.Equal(testingT, map[string]string{
		capture.FieldName:         "Ana Souza",
		capture.FieldEmail:        "ana@example.com",
		capture.FieldPhone:        "81999990000",
		capture.FieldCity:         "Recife",
		capture.FieldObservations: "Empresa: Acme\nmensagem: Quero um orçamento",
	}, received.Payload)
}

func locateHeadlessBrowserExecutable() (string, error) {
	environmentVariableNames := []string{
		headlessBrowserEnvironmentChromedp,
		headlessBrowserEnvironmentChromePath,
	}

	for _, environmentVariableName := range environmentVariableNames {
		environmentValue := strings.TrimSpace(os.Getenv(environmentVariableName))
		if environmentValue == "" {
			continue
		}
		return environmentValue, nil
	}

	for _, executableName := range headlessBrowserExecutableNames {
		executablePath, lookupErr := exec.LookPath(executableName)
		if lookupErr == nil {
			return executablePath, nil
		}
	}

	return "", fmt.Errorf("%s: %w", headlessBrowserLocateErrorMessage, errHeadlessBrowserNotFound)
}

func buildHeadlessBrowserContext(testingT *testing.T) context.Context {
	testingT.Helper()

	browserExecutablePath, locateBrowserErr := locateHeadlessBrowserExecutable()
	if locateBrowserErr != nil {
		testingT.Skipf("%s: %v", headlessBrowserSkipReason, locateBrowserErr)
	}

	headlessAllocatorOptions := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(browserExecutablePath),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocatorContext, allocatorCancel := chromedp.NewExecAllocator(context.Background(), headlessAllocatorOptions...)
	testingT.Cleanup(allocatorCancel)

	browserContext, browserCancel := chromedp.NewContext(allocatorContext)
	testingT.Cleanup(browserCancel)

	contextWithTimeout, timeoutCancel := context.WithTimeout(browserContext, integrationTestTimeout)
	testingT.Cleanup(timeoutCancel)

	return contextWithTimeout
}
