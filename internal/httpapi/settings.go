package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const logEventFetchSettings = "fetch_settings"

type settingsContent struct {
	Ready        bool
	SiteID       string
	Script       string
	FormSelector string
}

// RenderSettings fetches a fresh profile and shows the script for its site id.
func (handlers *WebHandlers) RenderSettings(context *gin.Context) {
	store, ok := SessionFromContext(context)
	if !ok {
		context.Redirect(http.StatusFound, LoginPagePath)
		return
	}
	content := settingsContent{FormSelector: handlers.scripts.FormSelector()}

	user, fetchErr := handlers.backend.CurrentUser(context.Request.Context(), store.Token())
	if fetchErr != nil {
		handlers.logger.Warn(logEventFetchSettings, zap.Error(fetchErr))
	} else if script, scriptErr := handlers.scripts.Script(user.SiteID); scriptErr == nil {
		content.Ready = true
		content.SiteID = user.SiteID
		content.Script = script
	}
	handlers.renderPage(context, http.StatusOK, pageKeySettings, pageTitleSettings, SettingsPagePath, "", content)
}
