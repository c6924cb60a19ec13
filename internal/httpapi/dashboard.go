package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ultradash/internal/dashboard"
)

const logEventFetchAnalytics = "fetch_analytics"

type dashboardContent struct {
	Message string
	View    dashboard.View
}

// RenderDashboard draws the analytics of the active project.
func (handlers *WebHandlers) RenderDashboard(context *gin.Context) {
	store, ok := SessionFromContext(context)
	if !ok {
		context.Redirect(http.StatusFound, LoginPagePath)
		return
	}
	project := activeProject(store)
	if project.ID == "" {
		handlers.renderPage(context, http.StatusOK, pageKeyDashboard, pageTitleDashboard, DashboardPagePath, "", dashboardContent{Message: dashboard.NoProjectMessage})
		return
	}

	snapshot, fetchErr := handlers.backend.Analytics(context.Request.Context(), store.Token(), project.ID)
	if fetchErr != nil {
		handlers.logger.Warn(logEventFetchAnalytics, zap.String("project_id", project.ID), zap.Error(fetchErr))
		handlers.renderPage(context, http.StatusOK, pageKeyDashboard, pageTitleDashboard, DashboardPagePath, "", dashboardContent{Message: dashboard.NoAnalyticsMessage})
		return
	}
	handlers.renderPage(context, http.StatusOK, pageKeyDashboard, pageTitleDashboard, DashboardPagePath, "", dashboardContent{View: dashboard.NewView(project.Name, snapshot)})
}
