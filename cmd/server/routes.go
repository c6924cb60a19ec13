package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/MarkoPoloResearchLab/ultradash/internal/httpapi"
)

const (
	apiRoutePrefix     = "/api"
	apiPreflightRoute  = apiRoutePrefix + "/*path"
	metricsRoute       = "/metrics"
	cacheNameLeadPages = "lead_pages"

	corsHeaderAuthorization = "Authorization"
	corsHeaderContentType   = "Content-Type"
	corsHeaderRequestID     = httpapi.RequestIDHeader
	corsMaxAge              = 12 * time.Hour
)

var (
	corsAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsAllowedHeaders = []string{corsHeaderAuthorization, corsHeaderContentType, corsHeaderRequestID}
	corsExposedHeaders = []string{corsHeaderContentType, corsHeaderRequestID}
)

func registerFrontendRoutes(
	router *gin.Engine,
	sessionMiddleware gin.HandlerFunc,
	guard *httpapi.AuthGuard,
	webHandlers *httpapi.WebHandlers,
) {
	publicGroup := router.Group("/")
	publicGroup.Use(sessionMiddleware)
	publicGroup.GET(httpapi.LoginPagePath, webHandlers.RenderLogin)
	publicGroup.POST(httpapi.LoginPagePath, webHandlers.SubmitLogin)
	publicGroup.GET(httpapi.RegisterPagePath, webHandlers.RenderRegister)
	publicGroup.POST(httpapi.RegisterPagePath, webHandlers.SubmitRegister)
	publicGroup.POST(httpapi.LogoutPath, webHandlers.Logout)

	guardedGroup := router.Group("/")
	guardedGroup.Use(sessionMiddleware, guard.RequireAuthenticatedWeb())
	guardedGroup.GET(httpapi.DashboardPagePath, webHandlers.RenderDashboard)
	guardedGroup.GET(httpapi.LeadsPagePath, webHandlers.RenderLeads)
	guardedGroup.POST(httpapi.LeadSavePath, webHandlers.SaveLead)
	guardedGroup.GET(httpapi.LeadsExportPagePath, webHandlers.ExportCurrentPage)
	guardedGroup.GET(httpapi.LeadsExportAllPath, webHandlers.ExportAllLeads)
	guardedGroup.GET(httpapi.ProjectsPagePath, webHandlers.RenderProjects)
	guardedGroup.POST(httpapi.ProjectsPagePath, webHandlers.CreateProject)
	guardedGroup.POST(httpapi.ProjectRenamePath, webHandlers.RenameProject)
	guardedGroup.POST(httpapi.ProjectSelectPath, webHandlers.SelectProject)
	guardedGroup.GET(httpapi.PlansPagePath, webHandlers.RenderPlans)
	guardedGroup.POST(httpapi.PlansCheckoutPath, webHandlers.StartCheckout)
	guardedGroup.POST(httpapi.PlansPortalPath, webHandlers.OpenPortal)
	guardedGroup.GET(httpapi.SettingsPagePath, webHandlers.RenderSettings)
}

func registerBackendRoutes(
	router *gin.Engine,
	sessionMiddleware gin.HandlerFunc,
	guard *httpapi.AuthGuard,
	jsonHandlers *httpapi.JSONHandlers,
	authenticatedOrigin string,
) {
	authenticatedCORS := cors.New(cors.Config{
		AllowOrigins:     []string{authenticatedOrigin},
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	})
	registerAPIPreflightRoutes(router, authenticatedCORS)

	apiGroup := router.Group(apiRoutePrefix)
	apiGroup.Use(authenticatedCORS, sessionMiddleware, guard.RequireAuthenticatedJSON())
	apiGroup.GET(httpapi.APISessionPath, jsonHandlers.Session)
	apiGroup.GET(httpapi.APIProjectsPath, jsonHandlers.Projects)
	apiGroup.GET(httpapi.APIScriptPath, jsonHandlers.Script)
	apiGroup.GET(httpapi.APILeadsPath, jsonHandlers.Leads)
	apiGroup.GET(httpapi.APIAnalyticsPath, jsonHandlers.Analytics)
}

// registerAPIPreflightRoutes answers CORS preflights before the session guard runs.
func registerAPIPreflightRoutes(router *gin.Engine, authenticatedCORS gin.HandlerFunc) {
	router.OPTIONS(apiPreflightRoute, authenticatedCORS, func(context *gin.Context) {
		context.Status(http.StatusNoContent)
	})
}
