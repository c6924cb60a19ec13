package httpapi

const (
	LoginPagePath       = "/login"
	RegisterPagePath    = "/register"
	LogoutPath          = "/logout"
	DashboardPagePath   = "/"
	LeadsPagePath       = "/leads"
	LeadSavePath        = "/leads/:id"
	LeadsExportPagePath = "/leads/export/page"
	LeadsExportAllPath  = "/leads/export/all"
	ProjectsPagePath    = "/projects"
	ProjectRenamePath   = "/projects/:id"
	ProjectSelectPath   = "/project-selection"
	PlansPagePath       = "/plans"
	PlansCheckoutPath   = "/plans/checkout"
	PlansPortalPath     = "/plans/portal"
	SettingsPagePath    = "/settings"

	APISessionPath   = "/session"
	APIProjectsPath  = "/projects"
	APILeadsPath     = "/leads"
	APIAnalyticsPath = "/analytics"
	APIScriptPath    = "/projects/:id/script"

	queryKeyFrom   = "from"
	queryKeyPage   = "page"
	queryKeyLimit  = "limit"
	queryKeyLead   = "lead"
	queryKeyEdit   = "edit"
	queryKeyCached = "cached"
	paramKeyID     = "id"

	jsonKeyError = "error"

	htmlContentType = "text/html; charset=utf-8"
	csvContentType  = "text/csv; charset=utf-8"
)
