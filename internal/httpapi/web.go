package httpapi

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ultradash/internal/backend"
	"github.com/MarkoPoloResearchLab/ultradash/internal/capture"
	"github.com/MarkoPoloResearchLab/ultradash/internal/leads"
	"github.com/MarkoPoloResearchLab/ultradash/internal/model"
	"github.com/MarkoPoloResearchLab/ultradash/internal/session"
)

const (
	pageKeyDashboard = "dashboard"
	pageKeyLeads     = "leads"
	pageKeyProjects  = "projects"
	pageKeyPlans     = "plans"
	pageKeySettings  = "settings"

	pageTitleDashboard = "Dados"
	pageTitleLeads     = "Leads"
	pageTitleProjects  = "Meus Projetos"
	pageTitlePlans     = "Planos e Assinatura"
	pageTitleSettings  = "Configurações"

	renderErrorValue = "render_failed"

	logEventRenderPage   = "render_page"
	logEventRenderFooter = "render_footer"
)

var errMissingSession = errors.New("missing_session")

// DashboardBackend is the part of the API the dashboard pages call directly.
type DashboardBackend interface {
	Register(ctx context.Context, registration backend.Registration) error
	CurrentUser(ctx context.Context, token string) (model.User, error)
	CreateProject(ctx context.Context, token string, name string) (model.Project, error)
	RenameProject(ctx context.Context, token string, projectID string, name string) (model.Project, error)
	ListLeads(ctx context.Context, token string, query backend.LeadQuery) (model.LeadPage, error)
	UpdateLead(ctx context.Context, token string, leadID string, update model.LeadUpdate) (model.Lead, error)
	Analytics(ctx context.Context, token string, projectID string) (model.AnalyticsSnapshot, error)
	CreateCheckoutSession(ctx context.Context, token string, priceID string) (string, error)
	CreatePortalSession(ctx context.Context, token string) (string, error)
}

// WebConfig wires the page handlers. Backend, Scripts and Plans are required.
type WebConfig struct {
	Backend  DashboardBackend
	Pages    *leads.PageStore
	Exporter *leads.Exporter
	Scripts  *capture.Generator
	Plans    model.PlanCatalog
	Location *time.Location
	Clock    func() time.Time
	Version  string
	Logger   *zap.Logger
}

// WebHandlers serves the server-rendered dashboard.
type WebHandlers struct {
	backend   DashboardBackend
	pages     *leads.PageStore
	exporter  *leads.Exporter
	scripts   *capture.Generator
	plans     model.PlanCatalog
	location  *time.Location
	now       func() time.Time
	version   string
	logger    *zap.Logger
	templates map[string]*template.Template
	login     *template.Template
	register  *template.Template
}

// NewWebHandlers compiles the page templates.
func NewWebHandlers(config WebConfig) (*WebHandlers, error) {
	if config.Backend == nil {
		return nil, errors.New("web handlers require a backend")
	}
	if config.Scripts == nil {
		return nil, errors.New("web handlers require a script generator")
	}
	if len(config.Plans.Tiers) == 0 {
		return nil, model.ErrEmptyPlanCatalog
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	location := config.Location
	if location == nil {
		location = time.UTC
	}
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}
	pages := config.Pages
	if pages == nil {
		pages = leads.NewPageStore(session.DefaultCacheTTL, nil)
	}
	exporter := config.Exporter
	if exporter == nil {
		exporter = leads.NewExporter(config.Backend, location, nil)
	}

	return &WebHandlers{
		backend:  config.Backend,
		pages:    pages,
		exporter: exporter,
		scripts:  config.Scripts,
		plans:    config.Plans,
		location: location,
		now:      clock,
		version:  strings.TrimSpace(config.Version),
		logger:   logger,
		templates: map[string]*template.Template{
			pageKeyDashboard: layoutPageTemplate(dashboardTemplateHTML),
			pageKeyLeads:     layoutPageTemplate(leadsTemplateHTML),
			pageKeyProjects:  layoutPageTemplate(projectsTemplateHTML),
			pageKeyPlans:     layoutPageTemplate(plansTemplateHTML),
			pageKeySettings:  layoutPageTemplate(settingsTemplateHTML),
		},
		login:    template.Must(template.New("login").Parse(loginTemplateHTML)),
		register: template.Must(template.New("register").Parse(registerTemplateHTML)),
	}, nil
}

// PageStore exposes the current-page cache for purging and logout.
func (handlers *WebHandlers) PageStore() *leads.PageStore {
	return handlers.pages
}

// Exporter exposes the export-all runner.
func (handlers *WebHandlers) Exporter() *leads.Exporter {
	return handlers.exporter
}

func (handlers *WebHandlers) renderPage(context *gin.Context, status int, pageKey string, title string, activePath string, alert string, content any) {
	store, ok := SessionFromContext(context)
	if !ok {
		handlers.logger.Error(logEventRenderPage, zap.Error(errMissingSession))
		context.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{jsonKeyError: renderErrorValue})
		return
	}
	footerHTML, footerErr := renderSidebarFooter(handlers.version)
	if footerErr != nil {
		handlers.logger.Warn(logEventRenderFooter, zap.Error(footerErr))
		footerHTML = template.HTML("")
	}

	layout := newLayoutData(store.Snapshot(), activePath, context.Request.URL.RequestURI(), handlers.now().In(handlers.location), footerHTML)
	layout.Alert = alert
	data := pageData{Title: title, Layout: layout, Content: content}

	var buffer bytes.Buffer
	if executeErr := handlers.templates[pageKey].ExecuteTemplate(&buffer, layoutTemplateName, data); executeErr != nil {
		handlers.logger.Error(logEventRenderPage, zap.String("page", pageKey), zap.Error(executeErr))
		context.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{jsonKeyError: renderErrorValue})
		return
	}
	context.Data(status, htmlContentType, buffer.Bytes())
}

func (handlers *WebHandlers) renderStandalone(context *gin.Context, status int, compiled *template.Template, data any) {
	var buffer bytes.Buffer
	if executeErr := compiled.Execute(&buffer, data); executeErr != nil {
		handlers.logger.Error(logEventRenderPage, zap.String("page", compiled.Name()), zap.Error(executeErr))
		context.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{jsonKeyError: renderErrorValue})
		return
	}
	context.Data(status, htmlContentType, buffer.Bytes())
}

// activeProject returns the guarded request's selection.
func activeProject(store *session.Store) model.Project {
	snapshot := store.Snapshot()
	if snapshot.ActiveProject == nil {
		return store.EnsureActiveProject()
	}
	return *snapshot.ActiveProject
}

// localRedirectTarget accepts only same-site absolute paths.
func localRedirectTarget(rawTarget string, fallback string) string {
	target := strings.TrimSpace(rawTarget)
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}
