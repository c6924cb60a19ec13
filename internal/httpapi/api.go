package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ultradash/internal/backend"
	"github.com/MarkoPoloResearchLab/ultradash/internal/capture"
	"github.com/MarkoPoloResearchLab/ultradash/internal/leads"
	"github.com/MarkoPoloResearchLab/ultradash/internal/model"
	"github.com/MarkoPoloResearchLab/ultradash/internal/session"
)

const (
	queryKeyProjectID = "projectId"

	apiErrorUpstream       = "upstream_failed"
	apiErrorUnknownProject = "unknown_project"
	apiErrorMissingSession = "missing_session"
)

// JSONHandlers expose the session and dashboard data to script clients.
type JSONHandlers struct {
	backend DashboardBackend
	scripts *capture.Generator
	logger  *zap.Logger
}

// NewJSONHandlers builds the JSON handlers.
func NewJSONHandlers(dashboardBackend DashboardBackend, scripts *capture.Generator, logger *zap.Logger) (*JSONHandlers, error) {
	if dashboardBackend == nil {
		return nil, errors.New("json handlers require a backend")
	}
	if scripts == nil {
		return nil, errors.New("json handlers require a script generator")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONHandlers{backend: dashboardBackend, scripts: scripts, logger: logger}, nil
}

type sessionResponse struct {
	Authenticated bool            `json:"authenticated"`
	User          *model.User     `json:"user,omitempty"`
	Projects      []model.Project `json:"projects"`
	ActiveProject *model.Project  `json:"activeProject,omitempty"`
}

type scriptResponse struct {
	ProjectID string `json:"projectId"`
	Script    string `json:"script"`
}

// Session reports the guarded caller's profile and selection.
func (handlers *JSONHandlers) Session(context *gin.Context) {
	store, ok := handlers.store(context)
	if !ok {
		return
	}
	snapshot := store.Snapshot()
	context.JSON(http.StatusOK, sessionResponse{
		Authenticated: AuthStateOf(snapshot) == AuthStateAuthenticated,
		User:          snapshot.User,
		Projects:      snapshot.Projects,
		ActiveProject: snapshot.ActiveProject,
	})
}

// Projects lists the cached projects.
func (handlers *JSONHandlers) Projects(context *gin.Context) {
	store, ok := handlers.store(context)
	if !ok {
		return
	}
	context.JSON(http.StatusOK, store.Snapshot().Projects)
}

// Leads proxies a page of leads. projectId defaults to the active project.
func (handlers *JSONHandlers) Leads(context *gin.Context) {
	store, ok := handlers.store(context)
	if !ok {
		return
	}
	query := backend.LeadQuery{
		ProjectID: handlers.projectID(context, store),
		Page:      leads.NormalizePage(queryInt(context, queryKeyPage)),
		Limit:     leads.NormalizePageSize(queryInt(context, queryKeyLimit)),
	}
	page, fetchErr := handlers.backend.ListLeads(context.Request.Context(), store.Token(), query)
	if fetchErr != nil {
		handlers.upstreamFailure(context, logEventFetchLeads, fetchErr)
		return
	}
	context.JSON(http.StatusOK, page)
}

// Analytics proxies the analytics snapshot of a project.
func (handlers *JSONHandlers) Analytics(context *gin.Context) {
	store, ok := handlers.store(context)
	if !ok {
		return
	}
	snapshot, fetchErr := handlers.backend.Analytics(context.Request.Context(), store.Token(), handlers.projectID(context, store))
	if fetchErr != nil {
		handlers.upstreamFailure(context, logEventFetchAnalytics, fetchErr)
		return
	}
	context.JSON(http.StatusOK, snapshot)
}

// Script renders the installation snippet of one of the caller's projects.
func (handlers *JSONHandlers) Script(context *gin.Context) {
	store, ok := handlers.store(context)
	if !ok {
		return
	}
	projectID := strings.TrimSpace(context.Param(paramKeyID))
	if _, found := session.ProjectName(store.Snapshot().Projects, projectID); !found {
		context.AbortWithStatusJSON(http.StatusNotFound, gin.H{jsonKeyError: apiErrorUnknownProject})
		return
	}
	script, scriptErr := handlers.scripts.Script(projectID)
	if scriptErr != nil {
		context.AbortWithStatusJSON(http.StatusBadRequest, gin.H{jsonKeyError: scriptErr.Error()})
		return
	}
	context.JSON(http.StatusOK, scriptResponse{ProjectID: projectID, Script: script})
}

func (handlers *JSONHandlers) store(context *gin.Context) (*session.Store, bool) {
	store, ok := SessionFromContext(context)
	if !ok {
		context.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{jsonKeyError: apiErrorMissingSession})
	}
	return store, ok
}

func (handlers *JSONHandlers) projectID(context *gin.Context, store *session.Store) string {
	if projectID := strings.TrimSpace(context.Query(queryKeyProjectID)); projectID != "" {
		return projectID
	}
	return activeProject(store).ID
}

func (handlers *JSONHandlers) upstreamFailure(context *gin.Context, event string, upstreamErr error) {
	handlers.logger.Warn(event, zap.Error(upstreamErr))
	status := http.StatusBadGateway
	if errors.Is(upstreamErr, backend.ErrUnauthorized) {
		status = http.StatusUnauthorized
	}
	context.AbortWithStatusJSON(status, gin.H{jsonKeyError: apiErrorUpstream})
}
