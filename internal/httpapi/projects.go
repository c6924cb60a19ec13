package httpapi

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ultradash/internal/model"
	"github.com/MarkoPoloResearchLab/ultradash/internal/session"
)

const (
	projectCreateFailed = "Falha ao criar o projeto."
	projectRenameFailed = "Falha ao renomear o projeto."

	logEventCreateProject = "create_project"
	logEventRenameProject = "rename_project"
	logEventProjectScript = "project_script"
)

type projectCard struct {
	Name     string
	EditHref string
	Script   string
}

type projectEditModal struct {
	Action      string
	CloseHref   string
	CurrentName string
	Name        string
}

type projectsContent struct {
	CreateAction   string
	NewProjectName string
	Projects       []projectCard
	EditModal      *projectEditModal
}

// RenderProjects lists the installation scripts; ?edit= opens the rename modal.
func (handlers *WebHandlers) RenderProjects(context *gin.Context) {
	store, ok := SessionFromContext(context)
	if !ok {
		context.Redirect(http.StatusFound, LoginPagePath)
		return
	}
	content := handlers.projectsContent(store.Snapshot().Projects)
	if editID := context.Query(queryKeyEdit); editID != "" {
		if name, found := session.ProjectName(store.Snapshot().Projects, editID); found {
			content.EditModal = projectModal(editID, name, name)
		}
	}
	handlers.renderPage(context, http.StatusOK, pageKeyProjects, pageTitleProjects, ProjectsPagePath, "", content)
}

// CreateProject adds a project and appends the returned record. Blank names
// never reach the API.
func (handlers *WebHandlers) CreateProject(context *gin.Context) {
	store, ok := SessionFromContext(context)
	if !ok {
		context.Redirect(http.StatusFound, LoginPagePath)
		return
	}
	name := strings.TrimSpace(context.PostForm(formKeyName))
	if name == "" {
		context.Redirect(http.StatusSeeOther, ProjectsPagePath)
		return
	}

	created, createErr := handlers.backend.CreateProject(context.Request.Context(), store.Token(), name)
	if createErr != nil {
		handlers.logger.Warn(logEventCreateProject, zap.Error(createErr))
		content := handlers.projectsContent(store.Snapshot().Projects)
		content.NewProjectName = name
		handlers.renderPage(context, http.StatusBadGateway, pageKeyProjects, pageTitleProjects, ProjectsPagePath, projectCreateFailed, content)
		return
	}
	store.AppendProject(created)
	context.Redirect(http.StatusSeeOther, ProjectsPagePath)
}

// RenameProject saves the modal. The returned record replaces the cached one.
func (handlers *WebHandlers) RenameProject(context *gin.Context) {
	store, ok := SessionFromContext(context)
	if !ok {
		context.Redirect(http.StatusFound, LoginPagePath)
		return
	}
	projectID := context.Param(paramKeyID)
	currentName, found := session.ProjectName(store.Snapshot().Projects, projectID)
	if !found {
		context.Redirect(http.StatusSeeOther, ProjectsPagePath)
		return
	}
	name := strings.TrimSpace(context.PostForm(formKeyName))
	if name == "" {
		context.Redirect(http.StatusSeeOther, projectEditHref(projectID))
		return
	}

	renamed, renameErr := handlers.backend.RenameProject(context.Request.Context(), store.Token(), projectID, name)
	if renameErr != nil {
		handlers.logger.Warn(logEventRenameProject, zap.String("project_id", projectID), zap.Error(renameErr))
		content := handlers.projectsContent(store.Snapshot().Projects)
		content.EditModal = projectModal(projectID, currentName, name)
		handlers.renderPage(context, http.StatusBadGateway, pageKeyProjects, pageTitleProjects, ProjectsPagePath, projectRenameFailed, content)
		return
	}
	store.ReplaceProject(renamed)
	context.Redirect(http.StatusSeeOther, ProjectsPagePath)
}

func (handlers *WebHandlers) projectsContent(projects []model.Project) projectsContent {
	content := projectsContent{CreateAction: ProjectsPagePath, Projects: make([]projectCard, 0, len(projects))}
	for _, project := range projects {
		script, scriptErr := handlers.scripts.Script(project.ID)
		if scriptErr != nil {
			handlers.logger.Warn(logEventProjectScript, zap.String("project_id", project.ID), zap.Error(scriptErr))
			continue
		}
		content.Projects = append(content.Projects, projectCard{
			Name:     project.Name,
			EditHref: projectEditHref(project.ID),
			Script:   script,
		})
	}
	return content
}

func projectModal(projectID string, currentName string, name string) *projectEditModal {
	return &projectEditModal{
		Action:      ProjectsPagePath + "/" + url.PathEscape(projectID),
		CloseHref:   ProjectsPagePath,
		CurrentName: currentName,
		Name:        name,
	}
}

func projectEditHref(projectID string) string {
	return ProjectsPagePath + "?" + url.Values{queryKeyEdit: []string{projectID}}.Encode()
}
