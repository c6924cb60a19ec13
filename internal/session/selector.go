package session

import (
	"strings"

	"github.com/MarkoPoloResearchLab/ultradash/internal/model"
)

// EnsureActiveProject keeps current when set, else picks the first project,
// else the "all projects" pseudo-project. The result is never empty.
func EnsureActiveProject(projects []model.Project, current *model.Project) model.Project {
	if current != nil && strings.TrimSpace(current.ID) != "" {
		return *current
	}
	if len(projects) > 0 {
		return projects[0]
	}
	return model.AllProjects()
}

// SelectProject resolves a selector value against the project list. "all"
// selects the pseudo-project; unknown ids report false and change nothing.
func SelectProject(projects []model.Project, projectID string) (model.Project, bool) {
	trimmedID := strings.TrimSpace(projectID)
	if trimmedID == model.AllProjectsID {
		return model.AllProjects(), true
	}
	for _, project := range projects {
		if project.ID == trimmedID {
			return project, true
		}
	}
	return model.Project{}, false
}

// ProjectName resolves a project id for display.
func ProjectName(projects []model.Project, projectID string) (string, bool) {
	for _, project := range projects {
		if project.ID == projectID {
			return project.Name, true
		}
	}
	return "", false
}
