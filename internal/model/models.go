package model

import (
	"strings"
	"time"
)

const (
	// AllProjectsID identifies the synthetic selector value that removes the project filter.
	AllProjectsID   = "all"
	AllProjectsName = "Todos os Projetos"

	PlanFree = "Free"

	SubscriptionStatusActive   = "active"
	SubscriptionStatusInactive = "inactive"
	SubscriptionStatusCanceled = "canceled"
)

// Project is a tracked website owned by the authenticated user.
type Project struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// AllProjects returns the pseudo-project used when no project filter applies.
func AllProjects() Project {
	return Project{ID: AllProjectsID, Name: AllProjectsName}
}

// IsAll reports whether the project is the "all projects" selector value.
func (project Project) IsAll() bool {
	return project.ID == AllProjectsID
}

// User mirrors the profile returned by the current-user endpoint.
type User struct {
	Name               string `json:"name"`
	Email              string `json:"email,omitempty"`
	Plan               string `json:"plan"`
	SubscriptionStatus string `json:"subscriptionStatus"`
	SiteID             string `json:"siteId"`
}

// HasPaidPlan reports whether the user is subscribed to anything other than the free tier.
func (user User) HasPaidPlan() bool {
	plan := strings.TrimSpace(user.Plan)
	return plan != "" && !strings.EqualFold(plan, PlanFree)
}

// SubscriptionActive reports whether the plan badge should be shown.
func (user User) SubscriptionActive() bool {
	return user.SubscriptionStatus == SubscriptionStatusActive
}

// SubscriptionLapsed reports whether the paid plan expired or was canceled.
func (user User) SubscriptionLapsed() bool {
	return user.SubscriptionStatus == SubscriptionStatusInactive || user.SubscriptionStatus == SubscriptionStatusCanceled
}

// Lead is a contact captured through a project's embedded form.
type Lead struct {
	ID         string     `json:"_id"`
	Name       string     `json:"nome"`
	Email      string     `json:"email"`
	Phone      string     `json:"telefone"`
	City       string     `json:"cidade"`
	Status     LeadStatus `json:"status"`
	Comments   string     `json:"comentarios"`
	ProjectID  string     `json:"projectId"`
	ReceivedAt string     `json:"receivedAt"`
}

// ReceivedTime parses the lead timestamp; false means the value is missing or malformed.
func (lead Lead) ReceivedTime() (time.Time, bool) {
	trimmed := strings.TrimSpace(lead.ReceivedAt)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range receivedAtLayouts {
		parsed, parseErr := time.Parse(layout, trimmed)
		if parseErr == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

var receivedAtLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z07:00", "2006-01-02"}

// LeadPage is one server-side page of leads.
type LeadPage struct {
	Leads       []Lead `json:"leads"`
	TotalPages  int    `json:"totalPages"`
	CurrentPage int    `json:"currentPage"`
}

// LeadUpdate is the body of a lead update. A nil Comments leaves the log untouched.
type LeadUpdate struct {
	Name     string     `json:"nome"`
	City     string     `json:"cidade"`
	Status   LeadStatus `json:"status"`
	Comments *string    `json:"comentarios,omitempty"`
}

// ReplaceLeadByID swaps the lead with the same id for updated and leaves every other row as is.
func ReplaceLeadByID(leads []Lead, updated Lead) ([]Lead, bool) {
	replacedLeads := make([]Lead, len(leads))
	copy(replacedLeads, leads)
	for index := range replacedLeads {
		if replacedLeads[index].ID == updated.ID {
			replacedLeads[index] = updated
			return replacedLeads, true
		}
	}
	return replacedLeads, false
}

// ReplaceProjectByID swaps the project with the same id for updated.
func ReplaceProjectByID(projects []Project, updated Project) ([]Project, bool) {
	replacedProjects := make([]Project, len(projects))
	copy(replacedProjects, projects)
	for index := range replacedProjects {
		if replacedProjects[index].ID == updated.ID {
			replacedProjects[index] = updated
			return replacedProjects, true
		}
	}
	return replacedProjects, false
}
