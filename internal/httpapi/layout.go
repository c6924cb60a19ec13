package httpapi

import (
	"fmt"
	"html/template"
	"time"

	"github.com/MarkoPoloResearchLab/ultradash/internal/model"
	"github.com/MarkoPoloResearchLab/ultradash/internal/session"
)

const (
	greetingMorning   = "Bom dia"
	greetingAfternoon = "Boa tarde"
	greetingEvening   = "Boa noite"

	planWarningFormat = `O plano "%s" expirou. Você retornou ao plano Free.`
)

type navigationItem struct {
	Label  string
	Path   string
	Active bool
}

var navigationEntries = []navigationItem{
	{Label: "Dados", Path: DashboardPagePath},
	{Label: "Leads", Path: LeadsPagePath},
	{Label: "Meus Projetos", Path: ProjectsPagePath},
	{Label: "Planos e Assinatura", Path: PlansPagePath},
	{Label: "Configurações", Path: SettingsPagePath},
}

type projectOption struct {
	ID       string
	Name     string
	Selected bool
}

type layoutData struct {
	Greeting       string
	PlanBadge      string
	PlanWarning    string
	Navigation     []navigationItem
	ProjectOptions []projectOption
	SelectorAction string
	CurrentPath    string
	FooterHTML     template.HTML
	Alert          string
}

type pageData struct {
	Title   string
	Layout  layoutData
	Content any
}

// Greeting picks the salutation for the hour of day.
func Greeting(hour int) string {
	switch {
	case hour < 12:
		return greetingMorning
	case hour < 18:
		return greetingAfternoon
	default:
		return greetingEvening
	}
}

// PlanWarning is the tooltip shown when a paid plan lapsed.
func PlanWarning(plan string) string {
	return fmt.Sprintf(planWarningFormat, plan)
}

func newLayoutData(snapshot session.Session, activePath string, currentPath string, now time.Time, footerHTML template.HTML) layoutData {
	layout := layoutData{
		SelectorAction: ProjectSelectPath,
		CurrentPath:    currentPath,
		FooterHTML:     footerHTML,
	}
	if snapshot.User != nil {
		layout.Greeting = Greeting(now.Hour()) + ", " + snapshot.User.Name + "!"
		if snapshot.User.SubscriptionActive() {
			layout.PlanBadge = snapshot.User.Plan
		} else if snapshot.User.SubscriptionLapsed() && snapshot.User.HasPaidPlan() {
			layout.PlanWarning = PlanWarning(snapshot.User.Plan)
		}
	}

	layout.Navigation = make([]navigationItem, len(navigationEntries))
	for index, entry := range navigationEntries {
		entry.Active = entry.Path == activePath
		layout.Navigation[index] = entry
	}

	activeID := model.AllProjectsID
	if snapshot.ActiveProject != nil {
		activeID = snapshot.ActiveProject.ID
	}
	layout.ProjectOptions = append(layout.ProjectOptions, projectOption{
		ID:       model.AllProjectsID,
		Name:     model.AllProjectsName,
		Selected: activeID == model.AllProjectsID,
	})
	for _, project := range snapshot.Projects {
		layout.ProjectOptions = append(layout.ProjectOptions, projectOption{
			ID:       project.ID,
			Name:     project.Name,
			Selected: project.ID == activeID,
		})
	}
	return layout
}
