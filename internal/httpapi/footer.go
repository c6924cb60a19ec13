package httpapi

import (
	"html/template"

	"github.com/MarkoPoloResearchLab/ultradash/pkg/footer"
)

const (
	footerElementID         = "sidebar-footer"
	footerBaseClass         = "sidebar-footer"
	footerModeLabel         = "Modo De Testes"
	footerVersionPrefix     = "Versão: "
	footerLogoutLabel       = "Logout"
	footerLogoutButtonClass = "logout-button"
)

func renderSidebarFooter(version string) (template.HTML, error) {
	return footer.Render(footer.Config{
		ElementID:         footerElementID,
		BaseClass:         footerBaseClass,
		ModeLabel:         footerModeLabel,
		VersionPrefix:     footerVersionPrefix,
		Version:           version,
		LogoutAction:      LogoutPath,
		LogoutLabel:       footerLogoutLabel,
		LogoutButtonClass: footerLogoutButtonClass,
	})
}
