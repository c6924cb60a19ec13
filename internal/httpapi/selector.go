package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	formKeyProjectID = "project_id"
	formKeyRedirect  = "redirect"
)

// SelectProject changes the active project and returns to the page the
// selector was submitted from. Unknown ids leave the selection as it was.
func (handlers *WebHandlers) SelectProject(context *gin.Context) {
	target := localRedirectTarget(context.PostForm(formKeyRedirect), DashboardPagePath)
	store, ok := SessionFromContext(context)
	if !ok {
		context.Redirect(http.StatusFound, LoginPagePath)
		return
	}
	store.SelectProject(context.PostForm(formKeyProjectID))
	context.Redirect(http.StatusSeeOther, target)
}
