package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ultradash/internal/model"
)

const (
	plansCheckoutFailed = "Não foi possível iniciar o pagamento."
	plansPortalFailed   = "Não foi possível gerenciar sua assinatura."

	formKeyTier = "tier"

	logEventCheckout = "checkout_session"
	logEventPortal   = "portal_session"
)

type plansContent struct {
	Subscribed     bool
	CurrentPlan    string
	PortalAction   string
	CheckoutAction string
	Tiers          []model.PlanTier
}

// RenderPlans offers the catalog, or the billing portal to a paying user.
func (handlers *WebHandlers) RenderPlans(context *gin.Context) {
	handlers.renderPlans(context, http.StatusOK, "")
}

// StartCheckout asks the API for a checkout page of the chosen tier and sends
// the browser there.
func (handlers *WebHandlers) StartCheckout(context *gin.Context) {
	store, ok := SessionFromContext(context)
	if !ok {
		context.Redirect(http.StatusFound, LoginPagePath)
		return
	}
	tier, found := handlers.plans.Tier(context.PostForm(formKeyTier))
	if !found || !tier.Purchasable() {
		context.Redirect(http.StatusSeeOther, PlansPagePath)
		return
	}
	redirectURL, checkoutErr := handlers.backend.CreateCheckoutSession(context.Request.Context(), store.Token(), tier.PriceID)
	if checkoutErr != nil || redirectURL == "" {
		handlers.logger.Warn(logEventCheckout, zap.String("tier", tier.Key), zap.Error(checkoutErr))
		handlers.renderPlans(context, http.StatusBadGateway, plansCheckoutFailed)
		return
	}
	context.Redirect(http.StatusSeeOther, redirectURL)
}

// OpenPortal sends the browser to the subscription management portal.
func (handlers *WebHandlers) OpenPortal(context *gin.Context) {
	store, ok := SessionFromContext(context)
	if !ok {
		context.Redirect(http.StatusFound, LoginPagePath)
		return
	}
	redirectURL, portalErr := handlers.backend.CreatePortalSession(context.Request.Context(), store.Token())
	if portalErr != nil || redirectURL == "" {
		handlers.logger.Warn(logEventPortal, zap.Error(portalErr))
		handlers.renderPlans(context, http.StatusBadGateway, plansPortalFailed)
		return
	}
	context.Redirect(http.StatusSeeOther, redirectURL)
}

func (handlers *WebHandlers) renderPlans(context *gin.Context, status int, alert string) {
	store, ok := SessionFromContext(context)
	if !ok {
		context.Redirect(http.StatusFound, LoginPagePath)
		return
	}
	content := plansContent{
		PortalAction:   PlansPortalPath,
		CheckoutAction: PlansCheckoutPath,
		Tiers:          handlers.plans.Tiers,
	}
	if user := store.Snapshot().User; user != nil && user.HasPaidPlan() {
		content.Subscribed = true
		content.CurrentPlan = user.Plan
	}
	handlers.renderPage(context, status, pageKeyPlans, pageTitlePlans, PlansPagePath, alert, content)
}
