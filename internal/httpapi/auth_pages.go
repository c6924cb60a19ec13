package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ultradash/internal/backend"
	"github.com/MarkoPoloResearchLab/ultradash/internal/session"
)

const (
	registerPasswordMismatch = "As senhas não coincidem."
	registerDefaultFailure   = "Ocorreu um erro ao registrar."
	registerSuccessMessage   = "Registro bem-sucedido! Redirecionando para o login..."
	registerRedirectSeconds  = 2
	authPageDefaultVersion   = "Alpha"

	formKeyEmail           = "email"
	formKeyPassword        = "password"
	formKeyConfirmPassword = "confirm_password"
	formKeyName            = "name"
	formKeyFrom            = "from"

	logEventLogin    = "login"
	logEventRegister = "register"
)

type loginTemplateData struct {
	Action       string
	RegisterPath string
	Email        string
	From         string
	Error        string
	Version      string
}

type registerTemplateData struct {
	Action          string
	LoginPath       string
	Name            string
	Email           string
	Error           string
	Success         bool
	SuccessMessage  string
	RedirectSeconds int
	Version         string
}

// RenderLogin shows the login form; authenticated browsers go to the dashboard.
func (handlers *WebHandlers) RenderLogin(context *gin.Context) {
	if store, ok := SessionFromContext(context); ok && AuthStateOf(store.Snapshot()) == AuthStateAuthenticated {
		context.Redirect(http.StatusFound, DashboardPagePath)
		return
	}
	handlers.renderStandalone(context, http.StatusOK, handlers.login, handlers.loginData(context.Query(queryKeyFrom), "", ""))
}

// SubmitLogin exchanges the credentials for a session. The from location is
// carried along but the browser always lands on the dashboard.
func (handlers *WebHandlers) SubmitLogin(context *gin.Context) {
	store, ok := SessionFromContext(context)
	if !ok {
		context.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{jsonKeyError: renderErrorValue})
		return
	}
	email := strings.TrimSpace(context.PostForm(formKeyEmail))
	password := context.PostForm(formKeyPassword)
	from := context.PostForm(formKeyFrom)

	if loginErr := store.Login(context.Request.Context(), email, password); loginErr != nil {
		message := session.DefaultLoginFailureMessage
		var loginFailure *session.LoginError
		if errors.As(loginErr, &loginFailure) {
			message = loginFailure.Message
		}
		handlers.logger.Info(logEventLogin, zap.Error(loginErr))
		handlers.renderStandalone(context, http.StatusUnauthorized, handlers.login, handlers.loginData(from, email, message))
		return
	}
	context.Redirect(http.StatusSeeOther, DashboardPagePath)
}

// RenderRegister shows the registration form.
func (handlers *WebHandlers) RenderRegister(context *gin.Context) {
	handlers.renderStandalone(context, http.StatusOK, handlers.register, handlers.registerData("", "", ""))
}

// SubmitRegister creates an account and sends the browser to the login page
// after a short confirmation.
func (handlers *WebHandlers) SubmitRegister(context *gin.Context) {
	name := strings.TrimSpace(context.PostForm(formKeyName))
	email := strings.TrimSpace(context.PostForm(formKeyEmail))
	password := context.PostForm(formKeyPassword)
	confirmation := context.PostForm(formKeyConfirmPassword)

	if password != confirmation {
		handlers.renderStandalone(context, http.StatusBadRequest, handlers.register, handlers.registerData(name, email, registerPasswordMismatch))
		return
	}

	registerErr := handlers.backend.Register(context.Request.Context(), backend.Registration{Name: name, Email: email, Password: password})
	if registerErr != nil {
		message, found := backend.ServerMessage(registerErr)
		if !found {
			message = registerDefaultFailure
		}
		handlers.logger.Info(logEventRegister, zap.Error(registerErr))
		handlers.renderStandalone(context, http.StatusBadRequest, handlers.register, handlers.registerData(name, email, message))
		return
	}

	data := handlers.registerData("", "", "")
	data.Success = true
	data.SuccessMessage = registerSuccessMessage
	handlers.renderStandalone(context, http.StatusOK, handlers.register, data)
}

// Logout clears the session and its cached page, then goes to the login page.
func (handlers *WebHandlers) Logout(context *gin.Context) {
	if store, ok := SessionFromContext(context); ok {
		handlers.pages.Forget(store.Token())
		store.Logout()
	}
	context.Redirect(http.StatusSeeOther, LoginPagePath)
}

func (handlers *WebHandlers) loginData(from string, email string, message string) loginTemplateData {
	return loginTemplateData{
		Action:       LoginPagePath,
		RegisterPath: RegisterPagePath,
		Email:        email,
		From:         localRedirectTarget(from, ""),
		Error:        message,
		Version:      handlers.authPageVersion(),
	}
}

func (handlers *WebHandlers) registerData(name string, email string, message string) registerTemplateData {
	return registerTemplateData{
		Action:          RegisterPagePath,
		LoginPath:       LoginPagePath,
		Name:            name,
		Email:           email,
		Error:           message,
		RedirectSeconds: registerRedirectSeconds,
		Version:         handlers.authPageVersion(),
	}
}

func (handlers *WebHandlers) authPageVersion() string {
	if handlers.version == "" {
		return authPageDefaultVersion
	}
	return handlers.version
}
