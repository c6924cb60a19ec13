package httpapi

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ultradash/internal/session"
)

// AuthState is what the guard decides for a request.
type AuthState int

const (
	AuthStateChecking AuthState = iota
	AuthStateUnauthenticated
	AuthStateAuthenticated
)

const (
	DefaultValidationWait = 5 * time.Second

	checkingMessage        = "Verificando autenticação..."
	checkingRefreshSeconds = 1

	authErrorUnauthorized   = "unauthorized"
	authErrorSessionPending = "session_checking"

	logEventRenderChecking = "render_checking"
	logEventLoadProjects   = "load_projects"
)

func (state AuthState) String() string {
	switch state {
	case AuthStateChecking:
		return "checking"
	case AuthStateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// AuthStateOf derives the guard state from a session snapshot.
func AuthStateOf(snapshot session.Session) AuthState {
	if snapshot.Token == "" {
		return AuthStateUnauthenticated
	}
	if snapshot.AuthLoading {
		return AuthStateChecking
	}
	if snapshot.User == nil {
		return AuthStateUnauthenticated
	}
	return AuthStateAuthenticated
}

type checkingTemplateData struct {
	Message        string
	RefreshSeconds int
}

// AuthGuard gates the dashboard on a validated session and prepares the
// project list every guarded page shares.
type AuthGuard struct {
	logger           *zap.Logger
	validationWait   time.Duration
	checkingTemplate *template.Template
}

// NewAuthGuard builds a guard that waits at most validationWait for the
// current-user check before answering with the checking page.
func NewAuthGuard(logger *zap.Logger, validationWait time.Duration) *AuthGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validationWait <= 0 {
		validationWait = DefaultValidationWait
	}
	return &AuthGuard{
		logger:           logger,
		validationWait:   validationWait,
		checkingTemplate: template.Must(template.New("checking").Parse(checkingTemplateHTML)),
	}
}

// RequireAuthenticatedWeb redirects anonymous browsers to the login page with
// the requested location in ?from=.
func (guard *AuthGuard) RequireAuthenticatedWeb() gin.HandlerFunc {
	return func(context *gin.Context) {
		store, ok := SessionFromContext(context)
		if !ok {
			context.Redirect(http.StatusFound, loginLocation(context.Request.URL.RequestURI()))
			context.Abort()
			return
		}

		switch guard.resolve(context.Request.Context(), store) {
		case AuthStateChecking:
			guard.renderChecking(context)
			context.Abort()
			return
		case AuthStateUnauthenticated:
			context.Redirect(http.StatusFound, loginLocation(context.Request.URL.RequestURI()))
			context.Abort()
			return
		}

		guard.prepareProjects(context.Request.Context(), store)
		context.Next()
	}
}

// RequireAuthenticatedJSON answers 401 for anonymous callers.
func (guard *AuthGuard) RequireAuthenticatedJSON() gin.HandlerFunc {
	return func(context *gin.Context) {
		store, ok := SessionFromContext(context)
		if !ok {
			context.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{jsonKeyError: authErrorUnauthorized})
			return
		}

		switch guard.resolve(context.Request.Context(), store) {
		case AuthStateChecking:
			context.Header("Retry-After", "1")
			context.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: authErrorSessionPending})
			return
		case AuthStateUnauthenticated:
			context.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{jsonKeyError: authErrorUnauthorized})
			return
		}

		guard.prepareProjects(context.Request.Context(), store)
		context.Next()
	}
}

func (guard *AuthGuard) resolve(ctx context.Context, store *session.Store) AuthState {
	snapshot := store.Snapshot()
	if snapshot.Token == "" || !snapshot.AuthLoading {
		return AuthStateOf(snapshot)
	}
	validationContext, cancel := context.WithTimeout(ctx, guard.validationWait)
	defer cancel()
	if validateErr := store.ValidateSession(validationContext); errors.Is(validateErr, session.ErrValidationInterrupted) {
		return AuthStateChecking
	}
	return AuthStateOf(store.Snapshot())
}

func (guard *AuthGuard) prepareProjects(ctx context.Context, store *session.Store) {
	if _, loadErr := store.LoadProjects(ctx); loadErr != nil {
		guard.logger.Debug(logEventLoadProjects, zap.Error(loadErr))
	}
	store.EnsureActiveProject()
}

func (guard *AuthGuard) renderChecking(context *gin.Context) {
	var buffer bytes.Buffer
	data := checkingTemplateData{Message: checkingMessage, RefreshSeconds: checkingRefreshSeconds}
	if executeErr := guard.checkingTemplate.Execute(&buffer, data); executeErr != nil {
		guard.logger.Error(logEventRenderChecking, zap.Error(executeErr))
		context.String(http.StatusOK, checkingMessage)
		return
	}
	context.Header("Cache-Control", "no-store")
	context.Data(http.StatusOK, htmlContentType, buffer.Bytes())
}

func loginLocation(requestedURI string) string {
	if requestedURI == "" {
		return LoginPagePath
	}
	return LoginPagePath + "?" + url.Values{queryKeyFrom: []string{requestedURI}}.Encode()
}
