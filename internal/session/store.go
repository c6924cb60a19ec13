// Package session owns the per-browser login state: the durable token, the
// cached profile and projects of that token, and the active project selection.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/MarkoPoloResearchLab/ultradash/internal/backend"
	"github.com/MarkoPoloResearchLab/ultradash/internal/cache"
	"github.com/MarkoPoloResearchLab/ultradash/internal/model"
	"github.com/MarkoPoloResearchLab/ultradash/internal/observability"
)

const (
	// DefaultLoginFailureMessage is shown when the API gives no reason.
	DefaultLoginFailureMessage = "Falha no login. Verifique suas credenciais."

	DefaultCacheTTL = 5 * time.Minute

	CacheNameUsers    = "users"
	CacheNameProjects = "projects"

	validationResultValid   = "valid"
	validationResultInvalid = "invalid"

	logEventLoadSession     = "load_session"
	logEventSaveSession     = "save_session"
	logEventClearSession    = "clear_session"
	logEventValidateSession = "validate_session"
	logEventLoadProjects    = "load_projects"
	logFieldReason          = "reason"

	errorMessageMissingVault   = "session vault is required"
	errorMessageMissingBackend = "session backend is required"
)

var (
	// ErrNoSession is returned by operations that need a token when there is none.
	ErrNoSession = errors.New("no_session")
	// ErrValidationInterrupted means the request ended before validation completed.
	ErrValidationInterrupted = errors.New("validation_interrupted")
)

// LoginError carries the message to show on the login form.
type LoginError struct {
	Message string
	cause   error
}

func (loginError *LoginError) Error() string {
	return loginError.Message
}

func (loginError *LoginError) Unwrap() error {
	return loginError.cause
}

// Backend is the part of the API the session depends on.
type Backend interface {
	Login(ctx context.Context, credentials backend.Credentials) (string, error)
	CurrentUser(ctx context.Context, token string) (model.User, error)
	ListProjects(ctx context.Context, token string) ([]model.Project, error)
}

// Session is a snapshot of the login state of one browser.
type Session struct {
	Token         string
	User          *model.User
	AuthLoading   bool
	Projects      []model.Project
	ActiveProject *model.Project
}

// ManagerConfig configures a Manager. Vault and Backend are required.
type ManagerConfig struct {
	Vault    Vault
	Backend  Backend
	CacheTTL time.Duration
	Clock    cache.Clock
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// Manager is created once at the application root and opens a Store per request.
type Manager struct {
	vault       Vault
	backend     Backend
	users       *cache.InMemory[model.User]
	projects    *cache.InMemory[[]model.Project]
	validations singleflight.Group
	now         cache.Clock
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewManager builds a Manager with its token-keyed caches.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Vault == nil {
		return nil, errors.New(errorMessageMissingVault)
	}
	if config.Backend == nil {
		return nil, errors.New(errorMessageMissingBackend)
	}
	cacheTTL := config.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		vault:    config.Vault,
		backend:  config.Backend,
		users:    cache.NewWithClock[model.User](cacheTTL, clock),
		projects: cache.NewWithClock[[]model.Project](cacheTTL, clock),
		now:      clock,
		metrics:  config.Metrics,
		logger:   logger,
	}, nil
}

// UserCache exposes the profile cache for periodic purging.
func (manager *Manager) UserCache() *cache.InMemory[model.User] {
	return manager.users
}

// ProjectCache exposes the project cache for periodic purging.
func (manager *Manager) ProjectCache() *cache.InMemory[[]model.Project] {
	return manager.projects
}

// Open loads the durable state of the request's browser. A token without a
// cached profile starts in the loading state until ValidateSession runs.
func (manager *Manager) Open(writer http.ResponseWriter, request *http.Request) *Store {
	vaultState, loadErr := manager.vault.Load(request)
	if loadErr != nil {
		manager.logger.Warn(logEventLoadSession, zap.Error(loadErr))
		vaultState = VaultState{}
	}

	state := Session{
		Token:         vaultState.Token,
		ActiveProject: vaultState.ActiveProject,
		Projects:      []model.Project{},
	}
	if state.Token != "" {
		if user, found := manager.users.Get(state.Token); found {
			state.User = &user
		} else {
			state.AuthLoading = true
		}
		if projects, found := manager.projects.Get(state.Token); found {
			state.Projects = copyProjects(projects)
		}
	}

	return &Store{
		manager: manager,
		writer:  writer,
		request: request,
		state:   state,
	}
}

func (manager *Manager) forget(token string) {
	if token == "" {
		return
	}
	manager.users.Delete(token)
	manager.projects.Delete(token)
}

func (manager *Manager) lookupUser(ctx context.Context, token string) (model.User, error) {
	if user, found := manager.users.Get(token); found {
		manager.metrics.IncrCacheHit(CacheNameUsers)
		return user, nil
	}
	manager.metrics.IncrCacheMiss(CacheNameUsers)

	detachedContext := context.WithoutCancel(ctx)
	resultChannel := manager.validations.DoChan(token, func() (interface{}, error) {
		user, fetchErr := manager.backend.CurrentUser(detachedContext, token)
		if fetchErr != nil {
			return nil, fetchErr
		}
		manager.users.SetWithTTL(token, user, cacheLifetime(token, manager.users.TTL(), manager.now()))
		return user, nil
	})

	select {
	case <-ctx.Done():
		return model.User{}, ErrValidationInterrupted
	case result := <-resultChannel:
		if result.Err != nil {
			return model.User{}, result.Err
		}
		return result.Val.(model.User), nil
	}
}

// Store is the session of one request. It is safe for concurrent use.
type Store struct {
	manager *Manager
	writer  http.ResponseWriter
	request *http.Request
	mutex   sync.Mutex
	state   Session
}

// Snapshot copies the current state.
func (store *Store) Snapshot() Session {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	snapshot := store.state
	snapshot.Projects = copyProjects(store.state.Projects)
	if store.state.User != nil {
		user := *store.state.User
		snapshot.User = &user
	}
	if store.state.ActiveProject != nil {
		activeProject := *store.state.ActiveProject
		snapshot.ActiveProject = &activeProject
	}
	return snapshot
}

// Token returns the bearer token, empty when logged out.
func (store *Store) Token() string {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.state.Token
}

// Login exchanges credentials for a token, persists it and validates it.
// A rejected login leaves the existing session untouched.
func (store *Store) Login(ctx context.Context, email string, password string) error {
	token, loginErr := store.manager.backend.Login(ctx, backend.Credentials{
		Email:    strings.TrimSpace(email),
		Password: password,
	})
	if loginErr != nil {
		message, found := backend.ServerMessage(loginErr)
		if !found {
			message = DefaultLoginFailureMessage
		}
		return &LoginError{Message: message, cause: loginErr}
	}

	store.mutex.Lock()
	if store.state.Token != token {
		store.manager.forget(store.state.Token)
	}
	store.state = Session{Token: token, Projects: []model.Project{}}
	store.persistLocked()
	store.mutex.Unlock()

	if validateErr := store.ValidateSession(ctx); validateErr != nil {
		return &LoginError{Message: DefaultLoginFailureMessage, cause: validateErr}
	}
	return nil
}

// Logout clears the durable token and every in-memory field. It never fails.
func (store *Store) Logout() {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.clearLocked()
}

// ValidateSession checks the token against the current-user endpoint. Any
// failure clears the session like Logout. AuthLoading stays true only while
// the check runs, or when the request ended before it finished.
func (store *Store) ValidateSession(ctx context.Context) error {
	store.mutex.Lock()
	token := store.state.Token
	if token == "" {
		store.state.AuthLoading = false
		store.mutex.Unlock()
		return ErrNoSession
	}
	store.state.AuthLoading = true
	store.mutex.Unlock()

	user, validateErr := store.manager.lookupUser(ctx, token)

	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.state.Token != token {
		return ErrNoSession
	}
	if errors.Is(validateErr, ErrValidationInterrupted) {
		return validateErr
	}
	if validateErr != nil {
		store.manager.metrics.IncrSessionValidation(validationResultInvalid)
		store.manager.logger.Info(logEventValidateSession, zap.String(logFieldReason, validateErr.Error()))
		store.clearLocked()
		return validateErr
	}
	store.manager.metrics.IncrSessionValidation(validationResultValid)
	store.state.User = &user
	store.state.AuthLoading = false
	return nil
}

// SetProjects replaces the project list.
func (store *Store) SetProjects(projects []model.Project) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	store.state.Projects = copyProjects(projects)
	if store.state.Token != "" {
		store.manager.projects.SetWithTTL(store.state.Token, copyProjects(projects), store.cacheLifetimeLocked())
	}
}

// SetActiveProject replaces the selection and persists it.
func (store *Store) SetActiveProject(project model.Project) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	store.state.ActiveProject = &project
	store.persistLocked()
}

// LoadProjects returns the cached list of the token, fetching it when the
// entry is missing or expired.
func (store *Store) LoadProjects(ctx context.Context) ([]model.Project, error) {
	token := store.Token()
	if token == "" {
		return nil, ErrNoSession
	}
	if projects, found := store.manager.projects.Get(token); found {
		store.manager.metrics.IncrCacheHit(CacheNameProjects)
		store.mutex.Lock()
		store.state.Projects = copyProjects(projects)
		store.mutex.Unlock()
		return copyProjects(projects), nil
	}
	store.manager.metrics.IncrCacheMiss(CacheNameProjects)

	projects, fetchErr := store.manager.backend.ListProjects(ctx, token)
	if fetchErr != nil {
		store.manager.logger.Warn(logEventLoadProjects, zap.Error(fetchErr))
		return nil, fetchErr
	}
	store.SetProjects(projects)
	return copyProjects(projects), nil
}

// AppendProject adds a created project to the list and its cache entry.
func (store *Store) AppendProject(project model.Project) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	store.state.Projects = append(copyProjects(store.state.Projects), project)
	if store.state.Token != "" {
		store.manager.projects.Update(store.state.Token, func(current []model.Project) []model.Project {
			return append(copyProjects(current), project)
		})
	}
}

// ReplaceProject swaps a renamed project by id, including the active selection.
func (store *Store) ReplaceProject(project model.Project) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	store.state.Projects, _ = model.ReplaceProjectByID(store.state.Projects, project)
	if store.state.Token != "" {
		store.manager.projects.Update(store.state.Token, func(current []model.Project) []model.Project {
			replaced, _ := model.ReplaceProjectByID(current, project)
			return replaced
		})
	}
	if store.state.ActiveProject != nil && store.state.ActiveProject.ID == project.ID {
		renamed := project
		store.state.ActiveProject = &renamed
		store.persistLocked()
	}
}

// EnsureActiveProject applies the default selection once projects are known
// and persists it when it changed.
func (store *Store) EnsureActiveProject() model.Project {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	activeProject := EnsureActiveProject(store.state.Projects, store.state.ActiveProject)
	if store.state.ActiveProject == nil || *store.state.ActiveProject != activeProject {
		store.state.ActiveProject = &activeProject
		store.persistLocked()
	}
	return activeProject
}

// SelectProject switches the active project; unknown ids are ignored.
func (store *Store) SelectProject(projectID string) bool {
	store.mutex.Lock()
	projects := copyProjects(store.state.Projects)
	store.mutex.Unlock()

	project, found := SelectProject(projects, projectID)
	if !found {
		return false
	}
	store.SetActiveProject(project)
	return true
}

func (store *Store) cacheLifetimeLocked() time.Duration {
	return cacheLifetime(store.state.Token, store.manager.projects.TTL(), store.manager.now())
}

func (store *Store) persistLocked() {
	vaultState := VaultState{Token: store.state.Token, ActiveProject: store.state.ActiveProject}
	if saveErr := store.manager.vault.Save(store.writer, store.request, vaultState); saveErr != nil {
		store.manager.logger.Warn(logEventSaveSession, zap.Error(saveErr))
	}
}

func (store *Store) clearLocked() {
	store.manager.forget(store.state.Token)
	store.state = Session{Projects: []model.Project{}}
	if clearErr := store.manager.vault.Clear(store.writer, store.request); clearErr != nil {
		store.manager.logger.Warn(logEventClearSession, zap.Error(clearErr))
	}
}

func copyProjects(projects []model.Project) []model.Project {
	copied := make([]model.Project, len(projects))
	copy(copied, projects)
	return copied
}
