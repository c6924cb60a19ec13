package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"

	"github.com/MarkoPoloResearchLab/ultradash/internal/model"
)

const (
	// DefaultCookieName names the cookie that holds the durable session key.
	DefaultCookieName       = "ultradash_session"
	minimumSecretBytes      = 32
	cookiePath              = "/"
	cookieMaxAgeSeconds     = 7 * 24 * 60 * 60
	vaultKeyToken           = "token"
	vaultKeyActiveProjectID = "active_project_id"
	vaultKeyActiveProject   = "active_project_name"
	errorMessageLoadVault   = "load session cookie"
	errorMessageSaveVault   = "save session cookie"
)

// ErrWeakSecret is returned when the cookie signing secret is too short.
var ErrWeakSecret = errors.New("session secret must be at least 32 bytes")

// VaultState is what survives between requests of one browser.
type VaultState struct {
	Token         string
	ActiveProject *model.Project
}

// Vault persists VaultState across requests.
type Vault interface {
	Load(request *http.Request) (VaultState, error)
	Save(writer http.ResponseWriter, request *http.Request, state VaultState) error
	Clear(writer http.ResponseWriter, request *http.Request) error
}

// CookieOptions tunes the session cookie.
type CookieOptions struct {
	Name   string
	Secure bool
}

// CookieVault keeps VaultState in a signed and encrypted cookie.
type CookieVault struct {
	store      *sessions.CookieStore
	cookieName string
}

// NewCookieVault derives signing and encryption keys from secret.
func NewCookieVault(secret []byte, options CookieOptions) (*CookieVault, error) {
	if len(secret) < minimumSecretBytes {
		return nil, ErrWeakSecret
	}
	cookieName := strings.TrimSpace(options.Name)
	if cookieName == "" {
		cookieName = DefaultCookieName
	}

	store := sessions.NewCookieStore(secret[:minimumSecretBytes], secret[len(secret)-minimumSecretBytes:])
	store.Options = &sessions.Options{
		Path:     cookiePath,
		MaxAge:   cookieMaxAgeSeconds,
		HttpOnly: true,
		Secure:   options.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &CookieVault{store: store, cookieName: cookieName}, nil
}

// Load decodes the cookie. A tampered or expired cookie yields an empty state and an error.
func (vault *CookieVault) Load(request *http.Request) (VaultState, error) {
	sessionInstance, loadErr := vault.store.Get(request, vault.cookieName)
	if loadErr != nil {
		return VaultState{}, fmt.Errorf("%s: %w", errorMessageLoadVault, loadErr)
	}

	state := VaultState{Token: stringValue(sessionInstance.Values[vaultKeyToken])}
	projectID := stringValue(sessionInstance.Values[vaultKeyActiveProjectID])
	if projectID != "" {
		state.ActiveProject = &model.Project{
			ID:   projectID,
			Name: stringValue(sessionInstance.Values[vaultKeyActiveProject]),
		}
	}
	return state, nil
}

// Save overwrites the cookie with state.
func (vault *CookieVault) Save(writer http.ResponseWriter, request *http.Request, state VaultState) error {
	sessionInstance, _ := vault.store.Get(request, vault.cookieName)
	sessionInstance.Values = map[interface{}]interface{}{}
	if state.Token != "" {
		sessionInstance.Values[vaultKeyToken] = state.Token
	}
	if state.ActiveProject != nil {
		sessionInstance.Values[vaultKeyActiveProjectID] = state.ActiveProject.ID
		sessionInstance.Values[vaultKeyActiveProject] = state.ActiveProject.Name
	}
	if saveErr := sessionInstance.Save(request, writer); saveErr != nil {
		return fmt.Errorf("%s: %w", errorMessageSaveVault, saveErr)
	}
	return nil
}

// Clear expires the cookie.
func (vault *CookieVault) Clear(writer http.ResponseWriter, request *http.Request) error {
	sessionInstance, _ := vault.store.Get(request, vault.cookieName)
	sessionInstance.Values = map[interface{}]interface{}{}
	sessionInstance.Options.MaxAge = -1
	if saveErr := sessionInstance.Save(request, writer); saveErr != nil {
		return fmt.Errorf("%s: %w", errorMessageSaveVault, saveErr)
	}
	return nil
}

func stringValue(value interface{}) string {
	text, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(text)
}
