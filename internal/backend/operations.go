package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MarkoPoloResearchLab/ultradash/internal/model"
)

const (
	pathLogin          = "/api/auth/login"
	pathRegister       = "/api/users/register"
	pathCurrentUser    = "/api/users/me"
	pathProjects       = "/api/projects"
	pathLeads          = "/api/leads"
	pathAnalytics      = "/api/analytics"
	pathCheckout       = "/api/stripe/create-checkout-session"
	pathPortal         = "/api/stripe/create-portal-session"
	queryKeyProjectID  = "projectId"
	queryKeyPage       = "page"
	queryKeyLimit      = "limit"
	operationLogin     = "login"
	operationRegister  = "register"
	operationMe        = "current_user"
	operationProjects  = "list_projects"
	operationCreate    = "create_project"
	operationRename    = "rename_project"
	operationLeads     = "list_leads"
	operationLead      = "update_lead"
	operationAnalytics = "analytics"
	operationCheckout  = "create_checkout_session"
	operationPortal    = "create_portal_session"
)

// ErrEmptyLoginToken is returned when a successful login answer carries no token.
var ErrEmptyLoginToken = errors.New("empty_login_token")

// Credentials are the login form values.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the sign-up form values.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LeadQuery scopes a leads listing. Page 0 omits the page parameter.
type LeadQuery struct {
	ProjectID string
	Page      int
	Limit     int
}

type tokenResponse struct {
	Token string `json:"token"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type checkoutRequest struct {
	PriceID string `json:"priceId"`
}

type redirectResponse struct {
	URL string `json:"url"`
}

// Login exchanges credentials for a session token.
func (client *Client) Login(ctx context.Context, credentials Credentials) (string, error) {
	var response tokenResponse
	requestErr := client.do(ctx, requestSpec{
		operation: operationLogin,
		method:    http.MethodPost,
		path:      pathLogin,
		body:      credentials,
		result:    &response,
	})
	if requestErr != nil {
		return "", requestErr
	}
	token := strings.TrimSpace(response.Token)
	if token == "" {
		return "", ErrEmptyLoginToken
	}
	return token, nil
}

// Register creates an account. The response body is ignored.
func (client *Client) Register(ctx context.Context, registration Registration) error {
	return client.do(ctx, requestSpec{
		operation: operationRegister,
		method:    http.MethodPost,
		path:      pathRegister,
		body:      registration,
	})
}

// CurrentUser fetches the profile of the token's owner.
func (client *Client) CurrentUser(ctx context.Context, token string) (model.User, error) {
	var user model.User
	requestErr := client.do(ctx, requestSpec{
		operation:    operationMe,
		method:       http.MethodGet,
		path:         pathCurrentUser,
		token:        token,
		authenticate: true,
		result:       &user,
	})
	return user, requestErr
}

// ListProjects fetches every project of the user in server order.
func (client *Client) ListProjects(ctx context.Context, token string) ([]model.Project, error) {
	var projects []model.Project
	requestErr := client.do(ctx, requestSpec{
		operation:    operationProjects,
		method:       http.MethodGet,
		path:         pathProjects,
		token:        token,
		authenticate: true,
		result:       &projects,
	})
	if projects == nil {
		projects = []model.Project{}
	}
	return projects, requestErr
}

// CreateProject creates a project and returns the stored record.
func (client *Client) CreateProject(ctx context.Context, token string, name string) (model.Project, error) {
	var project model.Project
	requestErr := client.do(ctx, requestSpec{
		operation:    operationCreate,
		method:       http.MethodPost,
		path:         pathProjects,
		token:        token,
		authenticate: true,
		body:         nameRequest{Name: name},
		result:       &project,
	})
	return project, requestErr
}

// RenameProject renames a project and returns the stored record.
func (client *Client) RenameProject(ctx context.Context, token string, projectID string, name string) (model.Project, error) {
	var project model.Project
	requestErr := client.do(ctx, requestSpec{
		operation:    operationRename,
		method:       http.MethodPut,
		path:         pathProjects + "/" + url.PathEscape(projectID),
		token:        token,
		authenticate: true,
		body:         nameRequest{Name: name},
		result:       &project,
	})
	return project, requestErr
}

// ListLeads fetches one page of leads for a project.
func (client *Client) ListLeads(ctx context.Context, token string, query LeadQuery) (model.LeadPage, error) {
	values := url.Values{}
	values.Set(queryKeyProjectID, query.ProjectID)
	if query.Page > 0 {
		values.Set(queryKeyPage, strconv.Itoa(query.Page))
	}
	if query.Limit > 0 {
		values.Set(queryKeyLimit, strconv.Itoa(query.Limit))
	}

	var page model.LeadPage
	requestErr := client.do(ctx, requestSpec{
		operation:    operationLeads,
		method:       http.MethodGet,
		path:         pathLeads,
		token:        token,
		authenticate: true,
		query:        values,
		result:       &page,
	})
	if page.Leads == nil {
		page.Leads = []model.Lead{}
	}
	return page, requestErr
}

// UpdateLead saves the editable lead fields and returns the stored record.
func (client *Client) UpdateLead(ctx context.Context, token string, leadID string, update model.LeadUpdate) (model.Lead, error) {
	var lead model.Lead
	requestErr := client.do(ctx, requestSpec{
		operation:    operationLead,
		method:       http.MethodPut,
		path:         pathLeads + "/" + url.PathEscape(leadID),
		token:        token,
		authenticate: true,
		body:         update,
		result:       &lead,
	})
	return lead, requestErr
}

// Analytics fetches the dashboard snapshot of a project.
func (client *Client) Analytics(ctx context.Context, token string, projectID string) (model.AnalyticsSnapshot, error) {
	values := url.Values{}
	values.Set(queryKeyProjectID, projectID)

	var snapshot model.AnalyticsSnapshot
	requestErr := client.do(ctx, requestSpec{
		operation:    operationAnalytics,
		method:       http.MethodGet,
		path:         pathAnalytics,
		token:        token,
		authenticate: true,
		query:        values,
		result:       &snapshot,
	})
	return snapshot, requestErr
}

// CreateCheckoutSession asks for the hosted checkout url of a price.
func (client *Client) CreateCheckoutSession(ctx context.Context, token string, priceID string) (string, error) {
	return client.requestRedirect(ctx, operationCheckout, pathCheckout, token, checkoutRequest{PriceID: priceID})
}

// CreatePortalSession asks for the hosted subscription management url.
func (client *Client) CreatePortalSession(ctx context.Context, token string) (string, error) {
	return client.requestRedirect(ctx, operationPortal, pathPortal, token, struct{}{})
}

func (client *Client) requestRedirect(ctx context.Context, operation string, path string, token string, body any) (string, error) {
	var response redirectResponse
	requestErr := client.do(ctx, requestSpec{
		operation:    operation,
		method:       http.MethodPost,
		path:         path,
		token:        token,
		authenticate: true,
		body:         body,
		result:       &response,
	})
	if requestErr != nil {
		return "", requestErr
	}
	redirectURL := strings.TrimSpace(response.URL)
	if redirectURL == "" {
		return "", ErrMissingRedirectURL
	}
	return redirectURL, nil
}
