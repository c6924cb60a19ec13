package httpapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ultradash/internal/backend"
	"github.com/MarkoPoloResearchLab/ultradash/internal/capture"
	"github.com/MarkoPoloResearchLab/ultradash/internal/httpapi"
	"github.com/MarkoPoloResearchLab/ultradash/internal/leads"
	"github.com/MarkoPoloResearchLab/ultradash/internal/model"
	"github.com/MarkoPoloResearchLab/ultradash/internal/session"
)

const (
	testSessionSecret  = "0123456789abcdef0123456789abcdef"
	testToken          = "token-1"
	testEmail          = "ana@example.com"
	testPassword       = "segredo"
	testCaptureBaseURL = "http://capture.example"
	testVersion        = "1.2.3"
)

var testNow = time.Date(2026, time.October, 14, 9, 30, 0, 0, time.UTC)

type stubBackend struct {
	mutex sync.Mutex

	user       model.User
	userErr    error
	userGate   chan struct{}
	loginErr   error
	projects   []model.Project
	projectErr error

	registerErr    error
	registrations  []backend.Registration
	createErr      error
	createdNames   []string
	renameErr      error
	renamed        map[string]string
	leadPage       model.LeadPage
	leadErr        error
	leadQueries    []backend.LeadQuery
	updateErr      error
	updates        map[string]model.LeadUpdate
	analytics      model.AnalyticsSnapshot
	analyticsErr   error
	checkoutURL    string
	checkoutErr    error
	checkoutPrices []string
	portalURL      string
	portalErr      error
	userCalls      int
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		user:     model.User{Name: "Ana", Email: testEmail, Plan: model.PlanFree, SubscriptionStatus: model.SubscriptionStatusInactive, SiteID: "site-42"},
		projects: []model.Project{{ID: "p1", Name: "Site A"}, {ID: "p2", Name: "Loja B"}},
		renamed:  make(map[string]string),
		updates:  make(map[string]model.LeadUpdate),
	}
}

func (stub *stubBackend) Login(ctx context.Context, credentials backend.Credentials) (string, error) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	if stub.loginErr != nil {
		return "", stub.loginErr
	}
	return testToken, nil
}

func (stub *stubBackend) CurrentUser(ctx context.Context, token string) (model.User, error) {
	stub.mutex.Lock()
	gate := stub.userGate
	stub.userCalls++
	stub.mutex.Unlock()
	if gate != nil {
		<-gate
	}
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	return stub.user, stub.userErr
}

func (stub *stubBackend) ListProjects(ctx context.Context, token string) ([]model.Project, error) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	if stub.projectErr != nil {
		return nil, stub.projectErr
	}
	projects := make([]model.Project, len(stub.projects))
	copy(projects, stub.projects)
	return projects, nil
}

func (stub *stubBackend) Register(ctx context.Context, registration backend.Registration) error {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	stub.registrations = append(stub.registrations, registration)
	return stub.registerErr
}

func (stub *stubBackend) CreateProject(ctx context.Context, token string, name string) (model.Project, error) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	stub.createdNames = append(stub.createdNames, name)
	if stub.createErr != nil {
		return model.Project{}, stub.createErr
	}
	return model.Project{ID: "p-new", Name: name}, nil
}

func (stub *stubBackend) RenameProject(ctx context.Context, token string, projectID string, name string) (model.Project, error) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	stub.renamed[projectID] = name
	if stub.renameErr != nil {
		return model.Project{}, stub.renameErr
	}
	return model.Project{ID: projectID, Name: name}, nil
}

func (stub *stubBackend) ListLeads(ctx context.Context, token string, query backend.LeadQuery) (model.LeadPage, error) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	stub.leadQueries = append(stub.leadQueries, query)
	if stub.leadErr != nil {
		return model.LeadPage{}, stub.leadErr
	}
	page := stub.leadPage
	page.Leads = append([]model.Lead(nil), stub.leadPage.Leads...)
	return page, nil
}

func (stub *stubBackend) UpdateLead(ctx context.Context, token string, leadID string, update model.LeadUpdate) (model.Lead, error) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	stub.updates[leadID] = update
	if stub.updateErr != nil {
		return model.Lead{}, stub.updateErr
	}
	for _, lead := range stub.leadPage.Leads {
		if lead.ID == leadID {
			lead.Name = update.Name
			lead.City = update.City
			lead.Status = update.Status
			if update.Comments != nil {
				lead.Comments = *update.Comments
			}
			return lead, nil
		}
	}
	return model.Lead{}, &backend.APIError{Status: http.StatusNotFound}
}

func (stub *stubBackend) Analytics(ctx context.Context, token string, projectID string) (model.AnalyticsSnapshot, error) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	return stub.analytics, stub.analyticsErr
}

func (stub *stubBackend) CreateCheckoutSession(ctx context.Context, token string, priceID string) (string, error) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	stub.checkoutPrices = append(stub.checkoutPrices, priceID)
	return stub.checkoutURL, stub.checkoutErr
}

func (stub *stubBackend) CreatePortalSession(ctx context.Context, token string) (string, error) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	return stub.portalURL, stub.portalErr
}

func (stub *stubBackend) leadQueryCount() int {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	return len(stub.leadQueries)
}

func (stub *stubBackend) lastLeadQuery() backend.LeadQuery {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	return stub.leadQueries[len(stub.leadQueries)-1]
}

type testHarness struct {
	backend *stubBackend
	vault   *session.CookieVault
	manager *session.Manager
	web     *httpapi.WebHandlers
	router  *gin.Engine
	cookie  *http.Cookie
}

func newTestHarness(testingT *testing.T, stub *stubBackend) *testHarness {
	return newTestHarnessWithWait(testingT, stub, httpapi.DefaultValidationWait)
}

func newTestHarnessWithWait(testingT *testing.T, stub *stubBackend, validationWait time.Duration) *testHarness {
	testingT.Helper()
	gin.SetMode(gin.TestMode)

	vault, vaultErr := session.NewCookieVault([]byte(testSessionSecret), session.CookieOptions{})
	require.NoError(testingT, vaultErr)
	manager, managerErr := session.NewManager(session.ManagerConfig{Vault: vault, Backend: stub, Logger: zap.NewNop()})
	require.NoError(testingT, managerErr)

	catalog, catalogErr := model.DefaultPlanCatalog()
	require.NoError(testingT, catalogErr)

	webHandlers, webErr := httpapi.NewWebHandlers(httpapi.WebConfig{
		Backend:  stub,
		Pages:    leads.NewPageStore(time.Minute, nil),
		Exporter: leads.NewExporter(stub, time.UTC, nil),
		Scripts:  capture.NewGenerator(testCaptureBaseURL, ""),
		Plans:    catalog,
		Location: time.UTC,
		Clock:    func() time.Time { return testNow },
		Version:  testVersion,
		Logger:   zap.NewNop(),
	})
	require.NoError(testingT, webErr)

	jsonHandlers, jsonErr := httpapi.NewJSONHandlers(stub, capture.NewGenerator(testCaptureBaseURL, ""), zap.NewNop())
	require.NoError(testingT, jsonErr)

	guard := httpapi.NewAuthGuard(zap.NewNop(), validationWait)
	sessionMiddleware := httpapi.SessionMiddleware(manager)

	router := gin.New()
	router.Use(httpapi.RequestLogger(zap.NewNop()))
	public := router.Group("/")
	public.Use(sessionMiddleware)
	public.GET(httpapi.LoginPagePath, webHandlers.RenderLogin)
	public.POST(httpapi.LoginPagePath, webHandlers.SubmitLogin)
	public.GET(httpapi.RegisterPagePath, webHandlers.RenderRegister)
	public.POST(httpapi.RegisterPagePath, webHandlers.SubmitRegister)
	public.POST(httpapi.LogoutPath, webHandlers.Logout)

	guarded := router.Group("/")
	guarded.Use(sessionMiddleware, guard.RequireAuthenticatedWeb())
	guarded.GET(httpapi.DashboardPagePath, webHandlers.RenderDashboard)
	guarded.GET(httpapi.LeadsPagePath, webHandlers.RenderLeads)
	guarded.POST(httpapi.LeadSavePath, webHandlers.SaveLead)
	guarded.GET(httpapi.LeadsExportPagePath, webHandlers.ExportCurrentPage)
	guarded.GET(httpapi.LeadsExportAllPath, webHandlers.ExportAllLeads)
	guarded.GET(httpapi.ProjectsPagePath, webHandlers.RenderProjects)
	guarded.POST(httpapi.ProjectsPagePath, webHandlers.CreateProject)
	guarded.POST(httpapi.ProjectRenamePath, webHandlers.RenameProject)
	guarded.POST(httpapi.ProjectSelectPath, webHandlers.SelectProject)
	guarded.GET(httpapi.PlansPagePath, webHandlers.RenderPlans)
	guarded.POST(httpapi.PlansCheckoutPath, webHandlers.StartCheckout)
	guarded.POST(httpapi.PlansPortalPath, webHandlers.OpenPortal)
	guarded.GET(httpapi.SettingsPagePath, webHandlers.RenderSettings)

	api := router.Group("/api")
	api.Use(sessionMiddleware, guard.RequireAuthenticatedJSON())
	api.GET(httpapi.APISessionPath, jsonHandlers.Session)
	api.GET(httpapi.APIProjectsPath, jsonHandlers.Projects)
	api.GET(httpapi.APIScriptPath, jsonHandlers.Script)
	api.GET(httpapi.APILeadsPath, jsonHandlers.Leads)
	api.GET(httpapi.APIAnalyticsPath, jsonHandlers.Analytics)

	return &testHarness{backend: stub, vault: vault, manager: manager, web: webHandlers, router: router}
}

// do sends a request carrying the harness cookie and keeps whatever cookie
// the response sets.
func (harness *testHarness) do(testingT *testing.T, method string, target string, form url.Values) *httptest.ResponseRecorder {
	testingT.Helper()
	var request *http.Request
	if form != nil {
		request = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		request = httptest.NewRequest(method, target, nil)
	}
	if harness.cookie != nil {
		request.AddCookie(harness.cookie)
	}
	recorder := httptest.NewRecorder()
	harness.router.ServeHTTP(recorder, request)

	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name != session.DefaultCookieName {
			continue
		}
		if cookie.MaxAge < 0 || cookie.Value == "" {
			harness.cookie = nil
			continue
		}
		harness.cookie = cookie
	}
	return recorder
}

func (harness *testHarness) login(testingT *testing.T) {
	testingT.Helper()
	recorder := harness.do(testingT, http.MethodPost, httpapi.LoginPagePath, url.Values{"email": {testEmail}, "password": {testPassword}})
	require.Equal(testingT, http.StatusSeeOther, recorder.Code)
	require.NotNil(testingT, harness.cookie)
}

// plantToken stores a token in the cookie without validating it.
func (harness *testHarness) plantToken(testingT *testing.T, token string) {
	testingT.Helper()
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(testingT, harness.vault.Save(recorder, request, session.VaultState{Token: token}))
	cookies := recorder.Result().Cookies()
	require.NotEmpty(testingT, cookies)
	harness.cookie = cookies[len(cookies)-1]
}

func sampleLeads() []model.Lead {
	return []model.Lead{
		{ID: "l1", Name: "Bruno", Email: "bruno@example.com", Phone: "11999990000", City: "Santos", Status: model.LeadStatusNew, ProjectID: "p1", ReceivedAt: "2026-10-13T12:05:00Z"},
		{ID: "l2", Name: "", Email: "carla@example.com", Phone: "", Status: model.LeadStatusWon, Comments: "[01/10/2026, 10:00:00] ligar depois", ProjectID: "p9", ReceivedAt: "bad"},
	}
}
