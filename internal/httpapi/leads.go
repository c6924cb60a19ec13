package httpapi

import (
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ultradash/internal/backend"
	"github.com/MarkoPoloResearchLab/ultradash/internal/leads"
	"github.com/MarkoPoloResearchLab/ultradash/internal/model"
	"github.com/MarkoPoloResearchLab/ultradash/internal/session"
)

const (
	leadsSubtitlePrefix     = "Exibindo leads para: "
	leadsSubtitleNoProject  = "Selecione um projeto para começar"
	leadsEmptyText          = "Nenhum lead capturado para este projeto ainda."
	leadsEmptyNoProjectText = "Selecione um projeto no menu superior."
	leadsMissingValue       = "N/A"
	leadsNoComments         = "Nenhum comentário."
	leadsUpdateFailed       = "Falha ao atualizar o lead."
	leadsExportFailedValue  = "export_failed"

	formKeyLeadName    = "nome"
	formKeyLeadCity    = "cidade"
	formKeyLeadStatus  = "status"
	formKeyLeadComment = "novo_comentario"

	logEventFetchLeads  = "fetch_leads"
	logEventUpdateLead  = "update_lead"
	logEventExportLeads = "export_leads"
)

type leadRow struct {
	ID          string
	ReceivedAt  string
	Status      string
	Name        string
	Email       string
	Phone       string
	ProjectName string
	Href        string
}

type pageSizeOption struct {
	Value    int
	Selected bool
}

type statusOption struct {
	Value    string
	Label    string
	Selected bool
}

type leadModalView struct {
	Title       string
	Action      string
	CloseHref   string
	Email       string
	Phone       string
	CommentLog  string
	ContactText string
	Form        leads.Form
	Statuses    []statusOption
	Page        int
	Limit       int
}

type leadsContent struct {
	Subtitle       string
	EmptyText      string
	Rows           []leadRow
	Pagination     leads.Pagination
	PageSizes      []pageSizeOption
	ListPath       string
	PreviousHref   string
	NextHref       string
	ExportPageHref string
	ExportAllHref  string
	Exporting      bool
	Modal          *leadModalView
}

// RenderLeads fetches the requested page of the active project. With ?lead=
// or ?cached=1 the rows already cached for the same query are reused.
func (handlers *WebHandlers) RenderLeads(context *gin.Context) {
	store, ok := SessionFromContext(context)
	if !ok {
		context.Redirect(http.StatusFound, LoginPagePath)
		return
	}
	project := activeProject(store)
	query := backend.LeadQuery{
		ProjectID: project.ID,
		Page:      leads.NormalizePage(queryInt(context, queryKeyPage)),
		Limit:     leads.NormalizePageSize(queryInt(context, queryKeyLimit)),
	}
	selectedLeadID := context.Query(queryKeyLead)
	reuseCache := selectedLeadID != "" || context.Query(queryKeyCached) == "1"

	current, found := handlers.pages.Recall(store.Token())
	if !reuseCache || !found || current.Query != query {
		current = leads.CurrentPage{Query: query, Page: model.LeadPage{Leads: []model.Lead{}}}
		fetched, fetchErr := handlers.backend.ListLeads(context.Request.Context(), store.Token(), query)
		if fetchErr != nil {
			handlers.logger.Warn(logEventFetchLeads, zap.String("project_id", project.ID), zap.Error(fetchErr))
		} else {
			current.Page = fetched
			handlers.pages.Remember(store.Token(), current)
		}
	}

	content := handlers.leadsContent(store, project, current)
	if selectedLeadID != "" {
		if lead, exists := findLead(current.Page.Leads, selectedLeadID); exists {
			content.Modal = handlers.leadModal(lead, leads.FormFromLead(lead), query)
		}
	}
	handlers.renderPage(context, http.StatusOK, pageKeyLeads, pageTitleLeads, LeadsPagePath, "", content)
}

// SaveLead applies the modal form. Success swaps the returned record into the
// cached page; failure re-renders the open modal with the typed values.
func (handlers *WebHandlers) SaveLead(context *gin.Context) {
	store, ok := SessionFromContext(context)
	if !ok {
		context.Redirect(http.StatusFound, LoginPagePath)
		return
	}
	query := backend.LeadQuery{
		Page:  leads.NormalizePage(formInt(context, queryKeyPage)),
		Limit: leads.NormalizePageSize(formInt(context, queryKeyLimit)),
	}
	current, found := handlers.pages.Recall(store.Token())
	if found {
		query.ProjectID = current.Query.ProjectID
	}
	lead, exists := findLead(current.Page.Leads, context.Param(paramKeyID))
	if !found || !exists {
		context.Redirect(http.StatusSeeOther, leadsHref(query, false))
		return
	}

	status, _ := model.ParseLeadStatus(context.PostForm(formKeyLeadStatus))
	form := leads.Form{
		Name:       context.PostForm(formKeyLeadName),
		City:       context.PostForm(formKeyLeadCity),
		Status:     status,
		NewComment: context.PostForm(formKeyLeadComment),
	}
	saved, saveErr := leads.SaveLead(context.Request.Context(), handlers.backend, store.Token(), lead, form, handlers.now().In(handlers.location))
	if saveErr != nil {
		handlers.logger.Warn(logEventUpdateLead, zap.String("lead_id", lead.ID), zap.Error(saveErr))
		content := handlers.leadsContent(store, activeProject(store), current)
		content.Modal = handlers.leadModal(lead, form, current.Query)
		handlers.renderPage(context, http.StatusBadGateway, pageKeyLeads, pageTitleLeads, LeadsPagePath, leadsUpdateFailed, content)
		return
	}

	handlers.pages.ReplaceLead(store.Token(), saved)
	context.Redirect(http.StatusSeeOther, leadsHref(current.Query, true))
}

// ExportCurrentPage downloads the cached rows. Nothing cached answers 204.
func (handlers *WebHandlers) ExportCurrentPage(context *gin.Context) {
	store, ok := SessionFromContext(context)
	if !ok {
		context.Redirect(http.StatusFound, LoginPagePath)
		return
	}
	project := activeProject(store)
	current, found := handlers.pages.Recall(store.Token())
	if !found || current.Query.ProjectID != project.ID {
		current = leads.CurrentPage{}
	}
	file, exportErr := leads.ExportPage(current, project, store.Snapshot().Projects, handlers.location)
	handlers.exporter.RecordPageExport(exportErr)
	handlers.writeExport(context, file, exportErr)
}

// ExportAllLeads downloads every lead of the active project.
func (handlers *WebHandlers) ExportAllLeads(context *gin.Context) {
	store, ok := SessionFromContext(context)
	if !ok {
		context.Redirect(http.StatusFound, LoginPagePath)
		return
	}
	file, exportErr := handlers.exporter.ExportAll(context.Request.Context(), store.Token(), activeProject(store), store.Snapshot().Projects)
	handlers.writeExport(context, file, exportErr)
}

func (handlers *WebHandlers) writeExport(context *gin.Context, file leads.File, exportErr error) {
	switch {
	case errors.Is(exportErr, leads.ErrEmptyExport):
		context.Status(http.StatusNoContent)
		return
	case exportErr != nil:
		handlers.logger.Warn(logEventExportLeads, zap.Error(exportErr))
		context.AbortWithStatusJSON(http.StatusBadGateway, gin.H{jsonKeyError: leadsExportFailedValue})
		return
	}
	context.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename}))
	context.Data(http.StatusOK, csvContentType, file.Data)
}

func (handlers *WebHandlers) leadsContent(store *session.Store, project model.Project, current leads.CurrentPage) leadsContent {
	projects := store.Snapshot().Projects
	query := current.Query
	currentPage := current.Page.CurrentPage
	if currentPage < 1 {
		currentPage = query.Page
	}
	pagination := leads.NewPagination(currentPage, current.Page.TotalPages)
	pageQuery := backend.LeadQuery{ProjectID: query.ProjectID, Page: pagination.CurrentPage, Limit: query.Limit}

	content := leadsContent{
		Subtitle:       leadsSubtitleNoProject,
		EmptyText:      leadsEmptyNoProjectText,
		Pagination:     pagination,
		ListPath:       LeadsPagePath,
		ExportPageHref: LeadsExportPagePath,
		ExportAllHref:  LeadsExportAllPath,
		Exporting:      handlers.exporter.Exporting(store.Token(), project.ID),
		Rows:           make([]leadRow, 0, len(current.Page.Leads)),
	}
	if project.ID != "" {
		content.Subtitle = leadsSubtitlePrefix + project.Name
		content.EmptyText = leadsEmptyText
	}
	for _, size := range leads.PageSizes() {
		content.PageSizes = append(content.PageSizes, pageSizeOption{Value: size, Selected: size == query.Limit})
	}
	previousQuery := pageQuery
	previousQuery.Page = pagination.PreviousPage
	content.PreviousHref = leadsHref(previousQuery, false)
	nextQuery := pageQuery
	nextQuery.Page = pagination.NextPage
	content.NextHref = leadsHref(nextQuery, false)

	for _, lead := range current.Page.Leads {
		content.Rows = append(content.Rows, leadRow{
			ID:          lead.ID,
			ReceivedAt:  leads.FormatReceivedAt(lead, handlers.location),
			Status:      string(lead.Status),
			Name:        valueOrMissing(lead.Name),
			Email:       lead.Email,
			Phone:       valueOrMissing(lead.Phone),
			ProjectName: leads.ProjectLabel(projects, lead.ProjectID),
			Href:        leadsHref(pageQuery, false) + "&" + url.Values{queryKeyLead: []string{lead.ID}}.Encode(),
		})
	}
	return content
}

func (handlers *WebHandlers) leadModal(lead model.Lead, form leads.Form, query backend.LeadQuery) *leadModalView {
	commentLog := lead.Comments
	if commentLog == "" {
		commentLog = leadsNoComments
	}
	selectedStatus := form.Status.OrDefault()
	statuses := make([]statusOption, 0, len(model.LeadStatuses()))
	for _, status := range model.LeadStatuses() {
		statuses = append(statuses, statusOption{Value: string(status), Label: status.Label(), Selected: status == selectedStatus})
	}
	return &leadModalView{
		Title:       lead.Name,
		Action:      LeadsPagePath + "/" + url.PathEscape(lead.ID),
		CloseHref:   leadsHref(query, true),
		Email:       lead.Email,
		Phone:       lead.Phone,
		CommentLog:  commentLog,
		ContactText: leads.ContactText(lead),
		Form:        form,
		Statuses:    statuses,
		Page:        query.Page,
		Limit:       query.Limit,
	}
}

func leadsHref(query backend.LeadQuery, cached bool) string {
	values := url.Values{}
	values.Set(queryKeyPage, strconv.Itoa(leads.NormalizePage(query.Page)))
	values.Set(queryKeyLimit, strconv.Itoa(leads.NormalizePageSize(query.Limit)))
	if cached {
		values.Set(queryKeyCached, "1")
	}
	return LeadsPagePath + "?" + values.Encode()
}

func findLead(leadList []model.Lead, leadID string) (model.Lead, bool) {
	if leadID == "" {
		return model.Lead{}, false
	}
	for _, lead := range leadList {
		if lead.ID == leadID {
			return lead, true
		}
	}
	return model.Lead{}, false
}

func valueOrMissing(value string) string {
	if value == "" {
		return leadsMissingValue
	}
	return value
}

func queryInt(context *gin.Context, key string) int {
	value, parseErr := strconv.Atoi(context.Query(key))
	if parseErr != nil {
		return 0
	}
	return value
}

func formInt(context *gin.Context, key string) int {
	value, parseErr := strconv.Atoi(context.PostForm(key))
	if parseErr != nil {
		return 0
	}
	return value
}
