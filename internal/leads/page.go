package leads

import (
	"strconv"
	"time"

	"github.com/MarkoPoloResearchLab/ultradash/internal/backend"
	"github.com/MarkoPoloResearchLab/ultradash/internal/cache"
	"github.com/MarkoPoloResearchLab/ultradash/internal/model"
)

const (
	DefaultPageSize = 10

	InvalidDateLabel     = "Data inválida"
	UnknownProjectLabel  = "Projeto Desconhecido"
	receivedAtLayout     = "02/01/06 às 15:04"
	paginationLabelStart = "Página "
	paginationLabelJoin  = " de "
)

var pageSizes = []int{10, 25, 50}

// PageSizes lists the selectable page sizes.
func PageSizes() []int {
	sizes := make([]int, len(pageSizes))
	copy(sizes, pageSizes)
	return sizes
}

// NormalizePageSize falls back to DefaultPageSize for anything not offered.
func NormalizePageSize(size int) int {
	for _, allowed := range pageSizes {
		if allowed == size {
			return size
		}
	}
	return DefaultPageSize
}

// NormalizePage clamps page numbers below one to the first page.
func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// Pagination is the view state of the list footer.
type Pagination struct {
	CurrentPage  int
	TotalPages   int
	Label        string
	Visible      bool
	HasPrevious  bool
	HasNext      bool
	PreviousPage int
	NextPage     int
}

// NewPagination derives the footer from a fetched page. It is hidden when
// there are no pages.
func NewPagination(currentPage int, totalPages int) Pagination {
	currentPage = NormalizePage(currentPage)
	if totalPages < 0 {
		totalPages = 0
	}
	return Pagination{
		CurrentPage:  currentPage,
		TotalPages:   totalPages,
		Label:        paginationLabelStart + strconv.Itoa(currentPage) + paginationLabelJoin + strconv.Itoa(totalPages),
		Visible:      totalPages > 0,
		HasPrevious:  currentPage > 1,
		HasNext:      currentPage < totalPages,
		PreviousPage: currentPage - 1,
		NextPage:     currentPage + 1,
	}
}

// FormatReceivedAt renders the capture time as dd/mm/yy às HH:MM in location.
func FormatReceivedAt(lead model.Lead, location *time.Location) string {
	receivedAt, valid := lead.ReceivedTime()
	if !valid {
		return InvalidDateLabel
	}
	if location == nil {
		location = time.UTC
	}
	return receivedAt.In(location).Format(receivedAtLayout)
}

// ProjectLabel resolves a lead's project name for display.
func ProjectLabel(projects []model.Project, projectID string) string {
	for _, project := range projects {
		if project.ID == projectID {
			return project.Name
		}
	}
	return UnknownProjectLabel
}

// CurrentPage is the last page fetched for a session together with its query.
type CurrentPage struct {
	Query backend.LeadQuery
	Page  model.LeadPage
}

// PageStore keeps each session's current page so exports and modal saves can
// work from the rows on screen.
type PageStore struct {
	pages *cache.InMemory[CurrentPage]
}

// NewPageStore creates a store whose entries expire after ttl.
func NewPageStore(ttl time.Duration, clock cache.Clock) *PageStore {
	return &PageStore{pages: cache.NewWithClock[CurrentPage](ttl, clock)}
}

// Remember replaces the session's current page wholesale.
func (store *PageStore) Remember(token string, current CurrentPage) {
	store.pages.Set(token, current)
}

// Recall returns the session's current page.
func (store *PageStore) Recall(token string) (CurrentPage, bool) {
	return store.pages.Get(token)
}

// ReplaceLead swaps a saved lead into the current page by id.
func (store *PageStore) ReplaceLead(token string, updated model.Lead) bool {
	replaced := false
	store.pages.Update(token, func(current CurrentPage) CurrentPage {
		current.Page.Leads, replaced = model.ReplaceLeadByID(current.Page.Leads, updated)
		return current
	})
	return replaced
}

// Forget drops the session's page.
func (store *PageStore) Forget(token string) {
	store.pages.Delete(token)
}

// Purge drops expired pages.
func (store *PageStore) Purge() int {
	return store.pages.Purge()
}
