package leads

import (
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/ultradash/internal/backend"
	"github.com/MarkoPoloResearchLab/ultradash/internal/model"
	"github.com/MarkoPoloResearchLab/ultradash/internal/observability"
)

const testToken = "token-abc"

var testMoment = time.Date(2026, time.October, 14, 9, 5, 30, 0, time.UTC)

func TestAppendCommentOrdersNewestFirst(testingT *testing.T) {
	existingLog := "[01/10/2026, 10:00:00] primeiro contato"

	afterA, appended := AppendComment(existingLog, "comentário A", testMoment)
	require.True(testingT, appended)
	afterB, appended := AppendComment(afterA, "comentário B", testMoment.Add(time.Hour))
	require.True(testingT, appended)

	require.Equal(testingT,
		"[14/10/2026, 10:05:30] comentário B"+CommentSeparator+
			"[14/10/2026, 09:05:30] comentário A"+CommentSeparator+
			existingLog,
		afterB)
	require.True(testingT, strings.HasSuffix(afterB, existingLog))
}

func TestAppendCommentEdgeCases(testingT *testing.T) {
	entry, appended := AppendComment("", "ligar amanhã", testMoment)
	require.True(testingT, appended)
	require.Equal(testingT, "[14/10/2026, 09:05:30] ligar amanhã", entry)

	untrimmed, appended := AppendComment("", "  ligar amanhã\n", testMoment)
	require.True(testingT, appended)
	require.Equal(testingT, "[14/10/2026, 09:05:30]   ligar amanhã\n", untrimmed)

	unchanged, appended := AppendComment("log", "   ", testMoment)
	require.False(testingT, appended)
	require.Equal(testingT, "log", unchanged)
}

func TestFormUpdateOmitsCommentsWhenBlank(testingT *testing.T) {
	lead := model.Lead{ID: "l1", Name: "Ana", City: "Recife", Status: model.LeadStatusNew, Comments: "antigo"}
	form := FormFromLead(lead)
	require.Empty(testingT, form.NewComment)

	form.City = " Olinda "
	form.Status = "ganho"
	update := form.Update(lead, testMoment)
	require.Nil(testingT, update.Comments)
	require.Equal(testingT, " Olinda ", update.City)
	require.Equal(testingT, "Ana", update.Name)
	require.Equal(testingT, model.LeadStatusWon, update.Status)

	form.NewComment = "fechou"
	form.Status = "bogus"
	update = form.Update(lead, testMoment)
	require.NotNil(testingT, update.Comments)
	require.Equal(testingT, "[14/10/2026, 09:05:30] fechou"+CommentSeparator+"antigo", *update.Comments)
	require.Equal(testingT, model.LeadStatusNew, update.Status)
}

type stubUpdater struct {
	receivedID     string
	receivedUpdate model.LeadUpdate
	response       model.Lead
	err            error
}

func (stub *stubUpdater) UpdateLead(_ context.Context, _ string, leadID string, update model.LeadUpdate) (model.Lead, error) {
	stub.receivedID = leadID
	stub.receivedUpdate = update
	return stub.response, stub.err
}

func TestSaveLeadReturnsServerRecord(testingT *testing.T) {
	lead := model.Lead{ID: "l1", Name: "Ana", Status: model.LeadStatusNew}
	updater := &stubUpdater{response: model.Lead{ID: "l1", Name: "Ana Souza", Status: model.LeadStatusContacted}}

	saved, err := SaveLead(context.Background(), updater, testToken, lead, Form{Name: "Ana Souza", Status: model.LeadStatusContacted}, testMoment)
	require.NoError(testingT, err)
	require.Equal(testingT, updater.response, saved)
	require.Equal(testingT, "l1", updater.receivedID)

	_, err = SaveLead(context.Background(), updater, testToken, model.Lead{}, Form{}, testMoment)
	require.ErrorIs(testingT, err, ErrMissingLeadID)
}

func TestContactText(testingT *testing.T) {
	require.Equal(testingT, "Email: ana@example.com\nTelefone: 81999990000", ContactText(model.Lead{Email: "ana@example.com", Phone: "81999990000"}))
}

func TestNormalizePaging(testingT *testing.T) {
	require.Equal(testingT, 25, NormalizePageSize(25))
	require.Equal(testingT, 10, NormalizePageSize(100))
	require.Equal(testingT, 10, NormalizePageSize(0))
	require.Equal(testingT, 1, NormalizePage(0))
	require.Equal(testingT, 1, NormalizePage(-3))
	require.Equal(testingT, 4, NormalizePage(4))
	require.Equal(testingT, []int{10, 25, 50}, PageSizes())
}

func TestNewPagination(testingT *testing.T) {
	testCases := []struct {
		name        string
		current     int
		total       int
		label       string
		visible     bool
		hasPrevious bool
		hasNext     bool
	}{
		{name: "middle page", current: 2, total: 3, label: "Página 2 de 3", visible: true, hasPrevious: true, hasNext: true},
		{name: "first page", current: 1, total: 3, label: "Página 1 de 3", visible: true, hasNext: true},
		{name: "last page", current: 3, total: 3, label: "Página 3 de 3", visible: true, hasPrevious: true},
		{name: "no pages", current: 1, total: 0, label: "Página 1 de 0"},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(testingT *testing.T) {
			pagination := NewPagination(testCase.current, testCase.total)
			require.Equal(testingT, testCase.label, pagination.Label)
			require.Equal(testingT, testCase.visible, pagination.Visible)
			require.Equal(testingT, testCase.hasPrevious, pagination.HasPrevious)
			require.Equal(testingT, testCase.hasNext, pagination.HasNext)
		})
	}
}

func TestFormatReceivedAt(testingT *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*60*60)
	require.Equal(testingT, "14/10/26 às 06:05", FormatReceivedAt(model.Lead{ReceivedAt: "2026-10-14T09:05:30Z"}, saoPaulo))
	require.Equal(testingT, InvalidDateLabel, FormatReceivedAt(model.Lead{ReceivedAt: "ontem"}, saoPaulo))
	require.Equal(testingT, InvalidDateLabel, FormatReceivedAt(model.Lead{}, nil))
}

func TestProjectLabel(testingT *testing.T) {
	projects := []model.Project{{ID: "p1", Name: "Site A"}}
	require.Equal(testingT, "Site A", ProjectLabel(projects, "p1"))
	require.Equal(testingT, UnknownProjectLabel, ProjectLabel(projects, "p2"))
}

func TestFilenames(testingT *testing.T) {
	require.Equal(testingT, "leads_pagina_2_Site_Principal_A.csv", PageFilename(2, "Site  Principal A"))
	require.Equal(testingT, "leads_pagina_1_todos.csv", PageFilename(1, ""))
	require.Equal(testingT, "leads_todos_Site_A.csv", AllFilename("Site A"))
	require.Equal(testingT, "leads_todos_geral.csv", AllFilename(""))
}

func TestEncodeCSV(testingT *testing.T) {
	leadsToExport := []model.Lead{
		{Name: "Ana, a primeira", Email: "ana@example.com", Phone: "8199", City: "Recife", Status: model.LeadStatusWon, ProjectID: "p1", ReceivedAt: "2026-10-14T09:05:30Z"},
		{Name: "Bruno", Status: model.LeadStatusNew, ProjectID: "p9", ReceivedAt: "bad"},
	}
	data, err := EncodeCSV(leadsToExport, []model.Project{{ID: "p1", Name: "Site A"}}, time.UTC)
	require.NoError(testingT, err)

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(testingT, err)
	require.Len(testingT, records, 3)
	require.Equal(testingT, []string{"Data de Recebimento", "Status", "Nome do Lead", "Email", "Telefone", "Cidade", "Nome do Projeto"}, records[0])
	require.Equal(testingT, []string{"14/10/26 às 09:05", "ganho", "Ana, a primeira", "ana@example.com", "8199", "Recife", "Site A"}, records[1])
	require.Equal(testingT, InvalidDateLabel, records[2][0])
	require.Equal(testingT, UnknownProjectLabel, records[2][6])
}

func TestExportPageUsesOnlyCachedRows(testingT *testing.T) {
	current := CurrentPage{
		Query: backend.LeadQuery{ProjectID: "p1", Page: 2, Limit: 10},
		Page:  model.LeadPage{Leads: []model.Lead{{ID: "l1", Name: "Ana", ProjectID: "p1"}}, TotalPages: 3, CurrentPage: 2},
	}
	file, err := ExportPage(current, model.Project{ID: "p1", Name: "Site A"}, []model.Project{{ID: "p1", Name: "Site A"}}, time.UTC)
	require.NoError(testingT, err)
	require.Equal(testingT, "leads_pagina_2_Site_A.csv", file.Filename)
	require.Contains(testingT, string(file.Data), "Ana")

	_, err = ExportPage(CurrentPage{}, model.AllProjects(), nil, time.UTC)
	require.ErrorIs(testingT, err, ErrEmptyExport)
}

type stubLister struct {
	page    model.LeadPage
	err     error
	calls   int64
	release chan struct{}
	started chan struct{}
	once    sync.Once
	query   backend.LeadQuery
	ctxErr  error
}

func (stub *stubLister) ListLeads(ctx context.Context, _ string, query backend.LeadQuery) (model.LeadPage, error) {
	atomic.AddInt64(&stub.calls, 1)
	stub.query = query
	if stub.started != nil {
		stub.once.Do(func() { close(stub.started) })
	}
	if stub.release != nil {
		<-stub.release
	}
	stub.ctxErr = ctx.Err()
	return stub.page, stub.err
}

func TestExportAllOutcomesResetExportingFlag(testingT *testing.T) {
	project := model.Project{ID: "p1", Name: "Site A"}
	testCases := []struct {
		name        string
		lister      *stubLister
		expectedErr error
	}{
		{name: "leads found", lister: &stubLister{page: model.LeadPage{Leads: []model.Lead{{ID: "l1", Name: "Ana", ProjectID: "p1"}}}}},
		{name: "no leads", lister: &stubLister{page: model.LeadPage{Leads: []model.Lead{}}}, expectedErr: ErrEmptyExport},
		{name: "fetch failure", lister: &stubLister{err: backend.ErrUnavailable}, expectedErr: backend.ErrUnavailable},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(testingT *testing.T) {
			exporter := NewExporter(testCase.lister, time.UTC, observability.NewMetrics())
			file, err := exporter.ExportAll(context.Background(), testToken, project, []model.Project{project})
			require.False(testingT, exporter.Exporting(testToken, project.ID))
			require.Equal(testingT, backend.LeadQuery{ProjectID: "p1", Limit: ExportAllLimit}, testCase.lister.query)

			if testCase.expectedErr != nil {
				require.ErrorIs(testingT, err, testCase.expectedErr)
				require.Empty(testingT, file.Data)
				return
			}
			require.NoError(testingT, err)
			require.Equal(testingT, "leads_todos_Site_A.csv", file.Filename)
			require.NotEmpty(testingT, file.Data)
		})
	}
}

func TestConcurrentExportAllShareOneFetch(testingT *testing.T) {
	lister := &stubLister{
		page:    model.LeadPage{Leads: []model.Lead{{ID: "l1", Name: "Ana"}}},
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	exporter := NewExporter(lister, time.UTC, nil)
	project := model.Project{ID: "p1", Name: "Site A"}

	const exporters = 3
	var waitGroup sync.WaitGroup
	files := make(chan File, exporters)
	failures := make(chan error, exporters)
	for index := 0; index < exporters; index++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			file, err := exporter.ExportAll(context.Background(), testToken, project, nil)
			if err != nil {
				failures <- err
				return
			}
			files <- file
		}()
	}

	<-lister.started
	require.True(testingT, exporter.Exporting(testToken, project.ID))
	require.Eventually(testingT, func() bool {
		exporter.stateMutex.Lock()
		defer exporter.stateMutex.Unlock()
		return exporter.inFlight[exportKey(testToken, project.ID)] == exporters
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(lister.release)
	waitGroup.Wait()
	close(files)
	close(failures)

	for failure := range failures {
		require.NoError(testingT, failure)
	}
	var firstData []byte
	for file := range files {
		if firstData == nil {
			firstData = file.Data
		}
		require.Equal(testingT, firstData, file.Data)
	}
	require.Equal(testingT, int64(1), atomic.LoadInt64(&lister.calls))
	require.False(testingT, exporter.Exporting(testToken, project.ID))
}

func TestExportAllSurvivesFirstCallerCancellation(testingT *testing.T) {
	lister := &stubLister{
		page:    model.LeadPage{Leads: []model.Lead{{ID: "l1", Name: "Ana"}}},
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	exporter := NewExporter(lister, time.UTC, nil)
	project := model.Project{ID: "p1", Name: "Site A"}

	firstContext, cancelFirst := context.WithCancel(context.Background())
	firstResult := make(chan error, 1)
	go func() {
		_, err := exporter.ExportAll(firstContext, testToken, project, nil)
		firstResult <- err
	}()
	<-lister.started

	type exportResult struct {
		file File
		err  error
	}
	secondResult := make(chan exportResult, 1)
	go func() {
		file, err := exporter.ExportAll(context.Background(), testToken, project, nil)
		secondResult <- exportResult{file: file, err: err}
	}()
	require.Eventually(testingT, func() bool {
		exporter.stateMutex.Lock()
		defer exporter.stateMutex.Unlock()
		return exporter.inFlight[exportKey(testToken, project.ID)] == 2
	}, time.Second, time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstResult:
		require.ErrorIs(testingT, err, context.Canceled)
	case <-time.After(time.Second):
		testingT.Fatal("cancelled export did not return")
	}

	close(lister.release)
	second := <-secondResult
	require.NoError(testingT, second.err)
	require.Equal(testingT, "leads_todos_Site_A.csv", second.file.Filename)
	require.NoError(testingT, lister.ctxErr)
	require.Equal(testingT, int64(1), atomic.LoadInt64(&lister.calls))
	require.False(testingT, exporter.Exporting(testToken, project.ID))
}

func TestPageStoreReplaceLead(testingT *testing.T) {
	store := NewPageStore(time.Minute, nil)
	store.Remember(testToken, CurrentPage{Page: model.LeadPage{Leads: []model.Lead{{ID: "l1", City: "Recife"}, {ID: "l2", City: "Natal"}}}})

	require.True(testingT, store.ReplaceLead(testToken, model.Lead{ID: "l2", City: "Olinda"}))
	require.False(testingT, store.ReplaceLead(testToken, model.Lead{ID: "l9"}))

	current, found := store.Recall(testToken)
	require.True(testingT, found)
	require.Equal(testingT, "Recife", current.Page.Leads[0].City)
	require.Equal(testingT, "Olinda", current.Page.Leads[1].City)

	store.Forget(testToken)
	_, found = store.Recall(testToken)
	require.False(testingT, found)
	require.False(testingT, store.ReplaceLead(testToken, model.Lead{ID: "l1"}))
	require.Zero(testingT, store.Purge())
}

func TestRecordPageExportCountsOutcomes(testingT *testing.T) {
	exporter := NewExporter(&stubLister{}, nil, nil)
	exporter.RecordPageExport(nil)
	exporter.RecordPageExport(ErrEmptyExport)
	exporter.RecordPageExport(errors.New("boom"))
	require.Equal(testingT, time.UTC, exporter.Location())
}
