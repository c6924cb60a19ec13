package leads

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MarkoPoloResearchLab/ultradash/internal/backend"
	"github.com/MarkoPoloResearchLab/ultradash/internal/model"
	"github.com/MarkoPoloResearchLab/ultradash/internal/observability"
)

const (
	// ExportAllLimit is the page size used to fetch every lead of a project at once.
	ExportAllLimit = 99999

	ExportScopePage = "page"
	ExportScopeAll  = "all"

	exportResultOK    = "ok"
	exportResultEmpty = "empty"
	exportResultError = "error"

	pageFilenamePrefix    = "leads_pagina_"
	allFilenamePrefix     = "leads_todos_"
	filenameExtension     = ".csv"
	pageFilenameFallback  = "todos"
	allFilenameFallback   = "geral"
	errorMessageWriteCSV  = "write csv"
	errorMessageFetchLead = "fetch leads for export"
)

// ErrEmptyExport means there was nothing to put in the file.
var ErrEmptyExport = errors.New("empty_export")

var (
	csvHeader       = []string{"Data de Recebimento", "Status", "Nome do Lead", "Email", "Telefone", "Cidade", "Nome do Projeto"}
	whitespaceRunes = regexp.MustCompile(`\s+`)
)

// File is a CSV download.
type File struct {
	Filename string
	Data     []byte
}

// PageFilename names the export of the rows on screen.
func PageFilename(page int, projectName string) string {
	return pageFilenamePrefix + strconv.Itoa(page) + "_" + filenameSlug(projectName, pageFilenameFallback) + filenameExtension
}

// AllFilename names the export of every lead of a project.
func AllFilename(projectName string) string {
	return allFilenamePrefix + filenameSlug(projectName, allFilenameFallback) + filenameExtension
}

func filenameSlug(projectName string, fallback string) string {
	if projectName == "" {
		return fallback
	}
	return whitespaceRunes.ReplaceAllString(projectName, "_")
}

// EncodeCSV writes the header and one row per lead.
func EncodeCSV(leads []model.Lead, projects []model.Project, location *time.Location) ([]byte, error) {
	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)
	if writeErr := writer.Write(csvHeader); writeErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageWriteCSV, writeErr)
	}
	for _, lead := range leads {
		row := []string{
			FormatReceivedAt(lead, location),
			string(lead.Status),
			lead.Name,
			lead.Email,
			lead.Phone,
			lead.City,
			ProjectLabel(projects, lead.ProjectID),
		}
		if writeErr := writer.Write(row); writeErr != nil {
			return nil, fmt.Errorf("%s: %w", errorMessageWriteCSV, writeErr)
		}
	}
	writer.Flush()
	if flushErr := writer.Error(); flushErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageWriteCSV, flushErr)
	}
	return buffer.Bytes(), nil
}

// ExportPage builds the file of the rows already fetched. No request is made.
func ExportPage(current CurrentPage, project model.Project, projects []model.Project, location *time.Location) (File, error) {
	if len(current.Page.Leads) == 0 {
		return File{}, ErrEmptyExport
	}
	data, encodeErr := EncodeCSV(current.Page.Leads, projects, location)
	if encodeErr != nil {
		return File{}, encodeErr
	}
	return File{Filename: PageFilename(NormalizePage(current.Page.CurrentPage), project.Name), Data: data}, nil
}

// LeadLister fetches leads through the API.
type LeadLister interface {
	ListLeads(ctx context.Context, token string, query backend.LeadQuery) (model.LeadPage, error)
}

// Exporter runs export-all requests. Concurrent requests of the same session
// and project share one fetch and receive the same file.
type Exporter struct {
	lister   LeadLister
	location *time.Location
	metrics  *observability.Metrics
	group    singleflight.Group

	stateMutex sync.Mutex
	inFlight   map[string]int
}

// NewExporter creates an Exporter that renders dates in location.
func NewExporter(lister LeadLister, location *time.Location, metrics *observability.Metrics) *Exporter {
	if location == nil {
		location = time.UTC
	}
	return &Exporter{
		lister:   lister,
		location: location,
		metrics:  metrics,
		inFlight: make(map[string]int),
	}
}

// Exporting reports whether an export-all for the session and project is running.
func (exporter *Exporter) Exporting(token string, projectID string) bool {
	exporter.stateMutex.Lock()
	defer exporter.stateMutex.Unlock()
	return exporter.inFlight[exportKey(token, projectID)] > 0
}

// ExportAll fetches every lead of project in one unbounded request and encodes
// them. An empty result yields ErrEmptyExport and no file. The shared fetch
// outlives a cancelled caller; each caller only waits on its own ctx.
func (exporter *Exporter) ExportAll(ctx context.Context, token string, project model.Project, projects []model.Project) (File, error) {
	key := exportKey(token, project.ID)
	exporter.begin(key)
	defer exporter.end(key)

	detachedContext := context.WithoutCancel(ctx)
	resultChannel := exporter.group.DoChan(key, func() (interface{}, error) {
		page, fetchErr := exporter.lister.ListLeads(detachedContext, token, backend.LeadQuery{ProjectID: project.ID, Limit: ExportAllLimit})
		if fetchErr != nil {
			return nil, fmt.Errorf("%s: %w", errorMessageFetchLead, fetchErr)
		}
		if len(page.Leads) == 0 {
			return nil, ErrEmptyExport
		}
		data, encodeErr := EncodeCSV(page.Leads, projects, exporter.location)
		if encodeErr != nil {
			return nil, encodeErr
		}
		return File{Filename: AllFilename(project.Name), Data: data}, nil
	})

	var result interface{}
	var exportErr error
	select {
	case <-ctx.Done():
		exportErr = ctx.Err()
	case shared := <-resultChannel:
		result, exportErr = shared.Val, shared.Err
	}

	switch {
	case errors.Is(exportErr, ErrEmptyExport):
		exporter.metrics.IncrLeadExport(ExportScopeAll, exportResultEmpty)
		return File{}, exportErr
	case exportErr != nil:
		exporter.metrics.IncrLeadExport(ExportScopeAll, exportResultError)
		return File{}, exportErr
	}
	exporter.metrics.IncrLeadExport(ExportScopeAll, exportResultOK)
	return result.(File), nil
}

// RecordPageExport counts a current-page export.
func (exporter *Exporter) RecordPageExport(exportErr error) {
	switch {
	case errors.Is(exportErr, ErrEmptyExport):
		exporter.metrics.IncrLeadExport(ExportScopePage, exportResultEmpty)
	case exportErr != nil:
		exporter.metrics.IncrLeadExport(ExportScopePage, exportResultError)
	default:
		exporter.metrics.IncrLeadExport(ExportScopePage, exportResultOK)
	}
}

// Location is the display time zone of exported dates.
func (exporter *Exporter) Location() *time.Location {
	return exporter.location
}

func (exporter *Exporter) begin(key string) {
	exporter.stateMutex.Lock()
	defer exporter.stateMutex.Unlock()
	exporter.inFlight[key]++
}

func (exporter *Exporter) end(key string) {
	exporter.stateMutex.Lock()
	defer exporter.stateMutex.Unlock()
	exporter.inFlight[key]--
	if exporter.inFlight[key] <= 0 {
		delete(exporter.inFlight, key)
	}
}

func exportKey(token string, projectID string) string {
	return strings.Join([]string{token, projectID}, "\x00")
}
