package model

import "strings"

// LeadStatus is the pipeline stage of a lead, stored with the API's vocabulary.
type LeadStatus string

const (
	LeadStatusNew         LeadStatus = "novo"
	LeadStatusContacted   LeadStatus = "contatado"
	LeadStatusNegotiating LeadStatus = "negociando"
	LeadStatusWon         LeadStatus = "ganho"
	LeadStatusLost        LeadStatus = "perdido"
)

var leadStatusLabels = map[LeadStatus]string{
	LeadStatusNew:         "Novo",
	LeadStatusContacted:   "Contatado",
	LeadStatusNegotiating: "Negociando",
	LeadStatusWon:         "Ganho",
	LeadStatusLost:        "Perdido",
}

// LeadStatuses lists every status in pipeline order.
func LeadStatuses() []LeadStatus {
	return []LeadStatus{LeadStatusNew, LeadStatusContacted, LeadStatusNegotiating, LeadStatusWon, LeadStatusLost}
}

// ParseLeadStatus normalizes raw form input; unknown values report false.
func ParseLeadStatus(rawValue string) (LeadStatus, bool) {
	status := LeadStatus(strings.ToLower(strings.TrimSpace(rawValue)))
	_, known := leadStatusLabels[status]
	return status, known
}

// Label returns the human readable status name.
func (status LeadStatus) Label() string {
	if label, ok := leadStatusLabels[status]; ok {
		return label
	}
	return string(status)
}

// OrDefault substitutes the initial pipeline status for empty values.
func (status LeadStatus) OrDefault() LeadStatus {
	if strings.TrimSpace(string(status)) == "" {
		return LeadStatusNew
	}
	return status
}
