package leads

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/ultradash/internal/model"
)

// ErrMissingLeadID is returned when a save targets no lead.
var ErrMissingLeadID = errors.New("missing_lead_id")

// Form is the editable state of the lead modal. Email and phone are display only.
type Form struct {
	Name       string
	City       string
	Status     model.LeadStatus
	NewComment string
}

// FormFromLead seeds the modal from a record; the new comment always starts empty.
func FormFromLead(lead model.Lead) Form {
	return Form{
		Name:   lead.Name,
		City:   lead.City,
		Status: lead.Status.OrDefault(),
	}
}

// Update builds the request body. The comment log is only sent when a new
// comment was typed.
func (form Form) Update(lead model.Lead, at time.Time) model.LeadUpdate {
	status, valid := model.ParseLeadStatus(string(form.Status))
	if !valid {
		status = lead.Status.OrDefault()
	}
	update := model.LeadUpdate{
		Name:   form.Name,
		City:   form.City,
		Status: status,
	}
	if comments, appended := AppendComment(lead.Comments, form.NewComment, at); appended {
		update.Comments = &comments
	}
	return update
}

// Updater saves a lead through the API.
type Updater interface {
	UpdateLead(ctx context.Context, token string, leadID string, update model.LeadUpdate) (model.Lead, error)
}

// SaveLead sends the modal state and returns the server's record, which is
// the new truth for the page that opened the modal.
func SaveLead(ctx context.Context, updater Updater, token string, lead model.Lead, form Form, at time.Time) (model.Lead, error) {
	if strings.TrimSpace(lead.ID) == "" {
		return model.Lead{}, ErrMissingLeadID
	}
	return updater.UpdateLead(ctx, token, lead.ID, form.Update(lead, at))
}

// ContactText is what the copy-contact action puts on the clipboard.
func ContactText(lead model.Lead) string {
	return "Email: " + lead.Email + "\nTelefone: " + lead.Phone
}
