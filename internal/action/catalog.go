// Package action puts every state-changing dashboard action behind an
// explicit confirmation step
package action

import (
	"net/http"
	"net/url"
	"strings"

	"parkadmin/internal/domain"
)

// Kind identifies a confirmable action
type Kind string

const (
	CheckinApprove    Kind = "checkin-approve"
	CheckoutApprove   Kind = "checkout-approve"
	ExtensionConfirm  Kind = "extension-confirm"
	ExtensionReject   Kind = "extension-reject"
	ChangeTimeConfirm Kind = "change-time-confirm"
	ChangeTimeReject  Kind = "change-time-reject"
	ComplaintComplete Kind = "complaint-complete"
	SlotToggle        Kind = "slot-toggle"
)

// Definition describes how an action is confirmed and performed. Path
// contains an {id} placeholder for the record id
type Definition struct {
	Kind     Kind
	Title    string
	Question string
	Confirm  string
	Method   string
	Path     string
	Success  string
	Failure  string
	// Body builds the request body from the prompt's arguments
	Body func(args map[string]string) any
}

// URL substitutes recordID into the path template
func (d Definition) URL(recordID string) string {
	return strings.ReplaceAll(d.Path, "{id}", url.PathEscape(recordID))
}

func emptyBody(map[string]string) any { return struct{}{} }

var catalog = map[Kind]Definition{
	CheckinApprove: {
		Kind:     CheckinApprove,
		Title:    "Confirm Check-in",
		Question: "Are you sure you want to proceed with the check in for this ticket?",
		Confirm:  "Yes, confirm it!",
		Method:   http.MethodPost,
		Path:     "/app-data-service/tickets/checkin-approve/{id}",
		Success:  "Check-in approved",
		Failure:  "Check-in approval failed",
		Body:     emptyBody,
	},
	CheckoutApprove: {
		Kind:     CheckoutApprove,
		Title:    "Confirm Vehicle Checkout",
		Question: "Approve the checkout for this ticket? Any overtime fine shown will be charged.",
		Confirm:  "Confirm checkout",
		Method:   http.MethodPost,
		Path:     "/app-data-service/tickets/checkout-approve/{id}",
		Success:  "Checkout approved",
		Failure:  "Checkout approval failed",
		Body:     emptyBody,
	},
	ExtensionConfirm: {
		Kind:     ExtensionConfirm,
		Title:    "Accept extension",
		Question: "Accept the extension request for this ticket?",
		Confirm:  "Accept",
		Method:   http.MethodPatch,
		Path:     "/app-data-service/tickets/confirm-extension/{id}",
		Success:  "Extension accepted",
		Failure:  "Accepting the extension failed",
	},
	ExtensionReject: {
		Kind:     ExtensionReject,
		Title:    "Reject extension",
		Question: "Reject the extension request for this ticket?",
		Confirm:  "Reject",
		Method:   http.MethodPatch,
		Path:     "/app-data-service/tickets/reject-extension/{id}",
		Success:  "Extension rejected",
		Failure:  "Rejecting the extension failed",
	},
	ChangeTimeConfirm: {
		Kind:     ChangeTimeConfirm,
		Title:    "Accept time change",
		Question: "Accept the requested time change for this ticket?",
		Confirm:  "Accept",
		Method:   http.MethodPut,
		Path:     "/app-data-service/tickets/confirm-change-time/{id}",
		Success:  "Time change accepted",
		Failure:  "Accepting the time change failed",
	},
	ChangeTimeReject: {
		Kind:     ChangeTimeReject,
		Title:    "Reject time change",
		Question: "Reject the requested time change for this ticket?",
		Confirm:  "Reject",
		Method:   http.MethodPut,
		Path:     "/app-data-service/tickets/reject-change-time/{id}",
		Success:  "Time change rejected",
		Failure:  "Rejecting the time change failed",
	},
	ComplaintComplete: {
		Kind:     ComplaintComplete,
		Title:    "Are you sure?",
		Question: "Do you want to mark this complaint as resolved?",
		Confirm:  "Just do it",
		Method:   http.MethodPut,
		Path:     "/dispute/api/update/{id}",
		Success:  "Complaint resolved successfully.",
		Failure:  "Failed to resolve complaint. Please try again.",
		Body: func(map[string]string) any {
			return map[string]string{"disputeStatus": domain.ComplaintStatusComplete}
		},
	},
	SlotToggle: {
		Kind:     SlotToggle,
		Title:    "Change slot status",
		Question: "Toggle this slot between VALID and INVALID?",
		Confirm:  "Toggle",
		Method:   http.MethodPut,
		Path:     "/app-data-service/slots/status/{id}",
		Success:  "Slot status updated",
		Failure:  "Updating the slot status failed",
		Body: func(args map[string]string) any {
			next := domain.SlotStatusInvalid
			if args["status"] == domain.SlotStatusInvalid {
				next = domain.SlotStatusValid
			}
			return map[string]string{"status": next, "description": "Slot status toggled"}
		},
	},
}

// Lookup returns the definition of kind
func Lookup(kind Kind) (Definition, bool) {
	d, ok := catalog[kind]
	return d, ok
}
