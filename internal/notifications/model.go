package notifications

import (
	"encoding/json"
	"strings"
	"time"
)

// Kind is the notification severity.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// PayloadKind tags the variant carried in Notification.Data.
type PayloadKind string

const (
	PayloadUpcoming       PayloadKind = "upcoming"
	PayloadSent           PayloadKind = "sent"
	PayloadSubscription   PayloadKind = "subscription"
	PayloadUnsubscription PayloadKind = "unsubscription"
	PayloadReactivation   PayloadKind = "reactivation"
	PayloadMeeting        PayloadKind = "meeting"
	PayloadLead           PayloadKind = "lead"
)

// Notification is a server-originated event with a tagged payload.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Kind      Kind      `json:"kind"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
	Data      Payload   `json:"data"`
}

// Payload is one of the per-kind payload variants below.
type Payload interface {
	PayloadKind() PayloadKind
}

// NewsletterUpcoming reminds that a campaign is about to send.
type NewsletterUpcoming struct {
	Kind         PayloadKind `json:"kind"`
	Subject      string      `json:"subject"`
	NextSendDate time.Time   `json:"nextSendDate"`
}

// NewsletterSent confirms a campaign went out.
type NewsletterSent struct {
	Kind    PayloadKind `json:"kind"`
	Subject string      `json:"subject"`
}

// SubscriberEvent covers subscription, unsubscription, and reactivation.
type SubscriberEvent struct {
	Kind           PayloadKind `json:"kind"`
	Email          string      `json:"email"`
	SubscribedAt   *time.Time  `json:"subscribedAt,omitempty"`
	UnsubscribedAt *time.Time  `json:"unsubscribedAt,omitempty"`
}

// MeetingScheduled announces a meeting booked with a lead.
type MeetingScheduled struct {
	Kind            PayloadKind `json:"kind"`
	MeetingTitle    string      `json:"meetingTitle"`
	LeadName        string      `json:"leadName"`
	MeetingDateTime time.Time   `json:"meetingDateTime"`
	MeetingDuration string      `json:"meetingDuration"`
	LocationType    string      `json:"locationType"`
	Platform        string      `json:"platform,omitempty"`
	Location        string      `json:"location,omitempty"`
	ScheduledBy     string      `json:"scheduledBy,omitempty"`
}

// LeadCaptured is the default payload: a new inbound lead.
type LeadCaptured struct {
	Kind        PayloadKind `json:"kind"`
	LeadName    string      `json:"leadName"`
	LeadEmail   string      `json:"leadEmail"`
	LeadCompany string      `json:"leadCompany,omitempty"`
}

func (p NewsletterUpcoming) PayloadKind() PayloadKind { return PayloadUpcoming }
func (p NewsletterSent) PayloadKind() PayloadKind     { return PayloadSent }
func (p SubscriberEvent) PayloadKind() PayloadKind    { return p.Kind }
func (p MeetingScheduled) PayloadKind() PayloadKind   { return PayloadMeeting }
func (p LeadCaptured) PayloadKind() PayloadKind       { return PayloadLead }

// IsUpcoming reports whether n is a time-sensitive newsletter reminder.
func (n Notification) IsUpcoming() bool {
	return n.Data != nil && n.Data.PayloadKind() == PayloadUpcoming
}

type payloadTag struct {
	Kind string `json:"kind"`
	Type string `json:"type"`
}

// DecodePayload picks the variant from the `kind` member (or legacy `type`).
// Anything unrecognized decodes as a lead payload.
func DecodePayload(raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return LeadCaptured{Kind: PayloadLead}, nil
	}
	var tag payloadTag
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, err
	}
	kind := PayloadKind(strings.ToLower(strings.TrimSpace(firstNonEmpty(tag.Kind, tag.Type))))

	switch kind {
	case PayloadUpcoming:
		var payload NewsletterUpcoming
		err := json.Unmarshal(raw, &payload)
		payload.Kind = PayloadUpcoming
		return payload, err
	case PayloadSent:
		var payload NewsletterSent
		err := json.Unmarshal(raw, &payload)
		payload.Kind = PayloadSent
		return payload, err
	case PayloadSubscription, PayloadUnsubscription, PayloadReactivation:
		var payload SubscriberEvent
		err := json.Unmarshal(raw, &payload)
		payload.Kind = kind
		return payload, err
	case PayloadMeeting:
		var payload MeetingScheduled
		err := json.Unmarshal(raw, &payload)
		payload.Kind = PayloadMeeting
		return payload, err
	default:
		var payload LeadCaptured
		err := json.Unmarshal(raw, &payload)
		payload.Kind = PayloadLead
		return payload, err
	}
}

// UnmarshalJSON decodes the tagged payload and tolerates the service's legacy
// `_id` and `type` member names.
func (n *Notification) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID        string          `json:"id"`
		LegacyID  string          `json:"_id"`
		Title     string          `json:"title"`
		Message   string          `json:"message"`
		Kind      Kind            `json:"kind"`
		Type      Kind            `json:"type"`
		Read      bool            `json:"read"`
		CreatedAt time.Time       `json:"createdAt"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	payload, err := DecodePayload(aux.Data)
	if err != nil {
		return err
	}
	kind := aux.Kind
	if kind == "" {
		kind = aux.Type
	}
	if kind == "" {
		kind = KindInfo
	}
	*n = Notification{
		ID:        firstNonEmpty(aux.ID, aux.LegacyID),
		Title:     aux.Title,
		Message:   aux.Message,
		Kind:      kind,
		Read:      aux.Read,
		CreatedAt: aux.CreatedAt,
		Data:      payload,
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
