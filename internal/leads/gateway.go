package leads

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fentro/cms-console/internal/apiclient"
	"github.com/fentro/cms-console/internal/apperr"
)

// MeetingSuccessCode is the only reply status the service uses for a booked meeting.
const MeetingSuccessCode = 6000

// StatusUpdate is the body of a status transition.
type StatusUpdate struct {
	Status      Status `json:"status"`
	Feedback    string `json:"feedback"`
	UpdatedBy   string `json:"updatedBy"`
	ClientName  string `json:"clientName"`
	ClientEmail string `json:"clientEmail"`
	Company     string `json:"company"`
}

// Page is one page of the lead list.
type Page struct {
	Leads      []Lead               `json:"leads"`
	Pagination apiclient.Pagination `json:"pagination"`
}

// MeetingReceipt is the service's reply to a booked meeting.
type MeetingReceipt struct {
	Status  int             `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Gateway is the lead slice of the CMS service.
type Gateway interface {
	List(ctx context.Context, query ListQuery) (Page, error)
	Get(ctx context.Context, id string) (Lead, error)
	UpdateStatus(ctx context.Context, id string, update StatusUpdate) (*Lead, error)
	Delete(ctx context.Context, id string) error
	ScheduleMeeting(ctx context.Context, request MeetingRequest) (MeetingReceipt, error)
}

// APIGateway implements Gateway over the shared client.
type APIGateway struct {
	client *apiclient.Client
}

// NewAPIGateway wraps client.
func NewAPIGateway(client *apiclient.Client) *APIGateway {
	return &APIGateway{client: client}
}

func (g *APIGateway) List(ctx context.Context, query ListQuery) (Page, error) {
	values := url.Values{}
	values.Set("page", strconv.Itoa(query.Page))
	values.Set("limit", strconv.Itoa(query.Limit))
	if query.Sort != "" {
		values.Set("sort", string(query.Sort))
		values.Set("order", string(query.Order))
	}
	if query.Search != "" {
		values.Set("search", query.Search)
	}

	var items []Lead
	pagination, err := g.client.GetData(ctx, "leads", values, &items)
	if err != nil {
		return Page{}, err
	}
	page := Page{Leads: items}
	if pagination != nil {
		page.Pagination = *pagination
	} else {
		page.Pagination = apiclient.Pagination{Page: query.Page, Limit: query.Limit, Total: len(items), Pages: 1}
	}
	return page, nil
}

func (g *APIGateway) Get(ctx context.Context, id string) (Lead, error) {
	var lead Lead
	if _, err := g.client.GetData(ctx, apiclient.Sprintf("leads/%s", id), nil, &lead); err != nil {
		return Lead{}, err
	}
	return lead, nil
}

// UpdateStatus returns nil when the reply carried no lead record.
func (g *APIGateway) UpdateStatus(ctx context.Context, id string, update StatusUpdate) (*Lead, error) {
	response, err := g.client.Do(ctx, http.MethodPost, apiclient.Sprintf("leads/%s/status", id), nil, update)
	if err != nil {
		return nil, err
	}
	var lead *Lead
	if _, err := response.DecodeData(&lead); err != nil {
		return nil, err
	}
	return lead, nil
}

func (g *APIGateway) Delete(ctx context.Context, id string) error {
	return g.client.Delete(ctx, apiclient.Sprintf("leads/%s", id))
}

func (g *APIGateway) ScheduleMeeting(ctx context.Context, request MeetingRequest) (MeetingReceipt, error) {
	response, err := g.client.Do(ctx, http.MethodPost, "meetings", nil, request)
	if err != nil {
		return MeetingReceipt{}, err
	}
	var receipt MeetingReceipt
	if err := response.Decode(&receipt); err != nil {
		return MeetingReceipt{}, err
	}
	if receipt.Status != MeetingSuccessCode {
		message := receipt.Message
		if message == "" {
			message = "The meeting could not be scheduled"
		}
		return receipt, apperr.New(apperr.KindConflict, "meeting_refused", message)
	}
	return receipt, nil
}
