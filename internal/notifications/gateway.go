package notifications

import (
	"context"
	"net/http"

	"github.com/fentro/cms-console/internal/apiclient"
)

// Gateway is the notification slice of the CMS service.
type Gateway interface {
	List(ctx context.Context) ([]Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
}

// APIGateway talks to the notification endpoints over the shared client.
type APIGateway struct {
	client *apiclient.Client
}

// NewAPIGateway wraps client.
func NewAPIGateway(client *apiclient.Client) *APIGateway {
	return &APIGateway{client: client}
}

func (g *APIGateway) List(ctx context.Context) ([]Notification, error) {
	var items []Notification
	if _, err := g.client.GetData(ctx, "notifications", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (g *APIGateway) MarkRead(ctx context.Context, id string) error {
	response, err := g.client.Do(ctx, http.MethodPost, apiclient.Sprintf("notifications/%s/read", id), nil, nil)
	if err != nil {
		return err
	}
	return response.EnsureSuccess()
}

func (g *APIGateway) MarkAllRead(ctx context.Context) error {
	response, err := g.client.Do(ctx, http.MethodPost, "notifications/read-all", nil, nil)
	if err != nil {
		return err
	}
	return response.EnsureSuccess()
}

func (g *APIGateway) Delete(ctx context.Context, id string) error {
	return g.client.Delete(ctx, apiclient.Sprintf("notifications/%s", id))
}
