package content

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fentro/cms-console/internal/apiclient"
)

// ListQuery is a paginated, searchable list request.
type ListQuery struct {
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
	Search string `json:"search,omitempty"`
}

// ListResult is one page of documents.
type ListResult struct {
	Items      []Document           `json:"items"`
	Pagination apiclient.Pagination `json:"pagination"`
}

// Gateway is the generic CRUD surface of the CMS service.
type Gateway interface {
	List(ctx context.Context, spec Spec, query ListQuery) (ListResult, error)
	Get(ctx context.Context, spec Spec, id string) (Document, error)
	BySlug(ctx context.Context, spec Spec, slug string) (Document, error)
	Create(ctx context.Context, spec Spec, document Document) (Document, error)
	Update(ctx context.Context, spec Spec, id string, document Document) (Document, error)
	Delete(ctx context.Context, spec Spec, id string) error
	SetPublished(ctx context.Context, spec Spec, id string, published bool) (Document, error)
}

// APIGateway implements Gateway over the shared client.
type APIGateway struct {
	client *apiclient.Client
}

// NewAPIGateway wraps client.
func NewAPIGateway(client *apiclient.Client) *APIGateway {
	return &APIGateway{client: client}
}

func (g *APIGateway) List(ctx context.Context, spec Spec, query ListQuery) (ListResult, error) {
	values := url.Values{}
	if query.Page > 0 {
		values.Set("page", strconv.Itoa(query.Page))
	}
	if query.Limit > 0 {
		values.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Search != "" {
		values.Set("search", query.Search)
	}
	var items []Document
	pagination, err := g.client.GetData(ctx, spec.Path, values, &items)
	if err != nil {
		return ListResult{}, err
	}
	result := ListResult{Items: items}
	if pagination != nil {
		result.Pagination = *pagination
	} else {
		result.Pagination = apiclient.Pagination{Page: 1, Limit: len(items), Total: len(items), Pages: 1}
	}
	return result, nil
}

func (g *APIGateway) Get(ctx context.Context, spec Spec, id string) (Document, error) {
	var document Document
	_, err := g.client.GetData(ctx, spec.Path+apiclient.Sprintf("/%s", id), nil, &document)
	return document, err
}

func (g *APIGateway) BySlug(ctx context.Context, spec Spec, slug string) (Document, error) {
	var document Document
	_, err := g.client.GetData(ctx, spec.Path+apiclient.Sprintf("/slug/%s", slug), nil, &document)
	return document, err
}

func (g *APIGateway) Create(ctx context.Context, spec Spec, document Document) (Document, error) {
	return g.write(ctx, http.MethodPost, spec.Path, document)
}

func (g *APIGateway) Update(ctx context.Context, spec Spec, id string, document Document) (Document, error) {
	return g.write(ctx, http.MethodPatch, spec.Path+apiclient.Sprintf("/%s", id), document)
}

func (g *APIGateway) Delete(ctx context.Context, spec Spec, id string) error {
	return g.client.Delete(ctx, spec.Path+apiclient.Sprintf("/%s", id))
}

func (g *APIGateway) SetPublished(ctx context.Context, spec Spec, id string, published bool) (Document, error) {
	action := "unpublish"
	if published {
		action = "publish"
	}
	return g.write(ctx, http.MethodPost, spec.Path+apiclient.Sprintf("/%s/", id)+action, nil)
}

func (g *APIGateway) write(ctx context.Context, method, path string, body any) (Document, error) {
	response, err := g.client.Do(ctx, method, path, nil, body)
	if err != nil {
		return nil, err
	}
	var document Document
	if _, err := response.DecodeData(&document); err != nil {
		return nil, err
	}
	return document, nil
}
