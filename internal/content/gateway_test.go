package content

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fentro/cms-console/internal/apiclient"
)

func newGatewayUnderTest(t *testing.T, handler http.HandlerFunc) *APIGateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := apiclient.New(apiclient.Config{BaseURL: server.URL + "/api"})
	if err != nil {
		t.Fatalf("client failed: %v", err)
	}
	return NewAPIGateway(client)
}

func TestAPIGatewayRoutes(t *testing.T) {
	campaigns, _ := Lookup("campaigns")
	var calls []string
	var lastBody map[string]any
	gateway := newGatewayUnderTest(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
		lastBody = nil
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		if r.Method == http.MethodGet && r.URL.Path == "/api/newsletter/campaigns" {
			_, _ = io.WriteString(w, `{"data":[{"_id":"c1","subject":"Hi"}],"pagination":{"page":1,"total":1,"limit":10,"pages":1}}`)
			return
		}
		_, _ = io.WriteString(w, `{"success":true,"data":{"id":"c1","subject":"Hi"}}`)
	})
	ctx := context.Background()

	result, err := gateway.List(ctx, campaigns, ListQuery{Page: 1, Limit: 10, Search: "hi"})
	if err != nil || len(result.Items) != 1 || result.Items[0].ID() != "c1" {
		t.Fatalf("unexpected list %+v %v", result, err)
	}
	if _, err := gateway.Create(ctx, campaigns, Document{"subject": "Hi"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if lastBody["subject"] != "Hi" {
		t.Fatalf("expected body forwarded, got %+v", lastBody)
	}
	if _, err := gateway.Update(ctx, campaigns, "c1", Document{"subject": "Yo"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if _, err := gateway.SetPublished(ctx, campaigns, "c1", false); err != nil {
		t.Fatalf("unpublish failed: %v", err)
	}
	if _, err := gateway.BySlug(ctx, campaigns, "spring sale"); err != nil {
		t.Fatalf("slug failed: %v", err)
	}
	if err := gateway.Delete(ctx, campaigns, "c1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	expected := []string{
		"GET /api/newsletter/campaigns?limit=10&page=1&search=hi",
		"POST /api/newsletter/campaigns?",
		"PATCH /api/newsletter/campaigns/c1?",
		"POST /api/newsletter/campaigns/c1/unpublish?",
		"GET /api/newsletter/campaigns/slug/spring sale?",
		"DELETE /api/newsletter/campaigns/c1?",
	}
	if len(calls) != len(expected) {
		t.Fatalf("unexpected calls %v", calls)
	}
	for i := range expected {
		if calls[i] != expected[i] {
			t.Fatalf("call %d: expected %q, got %q", i, expected[i], calls[i])
		}
	}
}
