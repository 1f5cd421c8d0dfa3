package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/fentro/cms-console/internal/apiclient"
	"github.com/fentro/cms-console/internal/apperr"
)

// Gateway is the slice of the CMS service the session depends on.
type Gateway interface {
	SignIn(ctx context.Context, email, password string) (User, string, error)
	Verify(ctx context.Context, token string) (User, error)
	Register(ctx context.Context, name, email, password string) (string, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, password string) (string, error)
	SetPassword(ctx context.Context, token, password string) (string, error)
}

// APIGateway implements Gateway over the CMS HTTP surface.
type APIGateway struct {
	client *apiclient.Client
}

// NewAPIGateway wraps an api client.
func NewAPIGateway(client *apiclient.Client) *APIGateway {
	return &APIGateway{client: client}
}

type signInPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInReply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	User    *User  `json:"user"`
	Token   string `json:"token"`
}

type meReply struct {
	User *User `json:"user"`
}

type messageReply struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

func (g *APIGateway) SignIn(ctx context.Context, email, password string) (User, string, error) {
	var reply signInReply
	if err := g.client.PostJSON(ctx, "auth/login", signInPayload{Email: email, Password: password}, &reply); err != nil {
		return User{}, "", err
	}
	if !reply.Success || reply.User == nil || strings.TrimSpace(reply.Token) == "" {
		message := reply.Message
		if message == "" {
			message = "Invalid email or password"
		}
		return User{}, "", apperr.New(apperr.KindAuthorization, "sign_in_refused", message)
	}
	return *reply.User, reply.Token, nil
}

func (g *APIGateway) Verify(ctx context.Context, token string) (User, error) {
	response, err := g.client.Do(apiclient.WithBearer(ctx, token), http.MethodGet, "auth/me", nil, nil)
	if err != nil {
		return User{}, err
	}
	var reply meReply
	if err := response.Decode(&reply); err != nil {
		return User{}, err
	}
	if reply.User == nil {
		return User{}, apperr.New(apperr.KindAuthorization, "session_rejected", "session is no longer valid")
	}
	return *reply.User, nil
}

func (g *APIGateway) Register(ctx context.Context, name, email, password string) (string, error) {
	return g.postForMessage(ctx, "auth/register", map[string]string{"name": name, "email": email, "password": password})
}

func (g *APIGateway) ForgotPassword(ctx context.Context, email string) (string, error) {
	return g.postForMessage(ctx, "auth/forgot-password", map[string]string{"email": email})
}

func (g *APIGateway) ResetPassword(ctx context.Context, token, password string) (string, error) {
	return g.postForMessage(ctx, "auth/reset-password", map[string]string{"token": token, "password": password})
}

func (g *APIGateway) SetPassword(ctx context.Context, token, password string) (string, error) {
	return g.postForMessage(ctx, apiclient.Sprintf("auth/set-password/%s", token), map[string]string{"password": password})
}

func (g *APIGateway) postForMessage(ctx context.Context, path string, body any) (string, error) {
	var reply messageReply
	if err := g.client.PostJSON(ctx, path, body, &reply); err != nil {
		return "", err
	}
	return reply.Message, nil
}
