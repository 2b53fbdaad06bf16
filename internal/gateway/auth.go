package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/and161185/civictrack/internal/model"
)

// LoginResult is a validated login response.
type LoginResult struct {
	Token     string
	User      model.User
	ExpiresIn time.Duration // zero when the backend gave no hint
}

// Login exchanges credentials for a token and the user record.
func (cl *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	body, err := jsonBody(loginRequest{Email: email, Password: password})
	if err != nil {
		return LoginResult{}, err
	}
	raw, err := cl.do(ctx, call{
		op: OpLogin, method: http.MethodPost, path: "/auth/login",
		body: body, contentType: "application/json",
	})
	if err != nil {
		return LoginResult{}, err
	}

	var resp loginResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return LoginResult{}, malformed(OpLogin, err.Error())
	}
	if strings.TrimSpace(resp.Token) == "" {
		return LoginResult{}, malformed(OpLogin, "missing token")
	}
	if resp.User == nil {
		return LoginResult{}, malformed(OpLogin, "missing user")
	}
	u := resp.User.toModel()
	if !u.Valid() {
		return LoginResult{}, malformed(OpLogin, "user without id")
	}
	return LoginResult{
		Token:     resp.Token,
		User:      u,
		ExpiresIn: time.Duration(resp.ExpiresIn) * time.Second,
	}, nil
}

// Logout invalidates token on the backend.
func (cl *Client) Logout(ctx context.Context, token string) error {
	_, err := cl.do(ctx, call{op: OpLogout, method: http.MethodPost, path: "/auth/logout", bearer: token})
	return err
}

// Register creates an account. document is optional and enables password
// reset. The backend's returned user is decoded when present.
func (cl *Client) Register(ctx context.Context, name, email, password, document string) (model.User, error) {
	body, err := jsonBody(registerRequest{Name: name, Email: email, Password: password, Role: "user", Document: document})
	if err != nil {
		return model.User{}, err
	}
	raw, err := cl.do(ctx, call{
		op: OpRegister, method: http.MethodPost, path: "/auth/register",
		body: body, contentType: "application/json",
	})
	if err != nil {
		return model.User{}, err
	}
	var env struct {
		wireUser
		User *wireUser `json:"user"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return model.User{}, malformed(OpRegister, err.Error())
	}
	if env.User != nil {
		return env.User.toModel(), nil
	}
	return env.wireUser.toModel(), nil
}

// ChangePassword resets the password of the account identified by email and
// identity document. It returns the backend's confirmation message.
func (cl *Client) ChangePassword(ctx context.Context, email, document, newPassword string) (string, error) {
	body, err := jsonBody(changePasswordRequest{Email: email, Document: document, NewPassword: newPassword})
	if err != nil {
		return "", err
	}
	raw, err := cl.do(ctx, call{
		op: OpChangePassword, method: http.MethodPost, path: "/auth/change-password",
		body: body, contentType: "application/json",
	})
	if err != nil {
		return "", err
	}
	return messageOf(raw), nil
}
