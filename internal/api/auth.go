package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Login exchanges an email and password for a bearer token. It never sends
// a stored token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	const op = "logging in"

	resp, err := c.send(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   LoginPath,
		body:   loginRequest{Email: email, Password: password},
	}, "")
	if err != nil {
		return "", err
	}
	if err := resp.expect(op, http.StatusOK); err != nil {
		return "", err
	}
	return decodeToken(op, resp.body)
}

// ProxyToken returns a token acting on behalf of another account. The
// caller's own token must carry proxy rights.
func (c *Client) ProxyToken(ctx context.Context, to string) (string, error) {
	const op = "requesting proxy token"

	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   ProxyPath,
		query:  url.Values{"to": []string{to}},
	})
	if err != nil {
		return "", err
	}
	if err := resp.expect(op, http.StatusOK); err != nil {
		return "", err
	}
	return decodeToken(op, resp.body)
}

func decodeToken(op string, body []byte) (string, error) {
	var out tokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%s: decoding response: %w", op, err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("%s: response has no token", op)
	}
	return out.Token, nil
}
