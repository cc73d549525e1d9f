package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Options 配置 GoTrue 兼容的身份服务客户端。
type Options struct {
	URL        string
	AnonKey    string
	ServiceKey string
	JWTSecret  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client 优先使用 JWT secret 本地校验，失败或未配置时回退到 /auth/v1/user。
type Client struct {
	opts Options
	http *http.Client
}

func NewClient(opts Options) *Client {
	opts.URL = strings.TrimRight(opts.URL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{opts: opts, http: hc}
}

type remoteUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (u remoteUser) toUser() User {
	return User{
		ID:       u.ID,
		Email:    u.Email,
		Name:     firstString(u.UserMetadata, nameKeys),
		PhotoURL: firstString(u.UserMetadata, pictureKeys),
	}
}

func (c *Client) VerifyToken(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	if c.opts.JWTSecret != "" {
		claims, err := c.verifyLocal(token)
		if err == nil || c.opts.URL == "" {
			return claims, err
		}
	}
	if c.opts.URL == "" {
		return nil, fmt.Errorf("identity: no verifier configured: %w", ErrInvalidToken)
	}
	return c.verifyRemote(ctx, token)
}

func (c *Client) verifyLocal(token string) (*Claims, error) {
	mc := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, mc, func(t *jwt.Token) (interface{}, error) {
		return []byte(c.opts.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("identity: parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	sub, _ := mc.GetSubject()
	if sub == "" {
		return nil, fmt.Errorf("identity: token has no subject: %w", ErrInvalidToken)
	}
	meta, _ := mc["user_metadata"].(map[string]any)
	claims := &Claims{Subject: sub}
	claims.Email, _ = mc["email"].(string)
	claims.Name = firstString(mc, nameKeys[:1])
	if claims.Name == "" {
		claims.Name = firstString(meta, nameKeys)
	}
	claims.Picture = firstString(mc, pictureKeys[:1])
	if claims.Picture == "" {
		claims.Picture = firstString(meta, pictureKeys)
	}
	return claims, nil
}

func (c *Client) verifyRemote(ctx context.Context, token string) (*Claims, error) {
	var u remoteUser
	if err := c.get(ctx, "/auth/v1/user", token, c.opts.AnonKey, &u); err != nil {
		return nil, fmt.Errorf("identity: verify token: %w", err)
	}
	if u.ID == "" {
		return nil, ErrInvalidToken
	}
	user := u.toUser()
	return &Claims{Subject: user.ID, Email: user.Email, Name: user.Name, Picture: user.PhotoURL}, nil
}

func (c *Client) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var out struct {
		Users []remoteUser `json:"users"`
	}
	path := "/auth/v1/admin/users?filter=" + url.QueryEscape(email)
	if err := c.get(ctx, path, c.opts.ServiceKey, c.opts.ServiceKey, &out); err != nil {
		return nil, fmt.Errorf("identity: lookup %q: %w", email, err)
	}
	for _, u := range out.Users {
		if strings.EqualFold(u.Email, email) {
			user := u.toUser()
			return &user, nil
		}
	}
	return nil, ErrUserNotFound
}

// GetUsers 逐个查询管理接口。重复 ID 只查一次，超过 MaxLookupIDs 直接拒绝。
func (c *Client) GetUsers(ctx context.Context, ids []string) ([]User, error) {
	ids = UniqueIDs(ids)
	if len(ids) > MaxLookupIDs {
		return nil, ErrTooManyIDs
	}
	users := make([]User, 0, len(ids))
	for _, id := range ids {
		var u remoteUser
		err := c.get(ctx, "/auth/v1/admin/users/"+url.PathEscape(id), c.opts.ServiceKey, c.opts.ServiceKey, &u)
		if errors.Is(err, ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("identity: get user %q: %w", id, err)
		}
		users = append(users, u.toUser())
	}
	return users, nil
}

func (c *Client) get(ctx context.Context, path, bearer, apiKey string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.URL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if apiKey != "" {
		req.Header.Set("apikey", apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrUserNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
