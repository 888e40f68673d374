package httpresolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/edumfa/edumfa-go/internal/common"
	"github.com/edumfa/edumfa-go/internal/interpolate"
	"github.com/edumfa/edumfa-go/internal/models"
	"github.com/edumfa/edumfa-go/internal/resolvers"
)

const HTTPResolverType = "httpresolver"

func init() {
	resolvers.Register(resolvers.Descriptor{
		Type:        HTTPResolverType,
		Description: "Users looked up through an HTTP API",
		SecretKeys:  []string{"headers", "password", "bearer_token"},
		Factory: func() models.ResolverImpl {
			return &httpResolver{}
		},
	})
}

/*
type: httpresolver
data:

	endpoint: https://api.example.com/users/{username}
	method: GET
	headers:
	  X-Api-Key: secret
	response_mapping:
	  userid: .id
	  username: .login
	  email: .contact.email
	auth_endpoint: https://api.example.com/auth
*/
type httpResolver struct {
	*models.BaseResolver

	client       *resty.Client
	endpoint     string
	uidEndpoint  string
	authEndpoint string
	method       string
	headers      map[string]string
	username     string
	password     string
	bearer       string
	mapping      map[string]string
}

func (h *httpResolver) Initialize(registration models.ResolverRegistration) error {
	data := registration.Data

	h.endpoint = data.GetStringWithDefault("endpoint", "")
	if len(h.endpoint) == 0 {
		return fmt.Errorf("%w: endpoint", models.ErrMissingParameter)
	}
	if !strings.Contains(h.endpoint, "{username}") {
		return fmt.Errorf("%w: endpoint must contain {username}", models.ErrInvalidParameter)
	}
	h.uidEndpoint = data.GetStringWithDefault("uid_endpoint", h.endpoint)
	h.authEndpoint = data.GetStringWithDefault("auth_endpoint", "")
	h.method = strings.ToUpper(data.GetStringWithDefault("method", http.MethodGet))
	h.headers, _ = data.GetStringMap("headers")
	h.username = data.GetStringWithDefault("username", "")
	h.password = data.GetStringWithDefault("password", "")
	h.bearer = data.GetStringWithDefault("bearer_token", "")

	mapping, _ := data.GetStringMap("response_mapping")
	if mapping == nil {
		mapping = map[string]string{}
	}
	if _, ok := mapping["username"]; !ok {
		mapping["username"] = ".username"
	}
	h.mapping = mapping

	capabilities := []models.ResolverCapability{
		models.ResolverCapabilityLookupByLogin,
		models.ResolverCapabilityLookupByID,
	}
	if len(h.authEndpoint) > 0 {
		capabilities = append(capabilities, models.ResolverCapabilityPassword)
	}
	h.BaseResolver = models.NewBaseResolver(registration, capabilities...)

	h.client = resty.New().
		SetTimeout(time.Duration(data.GetIntWithDefault("timeout", 5)) * time.Second).
		SetRetryCount(data.GetIntWithDefault("retries", 0)).
		SetHeader("Accept", "application/json")

	return nil
}

func (h *httpResolver) unavailable(err error) error {
	return fmt.Errorf("%w: %s: %v", models.ErrResolverUnavailable, h.GetName(), err)
}

// fetch requests the user record. A nil record with nil error means the
// user does not exist.
func (h *httpResolver) fetch(ctx context.Context, endpoint string, value string) (map[string]any, error) {
	escaped := url.PathEscape(value)
	target := strings.NewReplacer("{username}", escaped, "{userid}", escaped).Replace(endpoint)

	resp, err := common.InvokeHttpRequestWithClient(h.client, &common.HTTPArguments{
		Method:      h.method,
		URL:         target,
		Headers:     h.headers,
		Username:    h.username,
		Password:    h.password,
		BearerToken: h.bearer,
	})
	if err != nil {
		return nil, h.unavailable(err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, nil
	case resp.IsError():
		return nil, h.unavailable(fmt.Errorf("unexpected status %d", resp.StatusCode()))
	}

	var body any
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, h.unavailable(fmt.Errorf("invalid response body: %w", err))
	}

	info := map[string]any{}
	for attribute, expression := range h.mapping {
		result, err := interpolate.Evaluate(expression, body, nil)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"resolver":  h.GetName(),
				"attribute": attribute,
			}).WithError(err).Debug("Response mapping did not match")
			continue
		}
		if result != nil {
			info[attribute] = result
		}
	}
	return info, nil
}

func (h *httpResolver) uidOf(info map[string]any, fallback string) string {
	if value, ok := info["userid"]; ok && value != nil {
		return models.UserInfo(info).GetString("userid")
	}
	return fallback
}

func (h *httpResolver) GetUserID(ctx context.Context, login string) models.Lookup {
	info, err := h.fetch(ctx, h.endpoint, login)
	if err != nil {
		return models.BackendError(err)
	}
	if info == nil {
		return models.NotFound()
	}
	return models.Found(h.uidOf(info, login))
}

func (h *httpResolver) GetUsername(ctx context.Context, uid string) models.Lookup {
	info, err := h.fetch(ctx, h.uidEndpoint, uid)
	if err != nil {
		return models.BackendError(err)
	}
	if info == nil {
		return models.NotFound()
	}
	if username := models.UserInfo(info).GetString("username"); len(username) > 0 {
		return models.Found(username)
	}
	return models.Found(uid)
}

func (h *httpResolver) GetUserInfo(ctx context.Context, uid string) (models.UserInfo, error) {
	info, err := h.fetch(ctx, h.uidEndpoint, uid)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return models.UserInfo{}, nil
	}
	info["userid"] = h.uidOf(info, uid)
	return models.UserInfo(info), nil
}

// CheckPassword posts the credentials to auth_endpoint; any 2xx accepts them.
func (h *httpResolver) CheckPassword(ctx context.Context, uid string, password string) (bool, error) {
	if len(h.authEndpoint) == 0 || len(password) == 0 {
		return false, nil
	}
	username := uid
	if lookup := h.GetUsername(ctx, uid); lookup.IsFound() {
		username = lookup.Value
	}

	resp, err := common.InvokeHttpRequestWithClient(h.client, &common.HTTPArguments{
		Method:  http.MethodPost,
		URL:     h.authEndpoint,
		Headers: h.headers,
		Body: map[string]string{
			"username": username,
			"password": password,
		},
	})
	if err != nil {
		return false, h.unavailable(err)
	}
	switch resp.StatusCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return false, nil
	}
	if resp.IsError() {
		return false, h.unavailable(fmt.Errorf("unexpected status %d", resp.StatusCode()))
	}
	return resp.IsSuccess(), nil
}

func (h *httpResolver) GetSearchFields() map[string]string {
	return map[string]string{}
}
