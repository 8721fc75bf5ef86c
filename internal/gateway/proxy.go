package gateway

import (
	"context"
	"net/http"

	"github.com/joao-fontenele/cartflow/internal/auth"
)

type ServiceProxy struct {
	baseURL string
	client  *http.Client
}

func NewServiceProxy(baseURL string, client *http.Client) *ServiceProxy {
	return &ServiceProxy{
		baseURL: baseURL,
		client:  client,
	}
}

// ForwardRequest replays r against the upstream at path. The user header is
// always set from userID, never copied from the client.
func (p *ServiceProxy) ForwardRequest(ctx context.Context, r *http.Request, path, userID string) (*http.Response, error) {
	url := p.baseURL + path
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, url, r.Body)
	if err != nil {
		return nil, err
	}

	if contentType := r.Header.Get("Content-Type"); contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if userID != "" {
		req.Header.Set(auth.UserIDHeader, userID)
	}

	return p.client.Do(req)
}
