package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/synaptica-ai/mlprofile/pkg/common/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const maxResponseBytes = 8 << 20

type HTTPConfig struct {
	URL          string
	Model        string
	Timeout      time.Duration
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// HTTPEmbedder calls a JSON embedding endpoint once per text. It never
// retries: a failed call degrades only the subject that made it.
type HTTPEmbedder struct {
	url    string
	model  string
	client *http.Client
}

type embedRequest struct {
	Model string `json:"model,omitempty"`
	Input string `json:"input"`
}

// embedResponse accepts both a bare {"embedding": [...]} body and the
// {"data": [{"embedding": [...]}]} list form.
type embedResponse struct {
	Embedding []float64 `json:"embedding"`
	Data      []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func NewHTTPEmbedder(cfg HTTPConfig) (*HTTPEmbedder, error) {
	if cfg.URL == "" {
		return nil, errors.New("embedding URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	client := newHTTPClient(cfg.Timeout)
	if cfg.TokenURL != "" && cfg.ClientID != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		authed := cc.Client(ctx)
		authed.Timeout = cfg.Timeout
		client = authed
		logger.Log.WithField("token_url", cfg.TokenURL).Info("embedding client using OAuth2 client credentials")
	}

	return &HTTPEmbedder{url: cfg.URL, model: cfg.Model, client: client}, nil
}

func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("embedding service returned %d", resp.StatusCode)
	}

	var decoded embedResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(decoded.Embedding) > 0 {
		return decoded.Embedding, nil
	}
	if len(decoded.Data) > 0 {
		return decoded.Data[0].Embedding, nil
	}
	return nil, errors.New("embedding response carried no vector")
}

// newHTTPClient creates an HTTP client tuned for outbound service-to-service calls.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
