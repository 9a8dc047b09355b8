// Package gateway is the HTTP client for the statistics REST backend.
// It performs no caching; every call is a network round trip.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"vitalstats/internal/config"
	"vitalstats/internal/domain"
	"vitalstats/internal/metrics"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 32 << 20

// Endpoint templates, used as metric labels.
const (
	endpointRegions                = "/regioes"
	endpointStates                 = "/ufs"
	endpointMunicipalities         = "/municipios"
	endpointStateStatistics        = "/ufs/{id}/{ano}/estatisticas"
	endpointMunicipalityStatistics = "/ufs/{id}/{ano}/municipios/estatisticas"
	endpointCartorios              = "/cartorios"
	endpointCartorio               = "/cartorios/{id}"
)

// Client talks to the statistics backend.
type Client struct {
	baseURL       string
	http          *http.Client
	maxRetries    int
	retryInterval time.Duration
	logger        *slog.Logger
}

// NewClient creates a backend client from configuration.
func NewClient(cfg *config.BackendConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL:       cfg.BaseURL,
		http:          &http.Client{Timeout: cfg.Timeout},
		maxRetries:    cfg.MaxRetries,
		retryInterval: cfg.RetryInterval,
		logger:        logger,
	}
}

// --- Reference data ---

// Regions fetches every macro-region.
func (c *Client) Regions(ctx context.Context) ([]domain.Region, error) {
	var out []domain.Region
	if err := c.get(ctx, endpointRegions, "/regioes", nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// States fetches the states of a region, or all states for AllRegions.
func (c *Client) States(ctx context.Context, region domain.RegionFilter) ([]domain.State, error) {
	var query url.Values
	if !region.IsAll() {
		query = url.Values{"regiao_id": {region.String()}}
	}

	var out []domain.State
	if err := c.get(ctx, endpointStates, "/ufs", query, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// Municipalities fetches every municipality.
func (c *Client) Municipalities(ctx context.Context) ([]domain.Municipality, error) {
	var out []domain.Municipality
	if err := c.get(ctx, endpointMunicipalities, "/municipios", nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// MunicipalitiesByState fetches every municipality and keeps those of the given state.
func (c *Client) MunicipalitiesByState(ctx context.Context, stateID int64) ([]domain.Municipality, error) {
	if stateID <= 0 {
		return nil, domain.NewValidationError("uf", "must be positive")
	}
	all, err := c.Municipalities(ctx)
	if err != nil {
		return nil, err
	}
	return domain.MunicipalitiesOf(all, stateID), nil
}

// --- Statistics ---

// StateStatistics fetches the statistic records of a state for a year.
func (c *Client) StateStatistics(ctx context.Context, stateID int64, year int) ([]domain.StatisticRecord, error) {
	if err := validateStateYear(stateID, year); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/ufs/%d/%d/estatisticas", stateID, year)
	var out []domain.StatisticRecord
	if err := c.get(ctx, endpointStateStatistics, path, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// MunicipalityStatistics fetches the statistic records of every municipality of a state.
func (c *Client) MunicipalityStatistics(ctx context.Context, stateID int64, year int) ([]domain.StatisticRecord, error) {
	if err := validateStateYear(stateID, year); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/ufs/%d/%d/municipios/estatisticas", stateID, year)
	var out []domain.StatisticRecord
	if err := c.get(ctx, endpointMunicipalityStatistics, path, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// --- Cartórios ---

// ListCartorios fetches every cartório.
func (c *Client) ListCartorios(ctx context.Context) ([]domain.Cartorio, error) {
	var out []domain.Cartorio
	if err := c.get(ctx, endpointCartorios, "/cartorios", nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// GetCartorio fetches one cartório.
func (c *Client) GetCartorio(ctx context.Context, id int64) (*domain.Cartorio, error) {
	var out domain.Cartorio
	if err := c.get(ctx, endpointCartorio, cartorioPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCartorio validates the input and creates a cartório.
func (c *Client) CreateCartorio(ctx context.Context, in *domain.CartorioInput) (*domain.Cartorio, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var out domain.Cartorio
	if err := c.send(ctx, http.MethodPost, endpointCartorios, "/cartorios", in, &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		out = domain.Cartorio{Nome: in.Nome, Email: in.Email, CNPJ: in.CNPJ}
	}
	return &out, nil
}

// UpdateCartorio validates the input and replaces a cartório.
func (c *Client) UpdateCartorio(ctx context.Context, id int64, in *domain.CartorioInput) (*domain.Cartorio, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var out domain.Cartorio
	if err := c.send(ctx, http.MethodPut, endpointCartorio, cartorioPath(id), in, &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		out = domain.Cartorio{ID: id, Nome: in.Nome, Email: in.Email, CNPJ: in.CNPJ}
	}
	return &out, nil
}

// DeleteCartorio removes a cartório.
func (c *Client) DeleteCartorio(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodDelete, endpointCartorio, cartorioPath(id), nil, nil)
}

// --- Transport ---

// get performs an idempotent GET, retrying transport errors and 5xx responses.
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	var b backoff.BackOff = &backoff.StopBackOff{}
	if c.maxRetries > 0 {
		b = backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryInterval), uint64(c.maxRetries))
	}
	return c.do(ctx, http.MethodGet, endpoint, path, query, nil, out, true, b)
}

// send performs a write. Writes are never retried and may answer with an empty body.
func (c *Client) send(ctx context.Context, method, endpoint, path string, body, out any) error {
	return c.do(ctx, method, endpoint, path, nil, body, out, false, &backoff.StopBackOff{})
}

// do runs one request with retries. When requireBody is set an empty 2xx
// body is a decode failure.
func (c *Client) do(ctx context.Context, method, endpoint, path string, query url.Values, body, out any, requireBody bool, b backoff.BackOff) error {
	start := time.Now()
	defer func() {
		metrics.GatewayRequestLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return &domain.RemoteFetchError{Endpoint: path, Err: fmt.Errorf("failed to encode request body: %w", err)}
		}
	}

	attempt := 0
	operation := func() error {
		attempt++
		status, err := c.roundTrip(ctx, method, target, payload, out, requireBody)
		label := "error"
		if status != 0 {
			label = strconv.Itoa(status)
		}
		metrics.GatewayRequestsTotal.WithLabelValues(endpoint, label).Inc()

		if err == nil {
			return nil
		}

		fetchErr := &domain.RemoteFetchError{Endpoint: path, Status: status, Err: err}
		// 4xx and undecodable 2xx bodies will not improve on retry
		if status != 0 && status < http.StatusInternalServerError {
			return backoff.Permanent(fetchErr)
		}
		c.logger.Debug("backend request failed",
			"method", method,
			"endpoint", path,
			"status", status,
			"attempt", attempt,
			"error", err,
		)
		return fetchErr
	}

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	if err == nil {
		return nil
	}

	var fetchErr *domain.RemoteFetchError
	if !errors.As(err, &fetchErr) {
		fetchErr = &domain.RemoteFetchError{Endpoint: path, Err: err}
	}
	c.logger.Warn("backend request failed",
		"method", method,
		"endpoint", path,
		"status", fetchErr.Status,
		"attempts", attempt,
		"error", fetchErr.Err,
	)
	return fetchErr
}

// roundTrip sends one request and decodes a 2xx body into out.
// It returns the HTTP status, or zero when no response was received.
func (c *Client) roundTrip(ctx context.Context, method, target string, payload []byte, out any, requireBody bool) (int, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("unexpected status: %s", http.StatusText(resp.StatusCode))
	}

	if out == nil {
		return resp.StatusCode, nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		if requireBody {
			return resp.StatusCode, errors.New("failed to decode response: empty body")
		}
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func cartorioPath(id int64) string {
	return "/cartorios/" + strconv.FormatInt(id, 10)
}

func validateStateYear(stateID int64, year int) error {
	problems := map[string][]string{}
	if stateID <= 0 {
		problems["uf"] = []string{"must be positive"}
	}
	if year <= 0 {
		problems["ano"] = []string{"must be positive"}
	}
	if len(problems) > 0 {
		return &domain.ValidationError{Problems: problems}
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
