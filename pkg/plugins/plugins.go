// Package plugins is the client of the plugin registry service, which serves
// entity blueprints and runs transforms.
package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/osintbuddy/backend/internal/util"
	"github.com/osintbuddy/backend/pkg/apperror"
	"github.com/osintbuddy/backend/pkg/common"
	"github.com/osintbuddy/backend/pkg/logger"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Registry is what the engine needs from the plugin service.
type Registry interface {
	Blueprint(ctx context.Context, label string) (common.Entity, error)
	Blueprints(ctx context.Context) (map[string]common.Entity, error)
	RunTransform(ctx context.Context, source common.Entity) ([]common.Entity, error)
}

// Client talks to the plugin registry over HTTP. Concurrent requests are
// capped and identical blueprint lookups in flight are coalesced. Failed
// reads are retried; transforms are sent once.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	reqLock    *semaphore.Weighted
	group      singleflight.Group
	retries    int
	backoff    time.Duration
}

// NewClientParams contains configuration options for creating a Client.
type NewClientParams struct {
	BaseURL               string
	MaxConcurrentRequests int64
	Retries               int
	Backoff               time.Duration
	HTTPClient            *http.Client
}

func NewClient(params NewClientParams) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(params.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse plugins url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("plugins url %q needs scheme and host", params.BaseURL)
	}
	if params.MaxConcurrentRequests <= 0 {
		params.MaxConcurrentRequests = 8
	}
	if params.Retries <= 0 {
		params.Retries = 1
	}
	httpClient := params.HTTPClient
	if httpClient == nil {
		// transforms can run for a long time
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{
		baseURL:    u,
		httpClient: httpClient,
		reqLock:    semaphore.NewWeighted(params.MaxConcurrentRequests),
		retries:    params.Retries,
		backoff:    params.Backoff,
	}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = query.Encode()
	return u.String()
}

// sharedFetchTimeout bounds a coalesced fetch, which is not cancelled with
// the caller that started it.
const sharedFetchTimeout = time.Minute

func (c *Client) do(ctx context.Context, attempts int, method, path string, query url.Values, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	return util.RetryWithContext(ctx, attempts, c.backoff, func(ctx context.Context) ([]byte, error) {
		if err := c.reqLock.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer c.reqLock.Release(1)

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
		if err != nil {
			return nil, util.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return nil, util.Permanent(fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, truncate(data, 200)))
		}
		return data, nil
	})
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	data, err := c.do(ctx, c.retries, http.MethodGet, path, query, nil)
	if err != nil {
		logger.Warn("[Plugins] Request failed", "path", path, "err", err)
		return nil, apperror.NewUpstream(err)
	}
	return data, nil
}

// shared runs fetch once for all callers of key. The fetch is detached from
// the cancellation of whichever caller started it; each caller still stops
// waiting when its own ctx ends.
func (c *Client) shared(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return fetch(fetchCtx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Blueprint fetches the blueprint entity of an entity type.
func (c *Client) Blueprint(ctx context.Context, label string) (common.Entity, error) {
	key := util.ToSnakeCase(label)
	if key == "" {
		return common.Entity{}, apperror.NewBadRequest("entity label is required")
	}
	res, err := c.shared(ctx, "blueprint:"+key, func(ctx context.Context) (any, error) {
		data, err := c.get(ctx, "/blueprint", url.Values{"label": {key}})
		if err != nil {
			return common.Entity{}, err
		}
		var entity common.Entity
		if err := json.Unmarshal(data, &entity); err != nil {
			return common.Entity{}, apperror.NewUpstream(fmt.Errorf("decode blueprint %s: %w", key, err))
		}
		if entity.Data.Label == "" {
			return common.Entity{}, apperror.NewUpstream(fmt.Errorf("no blueprint for %s", key))
		}
		return entity, nil
	})
	if err != nil {
		return common.Entity{}, err
	}
	return res.(common.Entity).Clone(), nil
}

// Blueprints fetches every blueprint, keyed by vertex label.
func (c *Client) Blueprints(ctx context.Context) (map[string]common.Entity, error) {
	res, err := c.shared(ctx, "blueprints", func(ctx context.Context) (any, error) {
		data, err := c.get(ctx, "/refresh", url.Values{"blueprints": {"1"}})
		if err != nil {
			return nil, err
		}
		var entities []common.Entity
		if err := json.Unmarshal(data, &entities); err != nil {
			return nil, apperror.NewUpstream(fmt.Errorf("decode blueprints: %w", err))
		}
		out := make(map[string]common.Entity, len(entities))
		for _, e := range entities {
			out[util.ToSnakeCase(e.Data.Label)] = e
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	shared := res.(map[string]common.Entity)
	out := make(map[string]common.Entity, len(shared))
	for k, v := range shared {
		out[k] = v.Clone()
	}
	return out, nil
}

// RunTransform runs the source entity's transform and returns its results.
// The registry answers with a single entity or a list; no results is an
// upstream error.
func (c *Client) RunTransform(ctx context.Context, source common.Entity) ([]common.Entity, error) {
	// a transform calls out to external services, so it is never replayed
	data, err := c.do(ctx, 1, http.MethodPost, "/transforms", nil, source)
	if err != nil {
		logger.Warn("[Plugins] Transform failed", "transform", source.Transform, "err", err)
		return nil, apperror.NewUpstream(err)
	}
	results, err := decodeResults(data)
	if err != nil {
		return nil, apperror.NewUpstream(err)
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	return results, nil
}

// ErrNoResults is returned when a transform found nothing.
var ErrNoResults = apperror.New(http.StatusUnprocessableEntity, "no_results", "No results.")

func decodeResults(data []byte) ([]common.Entity, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var list []common.Entity
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode transform results: %w", err)
		}
		return list, nil
	}
	var one common.Entity
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, fmt.Errorf("decode transform result: %w", err)
	}
	if one.Data.Label == "" && len(one.Data.Elements) == 0 {
		return nil, nil
	}
	return []common.Entity{one}, nil
}

// Entities lists the registered entity plugins as returned by the registry.
func (c *Client) Entities(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/entities", nil)
}

func (c *Client) Entity(ctx context.Context, id string) (json.RawMessage, error) {
	if id == "" || strings.ContainsAny(id, "/?#") {
		return nil, apperror.NewBadRequest("invalid plugin id")
	}
	return c.get(ctx, "/entities/"+url.PathEscape(id), nil)
}

// Transforms lists the transforms available for an entity type.
func (c *Client) Transforms(ctx context.Context, label string) (json.RawMessage, error) {
	return c.get(ctx, "/transforms", url.Values{"label": {util.ToSnakeCase(label)}})
}

// Refresh asks the registry to reload its plugins.
func (c *Client) Refresh(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/refresh", nil)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// IsNoResults reports whether err means a transform found nothing.
func IsNoResults(err error) bool {
	return errors.Is(err, ErrNoResults)
}
