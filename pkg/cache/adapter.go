// Package cache wraps an HTTP cache-and-topics service: a get/set/delete key
// value store with TTL, plus append-only topics that support sequence-number
// polling (§4.1). It is the lowest-level dependency in the stack -- the Task
// Store, the Event Bus and push-config storage all sit on top of it.
package cache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	fiberClient "github.com/gofiber/fiber/v3/client"

	"github.com/driftwood-labs/a2a-core/pkg/errors"
)

const (
	defaultTTLSeconds = 3600
	sentinelKey       = "__a2a_connection_check__"
)

// Format selects how Get decodes a stored value.
type Format string

const (
	FormatRaw    Format = "raw"
	FormatString Format = "string"
	FormatJSON   Format = "json"
)

// Envelope is the dual-mode result shape required by §4.1: when an Adapter's
// ThrowOnError is false, every method returns a nil error and reports failure
// through this envelope instead; when ThrowOnError is true, failures surface
// as a normal Go error and Envelope is left zero.
type Envelope[T any] struct {
	Success bool
	Data    T
	Err     *errors.RpcError
}

// SetOptions configures Adapter.Set.
type SetOptions struct {
	TTLSeconds  int
	Encoding    string // "" or "base64"
	ContentType string
}

// SubscribeResult is the decoded response from TopicSubscribe.
type SubscribeResult struct {
	Items []TopicItem `json:"items"`
}

// TopicItem is one polled element: either a Message or a Discontinuity,
// distinguished by which optional fields are populated. Payload is the exact
// JSON string passed to TopicPublish.
type TopicItem struct {
	Payload             string `json:"payload,omitempty"`
	TopicSequenceNumber *int   `json:"topic_sequence_number,omitempty"`
	NewTopicSequence    *int   `json:"new_topic_sequence,omitempty"`
	NewSequencePage     *int   `json:"new_sequence_page,omitempty"`
}

// IsDiscontinuity reports whether this item signals a gap rather than
// carrying a message payload.
func (i TopicItem) IsDiscontinuity() bool {
	return i.NewTopicSequence != nil
}

// Adapter is an HTTP client for the cache-and-topics service.
type Adapter struct {
	conn         *fiberClient.Client
	retry        *errors.RetryConfig
	ThrowOnError bool
}

// New builds an Adapter rooted at baseURL. By default ThrowOnError is false
// (envelope mode); set it on the returned Adapter to switch modes.
func New(baseURL string) *Adapter {
	return &Adapter{
		conn:  fiberClient.New().SetBaseURL(baseURL),
		retry: errors.DefaultRetryConfig(),
	}
}

// httpError carries the status code of a non-2xx response so isTransient can
// classify it.
type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("cache adapter: unexpected status %d: %s", e.status, e.body)
}

// notFoundError signals a 404 cache miss. It is neither transient (never
// worth retrying) nor a failure worth reporting through Envelope.Err — Get's
// contract treats an absent key as its own outcome, distinct from a call
// that failed (§4.1).
type notFoundError struct{}

func (notFoundError) Error() string { return "cache adapter: key not found" }

func isTransient(err error) bool {
	var he *httpError
	if asHTTPError(err, &he) {
		return he.status >= 500
	}
	if _, ok := err.(notFoundError); ok {
		return false
	}
	// Anything that isn't a classified HTTP error is a transport/network
	// failure and counts as transient.
	return true
}

func asHTTPError(err error, target **httpError) bool {
	he, ok := err.(*httpError)
	if !ok {
		return false
	}
	*target = he
	return true
}

func (a *Adapter) do(fn func() error) error {
	return errors.RetryWithBackoff(a.retry, isTransient, fn)
}

func wrap[T any](a *Adapter, fn func() (T, error)) (Envelope[T], error) {
	data, err := fn()
	if err == nil {
		return Envelope[T]{Success: true, Data: data}, nil
	}

	if _, ok := err.(notFoundError); ok {
		return Envelope[T]{Success: false}, nil
	}

	rpcErr := toRPCError(err)
	if a.ThrowOnError {
		return Envelope[T]{}, rpcErr
	}
	return Envelope[T]{Success: false, Err: rpcErr}, nil
}

func toRPCError(err error) *errors.RpcError {
	if rpcErr, ok := err.(*errors.RpcError); ok {
		return rpcErr
	}
	return errors.ErrInternal.WithMessagef("cache adapter: %s", err.Error())
}

// Get fetches key, passing format to the service as the `format` query
// parameter; Data holds the response body bytes as received. Data is nil and
// Success is false when the key is absent (a 404 is not an error).
func (a *Adapter) Get(ctx context.Context, key string, format Format) (Envelope[[]byte], error) {
	return wrap(a, func() ([]byte, error) {
		var body []byte
		err := a.do(func() error {
			resp, reqErr := a.conn.Get(
				fmt.Sprintf("/cache/%s?format=%s", key, format),
				fiberClient.Config{},
			)
			if reqErr != nil {
				return reqErr
			}
			defer resp.Close()

			switch {
			case resp.StatusCode() == 404:
				return notFoundError{}
			case resp.StatusCode() < 200 || resp.StatusCode() >= 300:
				return &httpError{status: resp.StatusCode(), body: string(resp.Body())}
			}
			body = append([]byte(nil), resp.Body()...)
			return nil
		})
		return body, err
	})
}

// Set stores value under key with the given options, applying the 3600s
// default TTL and optional base64 transport encoding (§4.1).
func (a *Adapter) Set(ctx context.Context, key string, value []byte, opts SetOptions) (Envelope[struct{}], error) {
	return wrap(a, func() (struct{}, error) {
		ttl := opts.TTLSeconds
		if ttl <= 0 {
			ttl = defaultTTLSeconds
		}

		payload := value
		encoding := opts.Encoding
		if encoding == "base64" {
			encoded := base64.StdEncoding.EncodeToString(value)
			payload = []byte(encoded)
		}

		body := struct {
			Value       string `json:"value"`
			TTLSeconds  int    `json:"ttlSeconds"`
			Encoding    string `json:"encoding,omitempty"`
			ContentType string `json:"contentType,omitempty"`
		}{
			Value:       string(payload),
			TTLSeconds:  ttl,
			Encoding:    encoding,
			ContentType: opts.ContentType,
		}

		return struct{}{}, a.do(func() error {
			resp, reqErr := a.conn.Put(
				"/cache/"+key,
				fiberClient.Config{Header: map[string]string{"Content-Type": "application/json"}, Body: body},
			)
			if reqErr != nil {
				return reqErr
			}
			defer resp.Close()
			if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
				return &httpError{status: resp.StatusCode(), body: string(resp.Body())}
			}
			return nil
		})
	})
}

// SetJSON marshals v and stores it with contentType application/json.
func (a *Adapter) SetJSON(ctx context.Context, key string, v any, ttlSeconds int) (Envelope[struct{}], error) {
	data, err := json.Marshal(v)
	if err != nil {
		return wrap(a, func() (struct{}, error) { return struct{}{}, err })
	}
	return a.Set(ctx, key, data, SetOptions{TTLSeconds: ttlSeconds, ContentType: "application/json"})
}

// Delete removes key.
func (a *Adapter) Delete(ctx context.Context, key string) (Envelope[struct{}], error) {
	return wrap(a, func() (struct{}, error) {
		return struct{}{}, a.do(func() error {
			resp, reqErr := a.conn.Delete("/cache/"+key, fiberClient.Config{})
			if reqErr != nil {
				return reqErr
			}
			defer resp.Close()
			if resp.StatusCode() >= 300 && resp.StatusCode() != 404 {
				return &httpError{status: resp.StatusCode(), body: string(resp.Body())}
			}
			return nil
		})
	})
}

// TopicPublish appends payload, the JSON string of an event, to topic.
func (a *Adapter) TopicPublish(ctx context.Context, topic string, payload string) (Envelope[struct{}], error) {
	return wrap(a, func() (struct{}, error) {
		return struct{}{}, a.do(func() error {
			resp, reqErr := a.conn.Post(
				"/topics/"+topic+"/publish",
				fiberClient.Config{Header: map[string]string{"Content-Type": "application/json"}, Body: struct {
					Payload string `json:"payload"`
				}{Payload: payload}},
			)
			if reqErr != nil {
				return reqErr
			}
			defer resp.Close()
			if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
				return &httpError{status: resp.StatusCode(), body: string(resp.Body())}
			}
			return nil
		})
	})
}

// TopicSubscribe polls topic for items from sequenceNumber onward (on
// sequencePage), returning a mix of Messages and Discontinuities. The Event
// Bus passes the next sequence number it expects, one past the last item it
// delivered.
func (a *Adapter) TopicSubscribe(ctx context.Context, topic string, sequenceNumber, sequencePage int) (Envelope[SubscribeResult], error) {
	return wrap(a, func() (SubscribeResult, error) {
		var result SubscribeResult
		err := a.do(func() error {
			resp, reqErr := a.conn.Get(
				fmt.Sprintf("/topics/%s/subscribe?seq=%d&page=%d", topic, sequenceNumber, sequencePage),
				fiberClient.Config{},
			)
			if reqErr != nil {
				return reqErr
			}
			defer resp.Close()
			if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
				return &httpError{status: resp.StatusCode(), body: string(resp.Body())}
			}
			return json.Unmarshal(resp.Body(), &result)
		})
		return result, err
	})
}

// IsValidConnection attempts a lookup on a sentinel key. A "cache not found"
// error body is treated as invalidity; any other response (including a
// clean 404 for the sentinel itself) counts as a valid connection.
func (a *Adapter) IsValidConnection(ctx context.Context) bool {
	resp, err := a.conn.Get("/cache/"+sentinelKey, fiberClient.Config{})
	if err != nil {
		log.Warn("cache adapter: connection check failed", "err", err)
		return false
	}
	defer resp.Close()

	if strings.Contains(strings.ToLower(string(resp.Body())), "cache not found") {
		log.Warn("cache adapter: cache not found", "status", resp.StatusCode())
		return false
	}
	return true
}
