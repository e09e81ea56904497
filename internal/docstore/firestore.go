package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"checkin/internal/config"
	"checkin/internal/metrics"
)

const defaultPageSize = 300

// errRetryable marks failures worth another attempt (transport errors and 5xx).
var errRetryable = errors.New("retryable")

// RemoteStore talks to the Firestore REST API using a static API key.
type RemoteStore struct {
	BaseURL   string
	ProjectID string
	APIKey    string
	HTTP      *http.Client
	Timeout   time.Duration
	Retries   int
	PageSize  int

	breaker *gobreaker.CircuitBreaker
}

// NewRemoteStore creates a Firestore client. Each request is bounded by timeout
// and retried up to retries times on transport errors and 5xx responses.
func NewRemoteStore(baseURL, projectID, apiKey string, timeout time.Duration, retries int) *RemoteStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &RemoteStore{
		BaseURL:   baseURL,
		ProjectID: projectID,
		APIKey:    apiKey,
		HTTP:      &http.Client{Timeout: timeout},
		Timeout:   timeout,
		Retries:   retries,
		PageSize:  defaultPageSize,
		breaker:   config.NewCircuitBreaker("Firestore", 30*time.Second),
	}
}

func (s *RemoteStore) Durable() bool { return true }
func (s *RemoteStore) Name() string  { return "firestore" }

type putRequest struct {
	Fields Fields `json:"fields"`
}

type wireDocument struct {
	Name   string `json:"name"`
	Fields Fields `json:"fields"`
}

type listResponse struct {
	Documents     []wireDocument `json:"documents"`
	NextPageToken string         `json:"nextPageToken"`
}

// Put creates a document and returns the id Firestore assigned to it.
func (s *RemoteStore) Put(ctx context.Context, collection string, fields Fields) (string, error) {
	body, err := json.Marshal(putRequest{Fields: fields})
	if err != nil {
		return "", &StoreError{Op: "put", Collection: collection, Err: err}
	}

	var doc wireDocument
	if err := s.call(ctx, "put", collection, http.MethodPost, s.collectionURL(collection, nil), body, &doc); err != nil {
		metrics.StoreErrors.WithLabelValues(collection, "put").Inc()
		return "", err
	}
	return path.Base(doc.Name), nil
}

// ListAll pages through the collection. Any failure is logged and yields no documents.
func (s *RemoteStore) ListAll(ctx context.Context, collection string) []Document {
	var docs []Document
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("pageSize", strconv.Itoa(s.PageSize))
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var page listResponse
		if err := s.call(ctx, "list", collection, http.MethodGet, s.collectionURL(collection, q), nil, &page); err != nil {
			metrics.StoreErrors.WithLabelValues(collection, "list").Inc()
			log.Printf("list %s failed: %v", collection, err)
			return nil
		}
		for _, d := range page.Documents {
			docs = append(docs, Document{ID: path.Base(d.Name), Fields: d.Fields})
		}
		if page.NextPageToken == "" {
			return docs
		}
		pageToken = page.NextPageToken
	}
}

func (s *RemoteStore) collectionURL(collection string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	q.Set("key", s.APIKey)
	return fmt.Sprintf("%s/projects/%s/databases/(default)/documents/%s?%s",
		s.BaseURL, url.PathEscape(s.ProjectID), url.PathEscape(collection), q.Encode())
}

// call runs one logical request through the circuit breaker with bounded retries.
func (s *RemoteStore) call(ctx context.Context, op, collection, method, target string, body []byte, out any) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		var lastErr error
		for attempt := 0; attempt <= s.Retries; attempt++ {
			if attempt > 0 {
				select {
				case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			lastErr = s.once(ctx, method, target, body, out)
			if lastErr == nil || !errors.Is(lastErr, errRetryable) {
				return nil, lastErr
			}
		}
		return nil, lastErr
	})
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		se.Op, se.Collection = op, collection
		return se
	}
	return &StoreError{Op: op, Collection: collection, Err: err}
}

func (s *RemoteStore) once(ctx context.Context, method, target string, body []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", errRetryable, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 500 {
		return &StoreError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %s", errRetryable, bytes.TrimSpace(data))}
	}
	if resp.StatusCode >= 300 {
		return &StoreError{StatusCode: resp.StatusCode, Err: errors.New(string(bytes.TrimSpace(data)))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response failed: %w", err)
	}
	return nil
}
