// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const registryContentType = "application/vnd.schemaregistry.v1+json"

// HTTPRegistry talks to a Confluent-compatible schema registry. Results are
// cached for the life of the process; ids are immutable on the server.
type HTTPRegistry struct {
	baseURL string
	client  *http.Client

	mu       sync.RWMutex
	subjects map[string]int // subject + "\x00" + schema -> id
	schemas  map[int]string
}

// NewHTTPRegistry returns a client for the registry at baseURL. A nil client
// gets a 10 second timeout.
func NewHTTPRegistry(baseURL string, client *http.Client) *HTTPRegistry {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPRegistry{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
		subjects: make(map[string]int),
		schemas:  make(map[int]string),
	}
}

type registerRequest struct {
	Schema     string `json:"schema"`
	SchemaType string `json:"schemaType"`
}

type registerResponse struct {
	ID int `json:"id"`
}

type schemaResponse struct {
	Schema     string `json:"schema"`
	SchemaType string `json:"schemaType,omitempty"`
}

type registryError struct {
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message"`
}

// Register registers schema under subject and returns its global id.
func (r *HTTPRegistry) Register(ctx context.Context, subject, schema string) (int, error) {
	cacheKey := subject + "\x00" + schema
	r.mu.RLock()
	id, ok := r.subjects[cacheKey]
	r.mu.RUnlock()
	if ok {
		return id, nil
	}

	body, err := json.Marshal(registerRequest{Schema: schema, SchemaType: "JSON"})
	if err != nil {
		return 0, err
	}
	endpoint := fmt.Sprintf("%s/subjects/%s/versions", r.baseURL, url.PathEscape(subject))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", registryContentType)
	req.Header.Set("Accept", registryContentType)

	var out registerResponse
	if err := r.do(req, &out); err != nil {
		return 0, fmt.Errorf("register subject %s: %w", subject, err)
	}

	r.mu.Lock()
	r.subjects[cacheKey] = out.ID
	r.schemas[out.ID] = schema
	r.mu.Unlock()
	return out.ID, nil
}

// Lookup fetches the schema registered under id.
func (r *HTTPRegistry) Lookup(ctx context.Context, id int) (string, error) {
	r.mu.RLock()
	schema, ok := r.schemas[id]
	r.mu.RUnlock()
	if ok {
		return schema, nil
	}

	endpoint := r.baseURL + "/schemas/ids/" + strconv.Itoa(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", registryContentType)

	var out schemaResponse
	if err := r.do(req, &out); err != nil {
		return "", fmt.Errorf("lookup schema %d: %w", id, err)
	}

	r.mu.Lock()
	r.schemas[id] = out.Schema
	r.mu.Unlock()
	return out.Schema, nil
}

func (r *HTTPRegistry) do(req *http.Request, out any) error {
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrSchemaNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var rerr registryError
		if json.Unmarshal(payload, &rerr) == nil && rerr.Message != "" {
			return fmt.Errorf("registry returned %d (code %d): %s", resp.StatusCode, rerr.ErrorCode, rerr.Message)
		}
		return fmt.Errorf("registry returned %d", resp.StatusCode)
	}
	return json.Unmarshal(payload, out)
}

// MemoryRegistry is an in-process Registry for tests and single-process runs.
type MemoryRegistry struct {
	mu       sync.Mutex
	next     int
	subjects map[string]int
	schemas  map[int]string
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		next:     1,
		subjects: make(map[string]int),
		schemas:  make(map[int]string),
	}
}

func (r *MemoryRegistry) Register(_ context.Context, subject, schema string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := subject + "\x00" + schema
	if id, ok := r.subjects[key]; ok {
		return id, nil
	}
	id := r.next
	r.next++
	r.subjects[key] = id
	r.schemas[id] = schema
	return id, nil
}

func (r *MemoryRegistry) Lookup(_ context.Context, id int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	schema, ok := r.schemas[id]
	if !ok {
		return "", ErrSchemaNotFound
	}
	return schema, nil
}

var (
	_ Registry = (*HTTPRegistry)(nil)
	_ Registry = (*MemoryRegistry)(nil)
)
