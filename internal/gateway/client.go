// Package gateway talks to the parking backend's REST API. Every request is
// authenticated with the bearer token of the session it is made for, every
// response is decoded into typed entities and validated in one place
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxResponseBytes bounds how much of a response body is buffered
const maxResponseBytes = 16 << 20

// TokenSource yields the bearer token of one signed-in session. An empty
// string means the session has no token
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource for a fixed token
type StaticToken string

// Token implements TokenSource
func (s StaticToken) Token() string { return string(s) }

// ClientConfig holds configuration for creating a Client
type ClientConfig struct {
	// BaseURL is the backend root, e.g. "https://api.example.com"
	BaseURL string
	// HTTPClient is used for all requests. If nil, a client with a traced
	// transport and Timeout is built
	HTTPClient *http.Client
	// Timeout applies only when HTTPClient is nil
	Timeout time.Duration
	// Logger is used for structured logging. If nil, slog.Default() is used
	Logger *slog.Logger
}

// Client holds the backend URL and HTTP transport, shared by every session
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	validate   *validator.Validate
}

// NewClient creates a backend client
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("gateway: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("gateway: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		validate:   validator.New(),
	}, nil
}

// BaseURL returns the backend root without a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do performs an authenticated JSON request. body, when non-nil, is encoded
// as JSON; out, when non-nil, receives the decoded and validated response
func (c *Client) Do(ctx context.Context, tokens TokenSource, method, path string, query url.Values, body, out any) error {
	token := ""
	if tokens != nil {
		token = tokens.Token()
	}
	if token == "" {
		return ErrUnauthenticated
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	return c.send(ctx, token, method, path, query, "application/json", reader, out)
}

// doPublic performs an unauthenticated JSON request (sign-in)
func (c *Client) doPublic(ctx context.Context, method, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("gateway: failed to encode request body: %w", err)
	}
	return c.send(ctx, "", method, path, nil, "application/json", bytes.NewReader(encoded), out)
}

// UploadFile is one file of a multipart upload
type UploadFile struct {
	Name    string
	Content io.Reader
}

// UploadImages posts files as multipart form data under the "files" field
// and returns the URLs the backend stored them at
func (c *Client) UploadImages(ctx context.Context, tokens TokenSource, files []UploadFile) ([]string, error) {
	token := ""
	if tokens != nil {
		token = tokens.Token()
	}
	if token == "" {
		return nil, ErrUnauthenticated
	}

	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)
	for _, file := range files {
		part, err := writer.CreateFormFile("files", file.Name)
		if err != nil {
			return nil, fmt.Errorf("gateway: failed to create form file: %w", err)
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			return nil, fmt.Errorf("gateway: failed to copy %s: %w", file.Name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("gateway: failed to finish multipart body: %w", err)
	}

	var urls []string
	if err := c.send(ctx, token, http.MethodPost, pathUploadImages, nil, writer.FormDataContentType(), &buffer, &urls); err != nil {
		return nil, err
	}
	return urls, nil
}

func (c *Client) send(ctx context.Context, token, method, path string, query url.Values, contentType string, body io.Reader, out any) error {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return fmt.Errorf("gateway: failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", contentType)
	request.Header.Set("Accept", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("gateway: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("gateway: failed to read response body: %w", err)
	}

	c.logger.DebugContext(ctx, "backend request",
		"method", method,
		"path", path,
		"status", response.StatusCode,
		"duration", time.Since(started),
	)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return &HTTPError{
			StatusCode: response.StatusCode,
			Method:     method,
			Path:       path,
			Body:       strings.TrimSpace(string(responseBody)),
		}
	}

	if out == nil || len(bytes.TrimSpace(responseBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(responseBody, out); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	if err := c.check(out); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}

// check validates a decoded response. Structs are validated directly;
// slices are validated element by element
func (c *Client) check(out any) error {
	value := reflect.ValueOf(out)
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return nil
		}
		value = value.Elem()
	}

	switch value.Kind() {
	case reflect.Struct:
		return c.validate.Struct(value.Interface())
	case reflect.Slice:
		for i := 0; i < value.Len(); i++ {
			element := value.Index(i)
			for element.Kind() == reflect.Pointer && !element.IsNil() {
				element = element.Elem()
			}
			if element.Kind() != reflect.Struct {
				continue
			}
			if err := c.validate.Struct(element.Interface()); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
	}
	return nil
}
