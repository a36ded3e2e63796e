package lookup

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

	"go.uber.org/zap"

	"garage-backend-go/internal/models"
)

var (
	// ErrModelNotFound is returned when the lookup service does not know the model.
	ErrModelNotFound = errors.New("model not found by the lookup service")
	// ErrLookupUnavailable is returned for transport failures and unexpected statuses.
	ErrLookupUnavailable = errors.New("lookup service unavailable")
	// ErrInvalidPayload is returned for an empty or malformed response body.
	ErrInvalidPayload = errors.New("lookup service returned an invalid payload")
)

// maxBody bounds the response read from the lookup service.
const maxBody = 1 << 20

// Client fetches model metadata from the scraper service. Every call is
// independent: no caching and no retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for baseURL, e.g. http://localhost:5000/api/fetch_model.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type payload struct {
	ModelName string `json:"modelName"`
	ImageURL  string `json:"imageUrl"`
	Error     string `json:"error"`
}

// Fetch returns the metadata of modelNumber.
func (c *Client) Fetch(ctx context.Context, modelNumber string) (*models.ModelMetadata, error) {
	modelNumber = strings.TrimSpace(modelNumber)
	if modelNumber == "" {
		return nil, models.ErrModelNumberNeeded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+url.PathEscape(modelNumber), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Lookup request failed", zap.String("model", modelNumber), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrLookupUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.logger.Info("Model not found", zap.String("model", modelNumber))
		return nil, fmt.Errorf("%w: '%s'", ErrModelNotFound, modelNumber)
	case resp.StatusCode != http.StatusOK:
		c.logger.Warn("Lookup service error", zap.String("model", modelNumber), zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: status %d", ErrLookupUnavailable, resp.StatusCode)
	}

	var p payload
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidPayload)
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if strings.TrimSpace(p.ModelName) == "" {
		return nil, fmt.Errorf("%w: missing modelName", ErrInvalidPayload)
	}

	return &models.ModelMetadata{
		ModelNumber: modelNumber,
		ModelName:   p.ModelName,
		ImageURL:    p.ImageURL,
	}, nil
}

// UserMessage renders a lookup failure as the retryable message shown to the user.
func UserMessage(err error) string {
	var detail string
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrModelNotFound):
		detail = "Model not found by the lookup service"
	case errors.Is(err, ErrInvalidPayload):
		detail = "The lookup service returned an unreadable answer"
	case errors.Is(err, models.ErrModelNumberNeeded):
		return "Enter a model number first."
	default:
		detail = "Could not reach the lookup service"
	}
	return "Fetch Failed: " + detail + ". Is the lookup service running?"
}
