package motapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"motwatch-service/internal/domain/entity"
	"motwatch-service/internal/domain/repository"
	"motwatch-service/pkg/logger"
)

// Upstream date layouts. The trade API returns completion timestamps as
// "2024.01.10 14:22:33" and expiry dates as "2025.01.09".
const (
	completedDateLayout = "2006.01.02 15:04:05"
	expiryDateLayout    = "2006.01.02"
)

// TokenSource supplies a bearer token for upstream requests.
type TokenSource interface {
	GetToken(ctx context.Context) (string, error)
}

// HistoryClient fetches vehicle test history from the MOT history API.
type HistoryClient struct {
	baseURL string
	apiKey  string
	tokens  TokenSource
	client  *http.Client
	logger  logger.Logger
}

// NewHistoryClient creates a new history client with a fixed per-request
// timeout.
func NewHistoryClient(baseURL, apiKey string, tokens TokenSource, timeout time.Duration, logger logger.Logger) repository.HistoryRepository {
	return &HistoryClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		tokens:  tokens,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type vehicleResponse struct {
	Registration  string         `json:"registration"`
	Make          string         `json:"make"`
	Model         string         `json:"model"`
	PrimaryColour string         `json:"primaryColour"`
	MotTests      []testResponse `json:"motTests"`
}

type testResponse struct {
	CompletedDate  string `json:"completedDate"`
	TestResult     string `json:"testResult"`
	ExpiryDate     string `json:"expiryDate"`
	MotTestNumber  string `json:"motTestNumber"`
	RfrAndComments []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"rfrAndComments"`
}

type errorResponse struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// FetchHistory fetches a vehicle record by registration.
func (c *HistoryClient) FetchHistory(ctx context.Context, registration string) (*entity.VehicleRecord, error) {
	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/vehicles/registration/%s", c.baseURL, url.PathEscape(registration))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: fetching history for %s", entity.ErrTimeout, registration)
		}
		return nil, fmt.Errorf("%w: %v", entity.ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: vehicle %s", entity.ErrNotFound, registration)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: vehicle %s", entity.ErrRateLimited, registration)
	default:
		var errBody errorResponse
		json.NewDecoder(resp.Body).Decode(&errBody)
		c.logger.Error("Upstream returned error status",
			"registration", registration,
			"status", resp.StatusCode,
			"upstreamCode", errBody.ErrorCode,
			"upstreamMessage", errBody.ErrorMessage)
		return nil, fmt.Errorf("%w: status %d code=%s message=%s",
			entity.ErrUpstream, resp.StatusCode, errBody.ErrorCode, errBody.ErrorMessage)
	}

	var body vehicleResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: failed to decode vehicle response: %v", entity.ErrUpstream, err)
	}

	return c.toRecord(&body), nil
}

func (c *HistoryClient) toRecord(body *vehicleResponse) *entity.VehicleRecord {
	record := &entity.VehicleRecord{
		Registration: body.Registration,
		Make:         body.Make,
		Model:        body.Model,
		Colour:       body.PrimaryColour,
	}

	for _, t := range body.MotTests {
		completed, err := time.Parse(completedDateLayout, t.CompletedDate)
		if err != nil {
			c.logger.Warn("Skipping test with unparseable completedDate",
				"registration", body.Registration,
				"completedDate", t.CompletedDate)
			continue
		}

		test := entity.MotTest{
			CompletedDate: completed,
			TestResult:    t.TestResult,
			TestNumber:    t.MotTestNumber,
		}

		if t.ExpiryDate != "" {
			if expiry, err := time.Parse(expiryDateLayout, t.ExpiryDate); err == nil {
				test.ExpiryDate = &expiry
			}
		}

		for _, rfr := range t.RfrAndComments {
			test.Defects = append(test.Defects, entity.Defect{
				Type: rfr.Type,
				Text: rfr.Text,
			})
		}

		record.Tests = append(record.Tests, test)
	}

	return record
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
