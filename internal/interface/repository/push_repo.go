package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"motwatch-service/internal/domain/entity"
	"motwatch-service/internal/domain/repository"
	"motwatch-service/pkg/logger"
)

// HTTPPushRepository delivers push payloads through the push relay service.
type HTTPPushRepository struct {
	logger      logger.Logger
	baseURL     string
	bearerToken string
	ttl         time.Duration
	client      *http.Client
}

// NewHTTPPushRepository creates a new push repository
func NewHTTPPushRepository(baseURL, bearerToken string, ttl time.Duration, logger logger.Logger) repository.PushRepository {
	return &HTTPPushRepository{
		logger:      logger,
		baseURL:     baseURL,
		bearerToken: bearerToken,
		ttl:         ttl,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

type pushRequest struct {
	Endpoint entity.PushEndpoint `json:"endpoint"`
	TTL      int                 `json:"ttl"`
	Payload  *entity.PushMessage `json:"payload"`
}

// Send delivers one message to one endpoint. A 404 or 410 from the relay
// means the endpoint is permanently gone and maps to entity.ErrEndpointGone.
func (r *HTTPPushRepository) Send(ctx context.Context, endpoint entity.PushEndpoint, msg *entity.PushMessage) error {
	body := pushRequest{
		Endpoint: endpoint,
		TTL:      int(r.ttl.Seconds()),
		Payload:  msg,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/push", r.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+r.bearerToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send push request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		r.logger.Debug("Push delivered",
			"registration", msg.Registration,
			"status", resp.StatusCode)
		return nil
	case http.StatusNotFound, http.StatusGone:
		return fmt.Errorf("%w: relay returned status %d", entity.ErrEndpointGone, resp.StatusCode)
	default:
		var errorBody map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errorBody)
		return fmt.Errorf("push relay returned status %d: %v", resp.StatusCode, errorBody)
	}
}
