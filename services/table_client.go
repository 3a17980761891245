package services

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
	"time"

	"github.com/yeremiapane/restaurant-reservation/models"
)

// TableAvailabilityClient is the reservation side's view of the table
// service. SetStatus is used for best-effort occupancy updates, FindAvailable
// for the public availability query.
type TableAvailabilityClient interface {
	SetStatus(ctx context.Context, tableID string, status models.TableStatus, authorization string) error
	FindAvailable(ctx context.Context, q AvailabilityQuery) (json.RawMessage, error)
}

type AvailabilityQuery struct {
	RestaurantID string
	Date         string
	Time         string
	PartySize    int
}

// HTTPTableClient talks to the table service over its REST API.
type HTTPTableClient struct {
	BaseURL    string
	httpClient *http.Client
}

func NewHTTPTableClient(baseURL string, timeout time.Duration) *HTTPTableClient {
	return &HTTPTableClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (tc *HTTPTableClient) SetStatus(ctx context.Context, tableID string, status models.TableStatus, authorization string) error {
	body, err := json.Marshal(map[string]string{"status": string(status)})
	if err != nil {
		return err
	}

	endpoint := tc.BaseURL + "/tables/" + url.PathEscape(tableID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build table status request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := tc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("set table %s to %s: %w", tableID, status, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("set table %s to %s: status %d: %s", tableID, status, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (tc *HTTPTableClient) FindAvailable(ctx context.Context, q AvailabilityQuery) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("restaurantId", q.RestaurantID)
	params.Set("date", q.Date)
	params.Set("time", q.Time)
	params.Set("partySize", strconv.Itoa(q.PartySize))

	endpoint := tc.BaseURL + "/tables/check-availability?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build availability request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := tc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTableServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTableServiceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrTableServiceUnavailable, resp.StatusCode)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: invalid JSON body", ErrTableServiceUnavailable)
	}
	return json.RawMessage(body), nil
}
