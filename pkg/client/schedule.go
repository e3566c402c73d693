package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"recolha/pkg/model"
	"strconv"
)

const (
	headerActorRole = "X-Actor-Role"
	headerActorID   = "X-Actor-ID"
)

// ScheduleClient talks to the scheduling HTTP API. The raw methods return the
// response as is; the typed helpers decode the success envelope and turn any
// other status into an *APIError.
type ScheduleClient struct {
	httpClient *HttpClient
}

type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Reason returns the business rule that rejected the request, if any.
func (e *APIError) Reason() string {
	reason, _ := e.Details["reason"].(string)
	return reason
}

type ListParams struct {
	Status   string
	Category string
	Date     string
	Query    string
	Limit    int
	Offset   int64
}

type Page struct {
	Data       []*model.ScheduleView `json:"data"`
	TotalCount int64                 `json:"total_count"`
	Limit      int                   `json:"limit"`
	Offset     int64                 `json:"offset"`
}

func NewScheduleClient(baseUrl string) *ScheduleClient {
	return &ScheduleClient{
		httpClient: NewHttpClient(baseUrl),
	}
}

func (c *ScheduleClient) HTTP() *HttpClient {
	return c.httpClient
}

func (c *ScheduleClient) Create(body any) (*Response, error) {
	return c.httpClient.POST("/api/v1/schedules", body)
}

func (c *ScheduleClient) Submit(req *model.ScheduleRequest) (*model.Receipt, error) {
	var receipt model.Receipt
	if err := c.decode(c.Create(req))(http.StatusCreated, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *ScheduleClient) List(p ListParams) (*Page, error) {
	q := url.Values{}
	for key, value := range map[string]string{"status": p.Status, "category": p.Category, "date": p.Date, "q": p.Query} {
		if value != "" {
			q.Set(key, value)
		}
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		q.Set("offset", strconv.FormatInt(p.Offset, 10))
	}

	resp, err := c.httpClient.GET("/api/v1/schedules?" + q.Encode())
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var page Page
	if err := resp.DecodeJSON(&page); err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}
	return &page, nil
}

func (c *ScheduleClient) Today() ([]*model.ScheduleView, error) {
	var out []*model.ScheduleView
	if err := c.decode(c.httpClient.GET("/api/v1/schedules/today"))(http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ScheduleClient) Availability(category string) (*model.Availability, error) {
	var out model.Availability
	if err := c.decode(c.httpClient.GET("/api/v1/schedules/availability/" + url.PathEscape(category)))(http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ScheduleClient) GetByProtocol(protocol string) (*model.ScheduleView, error) {
	var out model.ScheduleView
	if err := c.decode(c.httpClient.GET("/api/v1/schedules/protocol/" + url.PathEscape(protocol)))(http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ScheduleClient) Verify(protocol string) (*model.Verification, error) {
	var out model.Verification
	if err := c.decode(c.httpClient.GET("/verify/" + url.PathEscape(protocol)))(http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ScheduleClient) Complete(protocol, role, actorID, photoRef string) (*model.ScheduleView, error) {
	var body any
	if photoRef != "" {
		body = model.CompleteRequest{PhotoRef: photoRef}
	}

	var out model.ScheduleView
	resp, err := c.httpClient.PATCHWithHeaders(
		"/api/v1/schedules/protocol/"+url.PathEscape(protocol)+"/complete",
		body,
		map[string]string{headerActorRole: role, headerActorID: actorID},
	)
	if err := c.decode(resp, err)(http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ScheduleClient) Delete(protocol, role, actorID string) error {
	headers := map[string]string{}
	if role != "" {
		headers[headerActorRole] = role
	}
	if actorID != "" {
		headers[headerActorID] = actorID
	}

	resp, err := c.httpClient.DELETEWithHeaders("/api/v1/schedules/protocol/"+url.PathEscape(protocol), headers)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusNoContent {
		return apiError(resp)
	}
	return nil
}

func (c *ScheduleClient) TodayStats() (*model.TodayStats, error) {
	var out model.TodayStats
	if err := c.decode(c.httpClient.GET("/api/v1/stats/today"))(http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ScheduleClient) Totals() (*model.LifetimeTotals, error) {
	var out model.LifetimeTotals
	if err := c.decode(c.httpClient.GET("/api/v1/stats/totals"))(http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// decode checks the status and unwraps {"data": ...} into target.
func (c *ScheduleClient) decode(resp *Response, err error) func(want int, target any) error {
	return func(want int, target any) error {
		if err != nil {
			return err
		}
		if resp.StatusCode != want {
			return apiError(resp)
		}
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := resp.DecodeJSON(&envelope); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		if err := json.Unmarshal(envelope.Data, target); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
		return nil
	}
}

func apiError(resp *Response) error {
	var body struct {
		Error   string         `json:"error"`
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	}
	apiErr := &APIError{Status: resp.StatusCode}
	if err := resp.DecodeJSON(&body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Error
		apiErr.Details = body.Details
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
