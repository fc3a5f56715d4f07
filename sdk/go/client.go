package traylinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Trayline HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// MealTask represents the API meal task model.
type MealTask struct {
	ID                  string  `json:"id"`
	PatientID           string  `json:"patientId"`
	MealType            string  `json:"mealType"`
	AssignedTo          string  `json:"assignedTo"`
	PreparationStatus   string  `json:"preparationStatus"`
	DeliveryStatus      string  `json:"deliveryStatus"`
	DeliveryPersonnelID *string `json:"deliveryPersonnelId,omitempty"`
	DeliveryTimestamp   *string `json:"deliveryTimestamp,omitempty"`
	DeliveryNotes       *string `json:"deliveryNotes,omitempty"`
	CreatedAt           string  `json:"createdAt"`
	UpdatedAt           string  `json:"updatedAt"`
}

// Alert represents a derived delay alert.
type Alert struct {
	TaskID         string `json:"taskId"`
	Kind           string `json:"kind"`
	PatientName    string `json:"patientName"`
	AssignedName   string `json:"assignedName"`
	ElapsedMinutes int    `json:"elapsedMinutes"`
	CreatedAt      string `json:"createdAt"`
}

// Notification represents an inbox entry.
type Notification struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	IsRead    bool   `json:"isRead"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges credentials for a bearer token and stores it on the client.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return err
	}
	c.BearerToken = resp.Token
	return nil
}

// CreateMealTask creates a task for a patient and meal slot.
func (c *Client) CreateMealTask(ctx context.Context, patientID, mealType, assignedTo string) (MealTask, error) {
	body := map[string]any{
		"patientId":  patientID,
		"mealType":   mealType,
		"assignedTo": assignedTo,
	}
	var resp MealTask
	err := c.do(ctx, http.MethodPost, "v1/meal-tasks", body, &resp)
	return resp, err
}

// ListMealTasks returns every task.
func (c *Client) ListMealTasks(ctx context.Context) ([]MealTask, error) {
	var resp []MealTask
	err := c.do(ctx, http.MethodGet, "v1/meal-tasks-all", nil, &resp)
	return resp, err
}

// AssignedMealTasks returns tasks assigned to a pantry user.
func (c *Client) AssignedMealTasks(ctx context.Context, userID string) ([]MealTask, error) {
	var resp []MealTask
	endpoint := fmt.Sprintf("v1/assigned-meal-tasks/%s", url.PathEscape(userID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// PreparedMealTasks returns tasks whose preparation is done.
func (c *Client) PreparedMealTasks(ctx context.Context) ([]MealTask, error) {
	var resp []MealTask
	err := c.do(ctx, http.MethodGet, "v1/prepared-meal-tasks", nil, &resp)
	return resp, err
}

// SetPreparationStatus sets the preparation axis of a task.
func (c *Client) SetPreparationStatus(ctx context.Context, taskID, status string) (MealTask, error) {
	var resp MealTask
	endpoint := fmt.Sprintf("v1/meal-tasks/%s/status", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPut, endpoint, map[string]string{"preparationStatus": status}, &resp)
	return resp, err
}

// AssignDeliveryPersonnel assigns a courier and moves delivery to out_for_delivery.
func (c *Client) AssignDeliveryPersonnel(ctx context.Context, taskID, personnelID string) (MealTask, error) {
	var resp MealTask
	endpoint := fmt.Sprintf("v1/assign-delivery-personnel/%s", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPut, endpoint, map[string]string{"deliveryPersonnelId": personnelID}, &resp)
	return resp, err
}

// MarkDelivered finalizes delivery with optional notes.
func (c *Client) MarkDelivered(ctx context.Context, taskID string, notes *string) (MealTask, error) {
	body := map[string]any{}
	if notes != nil {
		body["deliveryNotes"] = *notes
	}
	var resp MealTask
	endpoint := fmt.Sprintf("v1/meal-tasks/%s/mark-as-delivered", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPut, endpoint, body, &resp)
	return resp, err
}

// Alerts derives delay alerts from current task state.
func (c *Client) Alerts(ctx context.Context) ([]Alert, error) {
	var resp []Alert
	err := c.do(ctx, http.MethodGet, "v1/alerts", nil, &resp)
	return resp, err
}

// Notifications returns a user's inbox.
func (c *Client) Notifications(ctx context.Context, userID string) ([]Notification, error) {
	var resp []Notification
	endpoint := fmt.Sprintf("v1/users/%s/notifications", url.PathEscape(userID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
