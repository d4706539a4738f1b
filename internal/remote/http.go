package remote

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sitepulse/kioskd/internal/model"
)

// Endpoint paths on the system of record.
const (
	PathActivate  = "/kiosk/activate"
	PathLogs      = "/kiosk/logs"
	PathKiosk     = "/kiosk/%s/config"
	PathEmployees = "/organizations/%s/employees"
	PathHealth    = "/health"
)

// HTTPClient implements Client over JSON/HTTP.
type HTTPClient struct {
	transport *Transport
	validate  *validator.Validate
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient initializes the API client.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		transport: NewTransport(baseURL, token, timeout),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Transport exposes the underlying transport (used by the connectivity probe).
func (c *HTTPClient) Transport() *Transport {
	return c.transport
}

func (c *HTTPClient) VerifyActivationCode(ctx context.Context, code string) (Activation, error) {
	const op = "verify activation code"

	var resp struct {
		Data Activation `json:"data"`
	}
	if err := c.transport.PostJSON(ctx, op, PathActivate, map[string]string{"code": code}, &resp); err != nil {
		return Activation{}, err
	}
	if err := c.validate.Struct(resp.Data); err != nil {
		return Activation{}, &Error{Op: op, Err: fmt.Errorf("invalid response: %w", err)}
	}
	return resp.Data, nil
}

// pushLogsRequest is the wire shape of a push batch.
type pushLogsRequest struct {
	Logs []model.AttendanceLog `json:"logs"`
}

func (c *HTTPClient) PushLogs(ctx context.Context, logs []model.AttendanceLog) error {
	return c.transport.PostJSON(ctx, "push logs", PathLogs, pushLogsRequest{Logs: logs}, nil)
}

func (c *HTTPClient) FetchKioskConfig(ctx context.Context, terminalID string) (model.KioskConfig, error) {
	const op = "fetch kiosk config"

	var resp struct {
		Data model.KioskConfig `json:"data"`
	}
	path := fmt.Sprintf(PathKiosk, url.PathEscape(terminalID))
	if err := c.transport.GetJSON(ctx, op, path, nil, &resp); err != nil {
		return model.KioskConfig{}, err
	}
	if err := c.validate.Struct(resp.Data); err != nil {
		return model.KioskConfig{}, &Error{Op: op, Err: fmt.Errorf("invalid response: %w", err)}
	}
	return resp.Data, nil
}

// employeeDTO validates roster rows before they reach the cache.
type employeeDTO struct {
	ID        string `json:"id" validate:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	PIN       string `json:"pin_code"`
	JobTitle  string `json:"job_title"`
	AvatarURL string `json:"avatar_url"`
}

func (c *HTTPClient) FetchEmployees(ctx context.Context, orgID string) ([]model.Employee, error) {
	const op = "fetch organization employees"

	var resp struct {
		Data []employeeDTO `json:"data" validate:"dive"`
	}
	path := fmt.Sprintf(PathEmployees, url.PathEscape(orgID))
	if err := c.transport.GetJSON(ctx, op, path, nil, &resp); err != nil {
		return nil, err
	}
	if err := c.validate.Struct(resp); err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("invalid response: %w", err)}
	}

	employees := make([]model.Employee, 0, len(resp.Data))
	for _, d := range resp.Data {
		employees = append(employees, model.Employee{
			ID:        d.ID,
			FirstName: d.FirstName,
			LastName:  d.LastName,
			PIN:       d.PIN,
			JobTitle:  d.JobTitle,
			AvatarURL: d.AvatarURL,
		})
	}
	return employees, nil
}
