package dcmsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to one DCM service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			// Login and registration hash a password; leave room for it.
			Timeout: 30 * time.Second,
		},
	}
}

// Invoke calls channel with positional arguments. A channel that ran and
// failed is not an error here: check Response.Success.
func (c *Client) Invoke(ctx context.Context, channel string, args ...any) (*Response, error) {
	if args == nil {
		args = []any{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/ipc/"+url.PathEscape(channel),
		bytes.NewReader(body),
		map[string]string{"Content-Type": "application/json"},
	)
	if err != nil {
		return nil, err
	}

	var res Response
	if err := decodeJSON(resp, &res, http.StatusOK); err != nil {
		return nil, err
	}
	return &res, nil
}

// call is Invoke with a failed channel turned into a *ChannelError.
func (c *Client) call(ctx context.Context, channel string, args ...any) (*Response, error) {
	res, err := c.Invoke(ctx, channel, args...)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, &ChannelError{Channel: channel, Message: res.Message}
	}
	return res, nil
}

func (c *Client) RegisterUser(ctx context.Context, username, password, serialNumber string) error {
	_, err := c.call(ctx, "register-user", username, password, serialNumber)
	return err
}

func (c *Client) LoginUser(ctx context.Context, username, password string) (*UserSummary, error) {
	res, err := c.call(ctx, "login-user", username, password)
	if err != nil {
		return nil, err
	}
	if res.User == nil {
		return nil, fmt.Errorf("login-user: response carried no user")
	}
	return res.User, nil
}

// SetUser replaces the parameter block of mode. settings is encoded as
// JSON, so a map or any struct with the right field names works.
func (c *Client) SetUser(ctx context.Context, username, mode string, settings any) error {
	_, err := c.call(ctx, "set-user", username, mode, settings)
	return err
}

// GetSettingsForMode returns the stored block of mode as raw JSON.
func (c *Client) GetSettingsForMode(ctx context.Context, username, mode string) (json.RawMessage, error) {
	res, err := c.call(ctx, "get-settings-for-mode", username, mode)
	if err != nil {
		return nil, err
	}
	return res.Settings, nil
}

// DownloadParameterLog exports the user's parameter changes and returns the
// directory the service wrote the file to.
func (c *Client) DownloadParameterLog(ctx context.Context, username string) (string, error) {
	res, err := c.call(ctx, "download-parameter-log", username)
	if err != nil {
		return "", err
	}
	return res.Directory, nil
}

func (c *Client) DownloadLoginHistory(ctx context.Context, username string) (string, error) {
	res, err := c.call(ctx, "download-login-history", username)
	if err != nil {
		return "", err
	}
	return res.Directory, nil
}
