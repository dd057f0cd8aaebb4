package httpclient

import (
	"context"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client wraps resty for calls to the payment gateway and the mail API.
type Client struct {
	r *resty.Client
}

// Response is a completed HTTP exchange, successful or not.
type Response struct {
	StatusCode int
	Body       []byte
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// New creates a client with a 30s timeout and no retries.
func New() *Client {
	r := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(0).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)

	return &Client{r: r}
}

// WithTimeout sets a custom timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.r.SetTimeout(d)
	}
	return c
}

// WithRetryCount sets how many times a request failing at the transport
// level is retried.
func (c *Client) WithRetryCount(n int) *Client {
	c.r.SetRetryCount(n)
	return c
}

// WithBaseURL sets the prefix for relative request paths.
func (c *Client) WithBaseURL(base string) *Client {
	c.r.SetBaseURL(base)
	return c
}

// WithBearerToken sets a bearer token for authentication.
func (c *Client) WithBearerToken(token string) *Client {
	c.r.SetAuthToken(token)
	return c
}

// Get sends a GET request with optional query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	req := c.r.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	return wrap(req.Get(path))
}

// PostForm sends a form-encoded POST request.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) (*Response, error) {
	return wrap(c.r.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		Post(path))
}

// PostJSON sends a POST request with a JSON body.
func (c *Client) PostJSON(ctx context.Context, path string, body interface{}) (*Response, error) {
	return wrap(c.r.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path))
}

func wrap(resp *resty.Response, err error) (*Response, error) {
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}
