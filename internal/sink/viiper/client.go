package viiper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Client is the subset of the VIIPER API a virtual keyboard needs.
type Client struct{ transport *Transport }

func NewClient(t *Transport) *Client { return &Client{transport: t} }

func (c *Client) Ping(ctx context.Context) (*PingResponse, error) {
	raw, err := c.transport.Do(ctx, "ping", nil, nil)
	if err != nil {
		return nil, err
	}
	return parse[PingResponse](raw)
}

func (c *Client) BusList(ctx context.Context) (*BusListResponse, error) {
	raw, err := c.transport.Do(ctx, "bus/list", nil, nil)
	if err != nil {
		return nil, err
	}
	return parse[BusListResponse](raw)
}

func (c *Client) BusCreate(ctx context.Context, busID uint32) (*BusCreateResponse, error) {
	raw, err := c.transport.Do(ctx, "bus/create", fmt.Sprintf("%d", busID), nil)
	if err != nil {
		return nil, err
	}
	return parse[BusCreateResponse](raw)
}

func (c *Client) BusRemove(ctx context.Context, busID uint32) (*BusRemoveResponse, error) {
	raw, err := c.transport.Do(ctx, "bus/remove", fmt.Sprintf("%d", busID), nil)
	if err != nil {
		return nil, err
	}
	return parse[BusRemoveResponse](raw)
}

// DeviceAdd creates a device of devType on busID.
func (c *Client) DeviceAdd(ctx context.Context, busID uint32, devType string) (*Device, error) {
	req := DeviceCreateRequest{Type: &devType}
	params := map[string]string{"id": fmt.Sprintf("%d", busID)}
	raw, err := c.transport.Do(ctx, "bus/{id}/add", req, params)
	if err != nil {
		return nil, err
	}
	return parse[Device](raw)
}

func (c *Client) DeviceRemove(ctx context.Context, busID uint32, devID string) (*DeviceRemoveResponse, error) {
	params := map[string]string{"id": fmt.Sprintf("%d", busID)}
	raw, err := c.transport.Do(ctx, "bus/{id}/remove", devID, params)
	if err != nil {
		return nil, err
	}
	return parse[DeviceRemoveResponse](raw)
}

func parse[T any](data string) (*T, error) {
	if data == "" {
		return nil, errors.New("empty response")
	}
	var problem ApiError
	if err := json.Unmarshal([]byte(data), &problem); err == nil && (problem.Status != 0 || problem.Title != "") {
		return nil, &problem
	}
	var out T
	if err := json.NewDecoder(bytes.NewReader([]byte(data))).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &out, nil
}
