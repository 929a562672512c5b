package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Argus.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Argus.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Argus.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns pipeline segments optionally filtered by status or camera.
func (c *Client) QueueList(req QueueListRequest) (*QueueListResponse, error) {
	var resp QueueListResponse
	if err := c.client.Call("Argus.QueueList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueDescribe returns details for a single segment.
func (c *Client) QueueDescribe(id int64) (*QueueDescribeResponse, error) {
	var resp QueueDescribeResponse
	req := QueueDescribeRequest{ID: id}
	if err := c.client.Call("Argus.QueueDescribe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClear removes every segment from the pipeline.
func (c *Client) QueueClear() (*QueueClearResponse, error) {
	var resp QueueClearResponse
	if err := c.client.Call("Argus.QueueClear", QueueClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClearCompleted removes only completed segments.
func (c *Client) QueueClearCompleted() (*QueueClearCompletedResponse, error) {
	var resp QueueClearCompletedResponse
	if err := c.client.Call("Argus.QueueClearCompleted", QueueClearCompletedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClearFailed removes failed segments.
func (c *Client) QueueClearFailed() (*QueueClearFailedResponse, error) {
	var resp QueueClearFailedResponse
	if err := c.client.Call("Argus.QueueClearFailed", QueueClearFailedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueReset resets segments stuck in processing states.
func (c *Client) QueueReset() (*QueueResetResponse, error) {
	var resp QueueResetResponse
	if err := c.client.Call("Argus.QueueReset", QueueResetRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRetry retries failed segments. An empty id list retries all failed.
func (c *Client) QueueRetry(ids []int64) (*QueueRetryResponse, error) {
	var resp QueueRetryResponse
	req := QueueRetryRequest{IDs: ids}
	if err := c.client.Call("Argus.QueueRetry", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueHealth returns pipeline diagnostics.
func (c *Client) QueueHealth() (*QueueHealthResponse, error) {
	var resp QueueHealthResponse
	if err := c.client.Call("Argus.QueueHealth", QueueHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	var resp DatabaseHealthResponse
	if err := c.client.Call("Argus.DatabaseHealth", DatabaseHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CameraList returns every registered camera.
func (c *Client) CameraList() (*CameraListResponse, error) {
	var resp CameraListResponse
	if err := c.client.Call("Argus.CameraList", CameraListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CameraAdd registers a camera with the daemon.
func (c *Client) CameraAdd(req CameraAddRequest) (*CameraAddResponse, error) {
	var resp CameraAddResponse
	if err := c.client.Call("Argus.CameraAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CameraRemove deletes a camera registration.
func (c *Client) CameraRemove(id string) (*CameraRemoveResponse, error) {
	var resp CameraRemoveResponse
	req := CameraRemoveRequest{ID: id}
	if err := c.client.Call("Argus.CameraRemove", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CameraSetEnabled flips capture for a camera on or off.
func (c *Client) CameraSetEnabled(id string, enabled bool) (*CameraSetEnabledResponse, error) {
	var resp CameraSetEnabledResponse
	req := CameraSetEnabledRequest{ID: id, Enabled: enabled}
	if err := c.client.Call("Argus.CameraSetEnabled", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AlertList returns alerts, newest first.
func (c *Client) AlertList(req AlertListRequest) (*AlertListResponse, error) {
	var resp AlertListResponse
	if err := c.client.Call("Argus.AlertList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AlertAck acknowledges an alert by uid.
func (c *Client) AlertAck(uid, by string) (*AlertAckResponse, error) {
	var resp AlertAckResponse
	req := AlertAckRequest{UID: uid, By: by}
	if err := c.client.Call("Argus.AlertAck", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AlertTest triggers a notification test via the daemon.
func (c *Client) AlertTest() (*AlertTestResponse, error) {
	var resp AlertTestResponse
	if err := c.client.Call("Argus.AlertTest", AlertTestRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AlertRedeliver flips failed alerts back to pending.
func (c *Client) AlertRedeliver() (*AlertRedeliverResponse, error) {
	var resp AlertRedeliverResponse
	if err := c.client.Call("Argus.AlertRedeliver", AlertRedeliverRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RuleList returns every alert rule.
func (c *Client) RuleList() (*RuleListResponse, error) {
	var resp RuleListResponse
	if err := c.client.Call("Argus.RuleList", RuleListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns structured log events from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Argus.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
