package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const dialTimeout = 2 * time.Second

// Client is a JSON-RPC client for the daemon's unix socket.
type Client struct {
	client *rpc.Client
	conn   net.Conn
}

// Dial connects to the daemon socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	return &Client{
		client: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn)),
		conn:   conn,
	}, nil
}

// Close shuts down the RPC client and the underlying connection.
func (c *Client) Close() error {
	err := c.client.Close()
	c.conn.Close()
	return err
}

// Status fetches daemon runtime status.
func (c *Client) Status() (StatusResponse, error) {
	var resp StatusResponse
	err := c.client.Call("Splice.Status", StatusRequest{}, &resp)
	return resp, err
}

// Render submits a project document and returns the new job ID.
func (c *Client) Render(projectJSON []byte, outputPath string) (RenderResponse, error) {
	var resp RenderResponse
	req := RenderRequest{ProjectJSON: json.RawMessage(projectJSON), OutputPath: outputPath}
	err := c.client.Call("Splice.Render", req, &resp)
	return resp, err
}

// Jobs lists live render jobs.
func (c *Client) Jobs() (JobsResponse, error) {
	var resp JobsResponse
	err := c.client.Call("Splice.Jobs", JobsRequest{}, &resp)
	return resp, err
}

// Progress fetches progress for one job.
func (c *Client) Progress(jobID string) (ProgressResponse, error) {
	var resp ProgressResponse
	err := c.client.Call("Splice.Progress", ProgressRequest{JobID: jobID}, &resp)
	return resp, err
}

// Cancel requests cancellation of a job.
func (c *Client) Cancel(jobID string) (CancelResponse, error) {
	var resp CancelResponse
	err := c.client.Call("Splice.Cancel", CancelRequest{JobID: jobID}, &resp)
	return resp, err
}

// Pause requests that a job pause at its next stage boundary.
func (c *Client) Pause(jobID string) (PauseResponse, error) {
	var resp PauseResponse
	err := c.client.Call("Splice.Pause", PauseRequest{JobID: jobID}, &resp)
	return resp, err
}

// Resume releases a paused job.
func (c *Client) Resume(jobID string) (ResumeResponse, error) {
	var resp ResumeResponse
	err := c.client.Call("Splice.Resume", ResumeRequest{JobID: jobID}, &resp)
	return resp, err
}

// Events fetches lifecycle events after the since cursor.
func (c *Client) Events(since uint64, limit int, wait bool, waitFor time.Duration) (EventsResponse, error) {
	var resp EventsResponse
	req := EventsRequest{
		Since:      since,
		Limit:      limit,
		Wait:       wait,
		WaitMillis: int(waitFor / time.Millisecond),
	}
	err := c.client.Call("Splice.Events", req, &resp)
	return resp, err
}

// CacheStats fetches artifact cache statistics and memory usage.
func (c *Client) CacheStats() (CacheStatsResponse, error) {
	var resp CacheStatsResponse
	err := c.client.Call("Splice.CacheStats", CacheStatsRequest{}, &resp)
	return resp, err
}

// CacheSweep evicts expired cache entries.
func (c *Client) CacheSweep() (CacheSweepResponse, error) {
	var resp CacheSweepResponse
	err := c.client.Call("Splice.CacheSweep", CacheSweepRequest{}, &resp)
	return resp, err
}

// CacheClear clears one cache region, or all when region is empty.
func (c *Client) CacheClear(region string) (CacheClearResponse, error) {
	var resp CacheClearResponse
	err := c.client.Call("Splice.CacheClear", CacheClearRequest{Region: region}, &resp)
	return resp, err
}

// CacheSetLimits replaces the per-region entry limits.
func (c *Client) CacheSetLimits(preview, metadata, render int) (CacheSetLimitsResponse, error) {
	var resp CacheSetLimitsResponse
	req := CacheSetLimitsRequest{Preview: preview, Metadata: metadata, Render: render}
	err := c.client.Call("Splice.CacheSetLimits", req, &resp)
	return resp, err
}

// History lists finished render jobs, newest first.
func (c *Client) History(limit int) (HistoryResponse, error) {
	var resp HistoryResponse
	err := c.client.Call("Splice.History", HistoryRequest{Limit: limit}, &resp)
	return resp, err
}

// HistoryShow fetches the history entry for one job.
func (c *Client) HistoryShow(jobID string) (HistoryShowResponse, error) {
	var resp HistoryShowResponse
	err := c.client.Call("Splice.HistoryShow", HistoryShowRequest{JobID: jobID}, &resp)
	return resp, err
}

// HistoryClear deletes all recorded history entries.
func (c *Client) HistoryClear() (HistoryClearResponse, error) {
	var resp HistoryClearResponse
	err := c.client.Call("Splice.HistoryClear", HistoryClearRequest{}, &resp)
	return resp, err
}

// DatabaseHealth fetches a health report for the history store.
func (c *Client) DatabaseHealth() (DatabaseHealthResponse, error) {
	var resp DatabaseHealthResponse
	err := c.client.Call("Splice.DatabaseHealth", DatabaseHealthRequest{}, &resp)
	return resp, err
}

// Logs reads daemon log lines. A negative offset selects the last limit
// lines; follow polls server-side up to waitFor when nothing is new.
func (c *Client) Logs(offset int64, limit int, follow bool, waitFor time.Duration) (LogsResponse, error) {
	var resp LogsResponse
	req := LogsRequest{
		Offset:     offset,
		Limit:      limit,
		Follow:     follow,
		WaitMillis: int(waitFor / time.Millisecond),
	}
	err := c.client.Call("Splice.Logs", req, &resp)
	return resp, err
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification() (TestNotificationResponse, error) {
	var resp TestNotificationResponse
	err := c.client.Call("Splice.TestNotification", TestNotificationRequest{}, &resp)
	return resp, err
}

// Shutdown asks the daemon process to exit.
func (c *Client) Shutdown() (ShutdownResponse, error) {
	var resp ShutdownResponse
	err := c.client.Call("Splice.Shutdown", ShutdownRequest{}, &resp)
	return resp, err
}
