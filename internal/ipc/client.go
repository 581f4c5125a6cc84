package ipc

import (
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"presswatch/internal/api"
	"presswatch/internal/daemon"
)

// Client talks to a running daemon over its unix socket.
type Client struct {
	rpcClient *rpc.Client
}

// Dial connects to the daemon socket with a short timeout so a dead
// daemon fails fast instead of hanging the CLI.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	return &Client{rpcClient: jsonrpc.NewClient(conn)}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.rpcClient.Close()
}

func (c *Client) call(method string, args, reply any) error {
	return c.rpcClient.Call(ServiceName+"."+method, args, reply)
}

// Status fetches the daemon self-report.
func (c *Client) Status() (daemon.Status, error) {
	var reply StatusReply
	if err := c.call("Status", Empty{}, &reply); err != nil {
		return daemon.Status{}, err
	}
	return reply.Status, nil
}

// Enqueue creates a new job.
func (c *Client) Enqueue(jobType string, paperIDs []int64) (api.JobSummary, error) {
	var reply api.JobSummary
	err := c.call("Enqueue", EnqueueArgs{JobType: jobType, PaperIDs: paperIDs}, &reply)
	return reply, err
}

// Cancel cancels a job's pending items.
func (c *Client) Cancel(jobID int64) (api.CancelResponse, error) {
	var reply api.CancelResponse
	err := c.call("Cancel", CancelArgs{JobID: jobID}, &reply)
	return reply, err
}

// ClearQueue cancels all pending items.
func (c *Client) ClearQueue() (api.ClearQueueResponse, error) {
	var reply api.ClearQueueResponse
	err := c.call("ClearQueue", Empty{}, &reply)
	return reply, err
}

// ClearHistory deletes terminal jobs.
func (c *Client) ClearHistory() (api.ClearHistoryResponse, error) {
	var reply api.ClearHistoryResponse
	err := c.call("ClearHistory", Empty{}, &reply)
	return reply, err
}

// Control reads the pause flag.
func (c *Client) Control() (api.QueueState, error) {
	var reply api.QueueState
	err := c.call("Control", ControlArgs{}, &reply)
	return reply, err
}

// SetPaused writes the pause flag.
func (c *Client) SetPaused(paused bool) (api.QueueState, error) {
	var reply api.QueueState
	err := c.call("Control", ControlArgs{Set: true, Paused: paused}, &reply)
	return reply, err
}

// ActiveJobs lists jobs with outstanding work.
func (c *Client) ActiveJobs() ([]api.JobSummary, error) {
	var reply JobsReply
	err := c.call("ActiveJobs", Empty{}, &reply)
	return reply.Jobs, err
}

// ActiveItems lists non-terminal items.
func (c *Client) ActiveItems() ([]api.ItemSummary, error) {
	var reply ItemsReply
	err := c.call("ActiveItems", Empty{}, &reply)
	return reply.Items, err
}

// HistoryJobs pages through finished jobs.
func (c *Client) HistoryJobs(limit, offset int) ([]api.JobSummary, error) {
	var reply JobsReply
	err := c.call("HistoryJobs", PageArgs{Limit: limit, Offset: offset}, &reply)
	return reply.Jobs, err
}

// HistoryItems pages through finished items.
func (c *Client) HistoryItems(limit, offset int) ([]api.ItemSummary, error) {
	var reply ItemsReply
	err := c.call("HistoryItems", PageArgs{Limit: limit, Offset: offset}, &reply)
	return reply.Items, err
}

// TestNotification asks the daemon to push a test message.
func (c *Client) TestNotification() error {
	return c.call("TestNotification", Empty{}, &Empty{})
}
