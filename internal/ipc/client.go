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

// Status retrieves the daemon status snapshot.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Keyart.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Keyart.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns jobs optionally filtered by statuses.
func (c *Client) QueueList(statuses []string) (*QueueListResponse, error) {
	var resp QueueListResponse
	if err := c.client.Call("Keyart.QueueList", QueueListRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueDescribe returns details for a single job.
func (c *Client) QueueDescribe(id int64) (*QueueDescribeResponse, error) {
	var resp QueueDescribeResponse
	if err := c.client.Call("Keyart.QueueDescribe", QueueDescribeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueCancel requests cancellation of a job.
func (c *Client) QueueCancel(id int64) (*QueueCancelResponse, error) {
	var resp QueueCancelResponse
	if err := c.client.Call("Keyart.QueueCancel", QueueCancelRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRetry returns failed jobs to pending.
func (c *Client) QueueRetry(ids []int64) (*QueueRetryResponse, error) {
	var resp QueueRetryResponse
	if err := c.client.Call("Keyart.QueueRetry", QueueRetryRequest{IDs: ids}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClear removes finished jobs in one terminal status.
func (c *Client) QueueClear(status string) (*QueueClearResponse, error) {
	var resp QueueClearResponse
	if err := c.client.Call("Keyart.QueueClear", QueueClearRequest{Status: status}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh queues a provider fetch for one entity.
func (c *Client) Refresh(req RefreshRequest) (*RefreshResponse, error) {
	var resp RefreshResponse
	if err := c.client.Call("Keyart.Refresh", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Select queues auto-selection over stored candidates.
func (c *Client) Select(req SelectRequest) (*SelectResponse, error) {
	var resp SelectResponse
	if err := c.client.Call("Keyart.Select", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sweep queues a full catalog sweep.
func (c *Client) Sweep() (*SweepResponse, error) {
	var resp SweepResponse
	if err := c.client.Call("Keyart.Sweep", SweepRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GC queues a garbage collection pass.
func (c *Client) GC() (*GCResponse, error) {
	var resp GCResponse
	if err := c.client.Call("Keyart.GC", GCRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Candidates lists stored candidates for one entity.
func (c *Client) Candidates(entityType string, entityID int64) (*CandidatesResponse, error) {
	var resp CandidatesResponse
	req := CandidatesRequest{EntityType: entityType, EntityID: entityID}
	if err := c.client.Call("Keyart.Candidates", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Choose applies a manual selection.
func (c *Client) Choose(candidateID int64, lock bool) error {
	var resp ChooseResponse
	return c.client.Call("Keyart.Choose", ChooseRequest{CandidateID: candidateID, Lock: lock}, &resp)
}

// Block blocks or unblocks one candidate.
func (c *Client) Block(candidateID int64, unblock bool) error {
	var resp BlockResponse
	return c.client.Call("Keyart.Block", BlockRequest{CandidateID: candidateID, Unblock: unblock}, &resp)
}

// Lock pins or unpins one asset slot.
func (c *Client) Lock(req LockRequest) error {
	var resp LockResponse
	return c.client.Call("Keyart.Lock", req, &resp)
}

// Decisions lists recent selection decisions for one entity.
func (c *Client) Decisions(entityType string, entityID int64, limit int) (*DecisionsResponse, error) {
	var resp DecisionsResponse
	req := DecisionsRequest{EntityType: entityType, EntityID: entityID, Limit: limit}
	if err := c.client.Call("Keyart.Decisions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(offset int64, limit int) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Keyart.LogTail", LogTailRequest{Offset: offset, Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a test push via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Keyart.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
