package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"keyart/internal/daemon"
	"keyart/internal/logging"
	"keyart/internal/logs"
	"keyart/internal/queue"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, ctx: ctx}
	if err := rpcServer.RegisterName("Keyart", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger.With(logging.String(logging.FieldComponent, "ipc")),
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.PID = status.PID
	resp.QueueDBPath = status.QueueDBPath
	resp.LockPath = status.LockPath
	resp.LastError = status.LastError

	snapshot, err := s.daemon.API().Snapshot(s.ctx)
	if err != nil {
		return err
	}
	resp.QueueStats = snapshot.QueueStats
	resp.Breakers = snapshot.Breakers
	resp.Entities = snapshot.Entities
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.daemon.Stop()
	resp.Stopped = true
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	jobs, err := s.daemon.API().Jobs(s.ctx, req.Statuses)
	if err != nil {
		return err
	}
	resp.Jobs = jobs
	return nil
}

func (s *service) QueueDescribe(req QueueDescribeRequest, resp *QueueDescribeResponse) error {
	job, err := s.daemon.API().Job(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %d not found", req.ID)
	}
	resp.Job = *job
	return nil
}

func (s *service) QueueCancel(req QueueCancelRequest, resp *QueueCancelResponse) error {
	status, err := s.daemon.API().Cancel(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Status = status
	return nil
}

func (s *service) QueueRetry(req QueueRetryRequest, resp *QueueRetryResponse) error {
	updated, err := s.daemon.API().RetryFailed(s.ctx, req.IDs...)
	if err != nil {
		return err
	}
	resp.Updated = updated
	return nil
}

func (s *service) QueueClear(req QueueClearRequest, resp *QueueClearResponse) error {
	var (
		removed int64
		err     error
	)
	switch queue.Status(req.Status) {
	case queue.StatusCompleted:
		removed, err = s.daemon.API().ClearCompleted(s.ctx)
	case queue.StatusFailed:
		removed, err = s.daemon.API().ClearFailed(s.ctx)
	case queue.StatusCancelled:
		removed, err = s.daemon.API().ClearCancelled(s.ctx)
	default:
		return fmt.Errorf("cannot clear jobs with status %q", req.Status)
	}
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) Refresh(req RefreshRequest, resp *RefreshResponse) error {
	job, err := s.daemon.API().ForceRefresh(s.ctx, req.EntityType, req.EntityID,
		req.AssetTypes, !req.NoSelect, req.Urgent)
	if err != nil {
		return err
	}
	resp.Job = job
	return nil
}

func (s *service) Select(req SelectRequest, resp *SelectResponse) error {
	job, err := s.daemon.API().RunSelection(s.ctx, req.EntityType, req.EntityID, req.AssetTypes)
	if err != nil {
		return err
	}
	resp.Job = job
	return nil
}

func (s *service) Sweep(_ SweepRequest, resp *SweepResponse) error {
	job, err := s.daemon.API().TriggerSweep(s.ctx)
	if err != nil {
		return err
	}
	resp.Job = job
	return nil
}

func (s *service) GC(_ GCRequest, resp *GCResponse) error {
	job, err := s.daemon.API().TriggerGC(s.ctx)
	if err != nil {
		return err
	}
	resp.Job = job
	return nil
}

func (s *service) Candidates(req CandidatesRequest, resp *CandidatesResponse) error {
	candidates, err := s.daemon.API().Candidates(s.ctx, req.EntityType, req.EntityID)
	if err != nil {
		return err
	}
	resp.Candidates = candidates
	return nil
}

func (s *service) Choose(req ChooseRequest, _ *ChooseResponse) error {
	return s.daemon.API().SelectCandidate(s.ctx, req.CandidateID, req.Lock)
}

func (s *service) Block(req BlockRequest, _ *BlockResponse) error {
	if req.Unblock {
		return s.daemon.API().UnblockCandidate(s.ctx, req.CandidateID)
	}
	return s.daemon.API().BlockCandidate(s.ctx, req.CandidateID)
}

func (s *service) Lock(req LockRequest, _ *LockResponse) error {
	return s.daemon.API().SetLock(s.ctx, req.EntityType, req.EntityID, req.AssetType, req.Locked)
}

func (s *service) Decisions(req DecisionsRequest, resp *DecisionsResponse) error {
	decisions, err := s.daemon.API().Decisions(s.ctx, req.EntityType, req.EntityID, req.Limit)
	if err != nil {
		return err
	}
	resp.Decisions = decisions
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	lines, offset, err := logs.Tail(s.daemon.LogPath(), req.Offset, req.Limit)
	if err != nil {
		return err
	}
	resp.Lines = lines
	resp.Offset = offset
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	if err := s.daemon.API().TestNotification(s.ctx); err != nil {
		resp.Sent = false
		resp.Message = err.Error()
		return nil
	}
	resp.Sent = true
	resp.Message = "test notification sent"
	return nil
}
