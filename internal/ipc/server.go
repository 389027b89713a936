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
	"time"

	"go.uber.org/zap"

	"splice/internal/daemon"
	"splice/internal/deps"
	"splice/internal/logging"
	"splice/internal/logtail"
)

// defaultEventWait bounds a long-poll that did not name its own timeout.
const defaultEventWait = 30 * time.Second

// Server exposes the daemon facade as JSON-RPC over a unix socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *zap.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer binds a unix socket at path and registers the Splice RPC
// service. Any stale socket file from a previous run is removed first.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *zap.Logger) (*Server, error) {
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	svc := &service{daemon: d, ctx: serverCtx}
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName("Splice", svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		daemon:    d,
		logger:    logging.NewComponentLogger(logger, "ipc"),
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve accepts connections until Close is called. Each connection is
// handled on its own goroutine with a JSON-RPC codec.
func (s *Server) Serve() {
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
					s.logger.Warn("accept failed", zap.Error(err))
					continue
				}
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
	s.logger.Info("ipc server listening", zap.String("socket", s.path))
}

// Close stops accepting connections, waits for in-flight requests, and
// removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("remove socket", zap.Error(err))
	}
}

// service implements the Splice RPC methods against the daemon facade.
type service struct {
	daemon *daemon.Daemon
	ctx    context.Context
}

func (s *service) Status(req StatusRequest, resp *StatusResponse) error {
	st := s.daemon.Status(s.ctx)
	resp.Running = st.Running
	resp.PID = st.PID
	resp.ActiveJobs = st.ActiveJobs
	resp.MaxActiveJobs = st.MaxActiveJobs
	resp.Cache = st.Cache
	resp.History = st.History
	resp.Dependencies = dependencyStatuses(st.Dependencies)
	resp.DatabasePath = st.DatabasePath
	resp.SocketPath = st.SocketPath
	resp.LockFilePath = st.LockFilePath
	resp.LogFilePath = st.LogFilePath
	return nil
}

func (s *service) Render(req RenderRequest, resp *RenderResponse) error {
	jobID, err := s.daemon.SubmitRender(req.ProjectJSON, req.OutputPath)
	if err != nil {
		return err
	}
	resp.JobID = jobID
	return nil
}

func (s *service) Jobs(req JobsRequest, resp *JobsResponse) error {
	resp.Jobs = s.daemon.Jobs()
	return nil
}

func (s *service) Progress(req ProgressRequest, resp *ProgressResponse) error {
	progress, ok := s.daemon.Progress(req.JobID)
	resp.Found = ok
	if ok {
		resp.Progress = &progress
	}
	return nil
}

func (s *service) Cancel(req CancelRequest, resp *CancelResponse) error {
	resp.Cancelled = s.daemon.Cancel(req.JobID)
	return nil
}

func (s *service) Pause(req PauseRequest, resp *PauseResponse) error {
	resp.Paused = s.daemon.Pause(req.JobID)
	return nil
}

func (s *service) Resume(req ResumeRequest, resp *ResumeResponse) error {
	resp.Resumed = s.daemon.Resume(req.JobID)
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	ctx := s.ctx
	if req.Wait {
		waitFor := time.Duration(req.WaitMillis) * time.Millisecond
		if waitFor <= 0 {
			waitFor = defaultEventWait
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, waitFor)
		defer cancel()
	}
	events, next, err := s.daemon.Events(ctx, req.Since, req.Limit, req.Wait)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	resp.Events = events
	resp.Next = next
	return nil
}

func (s *service) CacheStats(req CacheStatsRequest, resp *CacheStatsResponse) error {
	resp.Stats = s.daemon.CacheStats()
	resp.Usage = s.daemon.CacheUsage()
	return nil
}

func (s *service) CacheSweep(req CacheSweepRequest, resp *CacheSweepResponse) error {
	resp.Removed = s.daemon.CacheSweep()
	return nil
}

func (s *service) CacheClear(req CacheClearRequest, resp *CacheClearResponse) error {
	removed, err := s.daemon.CacheClear(req.Region)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) CacheSetLimits(req CacheSetLimitsRequest, resp *CacheSetLimitsResponse) error {
	s.daemon.CacheSetLimits(req.Preview, req.Metadata, req.Render)
	resp.Stats = s.daemon.CacheStats()
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	entries, err := s.daemon.History(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Entries = entries
	return nil
}

func (s *service) HistoryShow(req HistoryShowRequest, resp *HistoryShowResponse) error {
	entry, err := s.daemon.HistoryEntry(s.ctx, req.JobID)
	if err != nil {
		return err
	}
	resp.Found = entry != nil
	resp.Entry = entry
	return nil
}

func (s *service) HistoryClear(req HistoryClearRequest, resp *HistoryClearResponse) error {
	removed, err := s.daemon.HistoryClear(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) DatabaseHealth(req DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	if err != nil {
		return err
	}
	resp.DBPath = health.DBPath
	resp.DatabaseExists = health.DatabaseExists
	resp.DatabaseReadable = health.DatabaseReadable
	resp.TableExists = health.TableExists
	resp.TotalEntries = health.TotalEntries
	resp.IntegrityCheck = health.IntegrityCheck
	resp.Error = health.Error
	return nil
}

func (s *service) Logs(req LogsRequest, resp *LogsResponse) error {
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if req.Follow && wait <= 0 {
		wait = defaultEventWait
	}
	result, err := logtail.Tail(s.ctx, s.daemon.LogPath(), logtail.Options{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) TestNotification(req TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func (s *service) Shutdown(req ShutdownRequest, resp *ShutdownResponse) error {
	s.daemon.RequestShutdown()
	resp.Stopping = true
	return nil
}

func dependencyStatuses(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, DependencyStatus{
			Name:        st.Name,
			Command:     st.Command,
			Description: st.Description,
			Optional:    st.Optional,
			Available:   st.Available,
			Detail:      st.Detail,
		})
	}
	return out
}
