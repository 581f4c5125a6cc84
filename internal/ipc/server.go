package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"presswatch/internal/api"
	"presswatch/internal/daemon"
	"presswatch/internal/logging"
)

// Server accepts CLI connections on a unix socket.
type Server struct {
	socketPath string
	listener   net.Listener
	rpcServer  *rpc.Server
	logger     *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Handler implements the RPC methods. Every method delegates to the
// shared queue service so IPC and HTTP stay behaviorally identical.
type Handler struct {
	service *api.QueueService
	daemon  *daemon.Daemon
}

// NewServer registers the handler and prepares the socket path. A
// stale socket from a dead process is removed; a live one fails the
// daemon's single instance lock earlier anyway.
func NewServer(socketPath string, service *api.QueueService, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", socketPath, err)
	}

	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(ServiceName, &Handler{service: service, daemon: d}); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		socketPath: socketPath,
		listener:   listener,
		rpcServer:  rpcServer,
		logger:     logging.NewComponentLogger(logger, "ipc"),
	}, nil
}

// Serve accepts connections until Close. Each connection gets its own
// goroutine; JSON-RPC handles request framing.
func (s *Server) Serve() {
	s.logger.Info("ipc listening", logging.String("socket", s.socketPath))
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			s.logger.Warn("ipc accept failed", logging.Error(err))
			continue
		}
		go s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Close stops accepting and removes the socket file.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.listener.Close()
	if removeErr := os.Remove(s.socketPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) && err == nil {
		err = removeErr
	}
	return err
}

func (h *Handler) Status(_ Empty, reply *StatusReply) error {
	status, err := h.daemon.Status(context.Background())
	if err != nil {
		return err
	}
	reply.Status = status
	return nil
}

func (h *Handler) Enqueue(args EnqueueArgs, reply *api.JobSummary) error {
	job, err := h.service.Enqueue(context.Background(), api.EnqueueRequest{
		JobType:  args.JobType,
		PaperIDs: args.PaperIDs,
	})
	if err != nil {
		return err
	}
	*reply = job
	return nil
}

func (h *Handler) Cancel(args CancelArgs, reply *api.CancelResponse) error {
	result, err := h.service.Cancel(context.Background(), args.JobID)
	if err != nil {
		return err
	}
	*reply = result
	return nil
}

func (h *Handler) ClearQueue(_ Empty, reply *api.ClearQueueResponse) error {
	result, err := h.service.ClearQueue(context.Background())
	if err != nil {
		return err
	}
	*reply = result
	return nil
}

func (h *Handler) ClearHistory(_ Empty, reply *api.ClearHistoryResponse) error {
	result, err := h.service.ClearHistory(context.Background())
	if err != nil {
		return err
	}
	*reply = result
	return nil
}

func (h *Handler) Control(args ControlArgs, reply *api.QueueState) error {
	var (
		state api.QueueState
		err   error
	)
	if args.Set {
		state, err = h.service.SetPaused(context.Background(), args.Paused)
	} else {
		state, err = h.service.State(context.Background())
	}
	if err != nil {
		return err
	}
	*reply = state
	return nil
}

func (h *Handler) ActiveJobs(_ Empty, reply *JobsReply) error {
	jobs, err := h.service.ActiveJobs(context.Background())
	if err != nil {
		return err
	}
	reply.Jobs = jobs
	return nil
}

func (h *Handler) ActiveItems(_ Empty, reply *ItemsReply) error {
	items, err := h.service.ActiveItems(context.Background())
	if err != nil {
		return err
	}
	reply.Items = items
	return nil
}

func (h *Handler) HistoryJobs(args PageArgs, reply *JobsReply) error {
	jobs, err := h.service.HistoryJobs(context.Background(), args.Limit, args.Offset)
	if err != nil {
		return err
	}
	reply.Jobs = jobs
	return nil
}

func (h *Handler) HistoryItems(args PageArgs, reply *ItemsReply) error {
	items, err := h.service.HistoryItems(context.Background(), args.Limit, args.Offset)
	if err != nil {
		return err
	}
	reply.Items = items
	return nil
}

func (h *Handler) TestNotification(_ Empty, _ *Empty) error {
	return h.service.TestNotification(context.Background())
}
