// Package server implements the single-threaded, edge-triggered event
// loop that drives accepted connections against the command registry
// and keyspace.
package server

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/jalsol/jaldis/internal/arena"
	"github.com/jalsol/jaldis/internal/command"
	"github.com/jalsol/jaldis/internal/config"
	"github.com/jalsol/jaldis/internal/keyspace"
	"github.com/jalsol/jaldis/internal/resp"
	"github.com/jalsol/jaldis/internal/telemetry/logger"
	"github.com/jalsol/jaldis/internal/telemetry/metric"
)

const (
	maxEpollEvents = 256
	readChunkSize  = 4 * 1024

	// sweepThreshold is the per-connection command count that triggers
	// a sweep pass (spec.md §4.7 step 3: "e.g. 100").
	sweepThreshold = 100
)

// Server owns the listening socket, the epoll instance, every
// accepted connection, and the shared keyspace they all dispatch
// commands against.
type Server struct {
	cfg      config.Config
	log      logger.Logger
	metrics  *metric.Registry
	keyspace *keyspace.Keyspace

	epfd     int
	listenFD int
	conns    map[int]*conn

	sweepSampleSize int
}

// New creates a Server bound to cfg but does not yet open any socket.
func New(cfg config.Config, log logger.Logger, metrics *metric.Registry) *Server {
	return &Server{
		cfg:             cfg,
		log:             log,
		metrics:         metrics,
		keyspace:        keyspace.New(),
		conns:           make(map[int]*conn),
		sweepSampleSize: cfg.SweepSampleSize,
	}
}

// Listen performs socket setup: bind, listen, non-blocking mode, and
// epoll registration. It returns once the listening descriptor is
// registered for read readiness (spec.md §6: listener bootstrap
// produces listen_fd and readiness_fd, pre-registered).
func (s *Server) Listen() error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return fmt.Errorf("server: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return fmt.Errorf("server: setsockopt SO_REUSEADDR: %w", err)
	}

	addr, err := parseIPv4(s.cfg.Address)
	if err != nil {
		unix.Close(fd)
		return fmt.Errorf("server: parse address %q: %w", s.cfg.Address, err)
	}
	sa := &unix.SockaddrInet4{Port: int(s.cfg.Port), Addr: addr}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return fmt.Errorf("server: bind: %w", err)
	}
	if err := unix.Listen(fd, s.cfg.Backlog); err != nil {
		unix.Close(fd)
		return fmt.Errorf("server: listen: %w", err)
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		unix.Close(fd)
		return fmt.Errorf("server: epoll_create1: %w", err)
	}
	event := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(fd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
		unix.Close(fd)
		unix.Close(epfd)
		return fmt.Errorf("server: epoll_ctl listener: %w", err)
	}

	s.listenFD = fd
	s.epfd = epfd
	s.log.Info("listening", "address", s.cfg.Address, "port", s.cfg.Port)
	return nil
}

// Addr reports the actual address the listener is bound to, including
// the kernel-assigned port when cfg.Port was 0. It is mainly useful
// for tests that bind an ephemeral port.
func (s *Server) Addr() (string, uint16, error) {
	sa, err := unix.Getsockname(s.listenFD)
	if err != nil {
		return "", 0, fmt.Errorf("server: getsockname: %w", err)
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return "", 0, fmt.Errorf("server: unexpected sockaddr type %T", sa)
	}
	ip := in4.Addr
	return fmt.Sprintf("%d.%d.%d.%d", ip[0], ip[1], ip[2], ip[3]), uint16(in4.Port), nil
}

// Run drives the event loop forever (or until a fatal epoll_wait
// error). The only blocking call is epoll_wait itself (spec.md §5).
func (s *Server) Run() error {
	events := make([]unix.EpollEvent, maxEpollEvents)
	for {
		n, err := unix.EpollWait(s.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("server: epoll_wait: %w", err)
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == s.listenFD {
				s.acceptLoop()
				continue
			}
			s.handleRead(fd)
		}
	}
}

// acceptLoop drains the listener: edge-triggered readiness fires once
// per batch of pending connections, so every accept must be drained
// until it would block (spec.md §4.7).
func (s *Server) acceptLoop() {
	for {
		fd, _, err := unix.Accept4(s.listenFD, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			s.log.Warn("accept failed", "error", err)
			return
		}

		event := unix.EpollEvent{
			Events: unix.EPOLLIN | unix.EPOLLET | unix.EPOLLRDHUP,
			Fd:     int32(fd),
		}
		if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
			s.log.Warn("epoll_ctl add failed", "error", err)
			unix.Close(fd)
			continue
		}

		c := newConn(fd)
		s.conns[fd] = c
		s.metrics.ConnectionsAccepted.Inc()
		s.log.Info("connection accepted", "conn", c.id, "fd", fd)
	}
}

func (s *Server) closeConn(fd int, reason string) {
	c, ok := s.conns[fd]
	if !ok {
		unix.Close(fd)
		return
	}
	delete(s.conns, fd)
	unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	unix.Close(fd)
	s.metrics.ConnectionsClosed.WithLabelValues(reason).Inc()
	s.log.Info("connection closed", "conn", c.id, "reason", reason)
}

// handleRead implements spec.md §4.7's read-handler loop for one
// client descriptor.
func (s *Server) handleRead(fd int) {
	c, ok := s.conns[fd]
	if !ok {
		return
	}

	var buf [readChunkSize]byte
	writeBuf := arena.NewBuffer(c.arena)
	releasable := true
	executed := 0

readLoop:
	for {
		n, err := unix.Read(fd, buf[:])
		if err != nil {
			if err == unix.EAGAIN {
				break readLoop
			}
			s.flush(c, writeBuf)
			s.closeConn(fd, "read-error")
			return
		}
		if n == 0 {
			s.flush(c, writeBuf)
			s.closeConn(fd, "eof")
			return
		}

		chunk := buf[:n]
		for len(chunk) > 0 {
			result := c.decoder.Feed(chunk)
			chunk = chunk[result.Consumed:]

			switch result.Outcome {
			case resp.OutcomeValue:
				reply := s.execute(c, result.Value)
				resp.AppendValue(writeBuf, reply)
				executed++
				c.decoder.Reset()
			case resp.OutcomeNeedMore:
				releasable = false
			case resp.OutcomeCancelled:
				s.metrics.ProtocolCancellations.Inc()
				s.log.Warn("protocol cancelled", "conn", c.id)
				c.decoder.Reset()
				chunk = nil
			}
		}
	}

	c.cmdsSinceSweep += executed
	if c.cmdsSinceSweep >= sweepThreshold {
		reaped := s.keyspace.Sweep(s.sweepSampleSize)
		if reaped > 0 {
			s.metrics.KeysReaped.Add(float64(reaped))
		}
		c.cmdsSinceSweep = 0
	}

	if !s.flush(c, writeBuf) {
		return
	}

	if releasable && c.decoder.Idle() {
		c.arena.Release()
	}
}

// flush writes the accumulated replies in a tight busy-retry loop,
// per spec.md §9's explicit permission to keep the simpler retry
// variant instead of buffering deferred output and re-registering for
// writability. It reports whether the connection is still open.
func (s *Server) flush(c *conn, writeBuf *arena.Buffer) bool {
	data := writeBuf.Bytes()
	for len(data) > 0 {
		n, err := unix.Write(c.fd, data)
		if err != nil {
			if err == unix.EAGAIN {
				continue
			}
			s.closeConn(c.fd, "write-error")
			return false
		}
		data = data[n:]
	}
	return true
}

func (s *Server) execute(c *conn, cmd resp.Value) resp.Value {
	if cmd.Tag != resp.Array || len(cmd.Elems) == 0 {
		return resp.NewError("ERR protocol error")
	}
	name := cmd.Elems[0]
	if name.Tag != resp.BulkString {
		return resp.NewError("ERR protocol error")
	}
	cmdName := string(name.Bytes)
	s.metrics.CommandsProcessed.WithLabelValues(cmdName).Inc()
	s.log.Debug("command", "conn", c.id, "command", cmdName, "argc", len(cmd.Elems)-1)
	return command.Dispatch(cmdName, cmd.Elems[1:], s.keyspace, c.arena)
}

// Close shuts down the listening socket and every open connection.
func (s *Server) Close() {
	for fd := range s.conns {
		s.closeConn(fd, "shutdown")
	}
	if s.listenFD != 0 {
		unix.Close(s.listenFD)
	}
	if s.epfd != 0 {
		unix.Close(s.epfd)
	}
}
