// Package transport implements the stdio wire connection to a single MCP
// server process. One writer goroutine owns stdin, one reader goroutine owns
// stdout, and responses are correlated to in-flight requests by id.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zhubert/mcpcore/logger"
	"github.com/zhubert/mcpcore/protocol"
)

const (
	// DefaultRequestTimeout is how long SendRequest waits for a response
	// before abandoning the request.
	DefaultRequestTimeout = 30 * time.Second

	// shutdownGracePeriod is how long Shutdown waits for the process to
	// exit after stdin closes before force-killing it.
	shutdownGracePeriod = 2 * time.Second

	// outboundQueueSize is the buffer size of the writer's frame queue.
	outboundQueueSize = 64
)

// Transport is the wire connection to a single server process.
// StdioTransport is the production implementation; tests substitute fakes.
type Transport interface {
	// SendRequest sends a request and blocks until the response arrives,
	// the timeout elapses, or ctx is cancelled.
	SendRequest(ctx context.Context, method string, params any) (json.RawMessage, error)

	// SendNotification sends a fire-and-forget notification (null id).
	SendNotification(method string, params any) error

	// IsAlive reports whether the server process is still held.
	IsAlive() bool

	// Shutdown terminates the server process. Safe to call multiple times.
	Shutdown()
}

// Config describes how to spawn a server process.
type Config struct {
	ServerName string
	Command    string
	Args       []string
	Env        map[string]string

	// RequestTimeout overrides DefaultRequestTimeout when positive.
	RequestTimeout time.Duration
}

// readResult holds the result of a read operation for timeout handling.
type readResult struct {
	line string
	err  error
}

// pendingResult is delivered to a waiting SendRequest call.
type pendingResult struct {
	result json.RawMessage
	err    error
}

// outboundFrame is a serialized message queued for the writer goroutine.
// id is the null id for notifications.
type outboundFrame struct {
	id   protocol.RequestID
	data []byte
}

// StdioTransport owns one MCP server child process and the goroutines that
// service its pipes. The transport never outlives the process: Shutdown
// kills the child, and the child exiting tears down the transport.
type StdioTransport struct {
	cfg Config
	log *slog.Logger

	// Process state (protected by mu)
	mu       sync.Mutex
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	alive    bool
	shutdown bool

	// nextID allocates request ids; the first id handed out is 1.
	nextID atomic.Int64

	// pending maps in-flight request ids to their single-fulfillment
	// channels. Fulfillment removes the entry, so a response arriving
	// after a timeout finds nothing and is discarded.
	pendingMu sync.Mutex
	pending   map[protocol.RequestID]chan pendingResult

	outbound chan outboundFrame

	// waitDone is closed by the reaper goroutine when cmd.Wait() completes.
	// Shutdown() selects on this channel instead of calling cmd.Wait()
	// again, preventing undefined behavior from double Wait().
	waitDone chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Start spawns the server process and begins servicing its pipes.
func Start(cfg Config) (*StdioTransport, error) {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	log := logger.WithServer(cfg.ServerName).With("component", "transport")
	log.Info("starting server process", "command", cfg.Command, "args", strings.Join(cfg.Args, " "))

	cmd := exec.Command(cfg.Command, cfg.Args...)
	if len(cfg.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		log.Error("failed to get stdin pipe", "error", err)
		return nil, &ConnectionError{Server: cfg.ServerName, Reason: "failed to get stdin pipe", Err: err}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		log.Error("failed to get stdout pipe", "error", err)
		return nil, &ConnectionError{Server: cfg.ServerName, Reason: "failed to get stdout pipe", Err: err}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		log.Error("failed to get stderr pipe", "error", err)
		return nil, &ConnectionError{Server: cfg.ServerName, Reason: "failed to get stderr pipe", Err: err}
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		log.Error("failed to start server process", "error", err)
		return nil, &ConnectionError{Server: cfg.ServerName, Reason: "failed to start process", Err: err}
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &StdioTransport{
		cfg:      cfg,
		log:      log,
		cmd:      cmd,
		stdin:    stdin,
		alive:    true,
		pending:  make(map[protocol.RequestID]chan pendingResult),
		outbound: make(chan outboundFrame, outboundQueueSize),
		waitDone: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	log.Info("server process started", "pid", cmd.Process.Pid)

	t.wg.Add(4)
	go func() {
		defer t.wg.Done()
		t.writeLoop(stdin)
	}()
	go func() {
		defer t.wg.Done()
		t.readLoop(stdout)
	}()
	go func() {
		defer t.wg.Done()
		t.drainStderr(stderr)
	}()
	go func() {
		defer t.wg.Done()
		t.reap()
	}()

	return t, nil
}

// SendRequest sends a request over stdin and waits for the matching response.
// The request id comes from a monotonic counter. On timeout the pending entry
// is removed, so a late response is logged and discarded by the reader.
func (t *StdioTransport) SendRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !t.IsAlive() {
		return nil, &ConnectionError{Server: t.cfg.ServerName, Reason: "server process is not running"}
	}

	id := protocol.NumberID(t.nextID.Add(1))
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request %s: %w", method, err)
	}

	ch := make(chan pendingResult, 1)
	t.pendingMu.Lock()
	t.pending[id] = ch
	t.pendingMu.Unlock()

	if err := t.enqueue(outboundFrame{id: id, data: data}); err != nil {
		t.removePending(id)
		return nil, err
	}

	timer := time.NewTimer(t.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.result, res.err
	case <-timer.C:
		t.removePending(id)
		t.log.Warn("request timed out", "method", method, "id", id.String(), "timeout", t.cfg.RequestTimeout)
		return nil, &TimeoutError{Server: t.cfg.ServerName, Method: method, Timeout: t.cfg.RequestTimeout}
	case <-ctx.Done():
		t.removePending(id)
		return nil, ctx.Err()
	}
}

// SendNotification sends a fire-and-forget notification. A transport that
// has already shut down swallows the notification silently.
func (t *StdioTransport) SendNotification(method string, params any) error {
	n, err := protocol.NewNotification(method, params)
	if err != nil {
		return err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification %s: %w", method, err)
	}

	if err := t.enqueue(outboundFrame{data: data}); err != nil {
		t.log.Debug("notification dropped, transport not accepting frames", "method", method)
	}
	return nil
}

// IsAlive reports whether the child process handle is still held.
func (t *StdioTransport) IsAlive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alive && t.cmd != nil
}

// Shutdown signals the writer, closes stdin, waits briefly for the process
// to exit, and kills it if it doesn't. Any requests still pending are failed
// immediately. Safe to call multiple times.
func (t *StdioTransport) Shutdown() {
	t.mu.Lock()
	if t.shutdown {
		t.mu.Unlock()
		return
	}
	t.shutdown = true
	t.alive = false
	stdin := t.stdin
	t.stdin = nil
	cmd := t.cmd
	waitDone := t.waitDone
	t.mu.Unlock()

	t.log.Debug("shutting down transport")

	t.cancel()
	if stdin != nil {
		stdin.Close()
	}

	if cmd != nil && cmd.Process != nil {
		select {
		case <-waitDone:
			t.log.Debug("server process exited gracefully")
		case <-time.After(shutdownGracePeriod):
			t.log.Debug("force killing server process")
			cmd.Process.Kill()
			<-waitDone
		}
	}

	t.failAllPending(&ConnectionError{Server: t.cfg.ServerName, Reason: "transport shut down"})

	t.wg.Wait()

	t.mu.Lock()
	t.cmd = nil
	t.mu.Unlock()

	t.log.Info("transport shut down")
}

// enqueue hands a frame to the writer goroutine. A cancelled transport
// refuses the frame with a ConnectionError instead of blocking.
func (t *StdioTransport) enqueue(f outboundFrame) error {
	select {
	case t.outbound <- f:
		return nil
	case <-t.ctx.Done():
		return &ConnectionError{Server: t.cfg.ServerName, Reason: "transport is shut down"}
	}
}

// writeLoop is the sole writer to stdin. A write failure kills the whole
// transport: the connection is not usable after a partial write, so the
// frame's pending request plus everything else in flight fails, the context
// is cancelled so later sends refuse immediately, and the loop terminates.
func (t *StdioTransport) writeLoop(stdin io.WriteCloser) {
	t.log.Debug("writer started")
	w := bufio.NewWriter(stdin)

	for {
		select {
		case <-t.ctx.Done():
			t.log.Debug("writer exiting - context cancelled")
			return
		case f := <-t.outbound:
			if err := writeFrame(w, f.data); err != nil {
				t.log.Error("write to server failed", "error", err)
				connErr := &ConnectionError{Server: t.cfg.ServerName, Reason: "write failed", Err: err}

				t.mu.Lock()
				t.alive = false
				t.mu.Unlock()
				t.cancel()

				if !f.id.IsNull() {
					t.fulfill(f.id, pendingResult{err: connErr})
				}
				t.failAllPending(connErr)
				return
			}
		}
	}
}

// writeFrame writes one newline-terminated frame and flushes it.
func writeFrame(w *bufio.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}

// readLoop is the sole reader of stdout. It routes responses to pending
// requests by id; a malformed line is logged and skipped, the loop keeps
// reading until EOF or cancellation.
func (t *StdioTransport) readLoop(stdout io.ReadCloser) {
	t.log.Debug("reader started")
	reader := bufio.NewReader(stdout)

	for {
		select {
		case <-t.ctx.Done():
			t.log.Debug("reader exiting - context cancelled")
			return
		default:
		}

		line, err := t.readLine(reader)
		if err != nil {
			select {
			case <-t.ctx.Done():
				t.log.Debug("reader exiting - context cancelled during read")
				return
			default:
			}

			if err == io.EOF {
				t.log.Debug("EOF on stdout - server process exited")
			} else {
				t.log.Debug("error reading stdout", "error", err)
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		t.handleLine(line)
	}
}

// handleLine classifies one wire line and routes it.
func (t *StdioTransport) handleLine(line string) {
	msg, err := protocol.ParseMessage([]byte(line))
	if err != nil {
		t.log.Warn("failed to parse server message", "error", err)
		return
	}

	switch m := msg.(type) {
	case *protocol.Response:
		t.fulfill(m.ID, pendingResult{result: m.Result})
	case *protocol.ErrorResponse:
		rpcErr := m.Error
		t.fulfill(m.ID, pendingResult{err: &rpcErr})
	case *protocol.Notification:
		t.log.Debug("server notification", "method", m.Method)
	case *protocol.Request:
		t.log.Warn("server-initiated requests are not supported", "method", m.Method, "id", m.ID.String())
	}
}

// readLine reads a line from the reader, blocking until data is available.
//
// The spawned goroutine doing ReadString() cannot be cancelled (Go's
// blocking I/O limitation). The channel is buffered (size 1) so the
// goroutine can always send its result even if we've already returned
// due to cancel, preventing a goroutine leak.
func (t *StdioTransport) readLine(reader *bufio.Reader) (string, error) {
	resultCh := make(chan readResult, 1)

	go func() {
		line, err := reader.ReadString('\n')
		resultCh <- readResult{line: line, err: err}
	}()

	select {
	case <-t.ctx.Done():
		return "", t.ctx.Err()
	case result := <-resultCh:
		return result.line, result.err
	}
}

// drainStderr logs each stderr line at debug level so server-side noise is
// visible without polluting the response stream.
func (t *StdioTransport) drainStderr(stderr io.ReadCloser) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		t.log.Debug("server stderr", "line", scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.log.Debug("error reading stderr", "error", err)
	}
}

// reap is the sole caller of cmd.Wait(). When the process exits on its own,
// anything still pending is failed immediately rather than left to time out.
func (t *StdioTransport) reap() {
	err := t.cmd.Wait()
	close(t.waitDone)

	t.mu.Lock()
	wasShutdown := t.shutdown
	t.alive = false
	t.mu.Unlock()

	if wasShutdown {
		t.log.Debug("server process reaped", "error", err)
		return
	}

	t.log.Warn("server process exited unexpectedly", "error", err)
	t.cancel()
	t.failAllPending(&ConnectionError{Server: t.cfg.ServerName, Reason: "server process exited", Err: err})
}

// fulfill delivers a result to the pending request with the given id and
// removes the entry. A response with no pending entry is discarded.
func (t *StdioTransport) fulfill(id protocol.RequestID, res pendingResult) {
	t.pendingMu.Lock()
	ch, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.pendingMu.Unlock()

	if !ok {
		t.log.Warn("discarding response with unmatched id", "id", id.String())
		return
	}

	// Channel is buffered (size 1) and single-fulfillment; never blocks.
	select {
	case ch <- res:
	default:
	}
}

// removePending drops a pending entry without delivering a result (timeout
// and cancellation paths).
func (t *StdioTransport) removePending(id protocol.RequestID) {
	t.pendingMu.Lock()
	delete(t.pending, id)
	t.pendingMu.Unlock()
}

// failAllPending delivers err to every in-flight request.
func (t *StdioTransport) failAllPending(err error) {
	t.pendingMu.Lock()
	pending := t.pending
	t.pending = make(map[protocol.RequestID]chan pendingResult)
	t.pendingMu.Unlock()

	for id, ch := range pending {
		t.log.Debug("failing pending request", "id", id.String(), "error", err)
		select {
		case ch <- pendingResult{err: err}:
		default:
		}
	}
}

// Ensure StdioTransport implements Transport at compile time.
var _ Transport = (*StdioTransport)(nil)
