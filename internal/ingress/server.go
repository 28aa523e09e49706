package ingress

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/bashhack/gitjournal/internal/constants"
	"github.com/bashhack/gitjournal/internal/errors"
	"github.com/bashhack/gitjournal/internal/events"
	"github.com/bashhack/gitjournal/internal/logger"
)

const (
	// maxBodyBytes caps a single event submission.
	maxBodyBytes = 1 << 20

	eventPath = "/log_event"
)

// Config controls where the ingestion listener binds.
type Config struct {
	Host   string
	Policy RetryPolicy
}

// Server accepts events over HTTP and appends them to a queue.
type Server struct {
	config    Config
	queue     *events.Queue
	validator *events.Validator
	logger    logger.Logger

	server   *http.Server
	listener net.Listener
}

// New creates a new Server instance.
func New(config Config, queue *events.Queue, log logger.Logger) (*Server, error) {
	if config.Host == "" {
		config.Host = DefaultHost
	}

	validator, err := events.NewValidator()
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:    config,
		queue:     queue,
		validator: validator,
		logger:    log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(eventPath, s.handleLogEvent)
	mux.HandleFunc("/", s.handleNotFound)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the HTTP handler, for use without a listener.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Listen binds the listener according to the retry policy and announces
// the bound port on stdout as JOURNAL_DAEMON_PORT:<port>.
func (s *Server) Listen(ctx context.Context) (int, error) {
	listener, err := s.config.Policy.Listen(ctx, s.config.Host, s.logger)
	if err != nil {
		return 0, err
	}
	s.listener = listener

	port := s.Port()
	s.logger.Info("Event ingestion listening on %s", listener.Addr())
	s.logger.StatusMessage("%s%d", constants.PortAnnouncementPrefix, port)
	return port, nil
}

// Port returns the bound port, or 0 before Listen.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Serve handles requests until Shutdown. It returns nil after a graceful
// shutdown.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("ingress: Serve called before Listen")
	}
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down event ingestion...")
	return s.server.Shutdown(ctx)
}

// handleLogEvent validates a submitted event and queues it. The response is
// sent as soon as the event is queued; it does not wait for a commit.
func (s *Server) handleLogEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != eventPath {
		s.handleNotFound(w, r)
		return
	}

	event, err := s.validator.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var vErr *errors.ValidationError
		message := events.MsgInvalidJSON
		if errors.As(err, &vErr) {
			message = vErr.Message
		}
		s.logger.Warning("Rejected event: %v", err)
		writeError(w, http.StatusBadRequest, message)
		return
	}

	s.queue.Append(event)
	s.logger.Info("Queued event type=%s timestamp=%s (queue length %d)", event.Type, event.Timestamp, s.queue.Len())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Not Found")
}

func writeError(w http.ResponseWriter, status int, message string) {
	body, _ := json.Marshal(map[string]string{"error": message})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
