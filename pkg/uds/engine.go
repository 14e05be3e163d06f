package uds

import (
	"time"

	"github.com/diagstack/diagstack"
	"github.com/diagstack/diagstack/pkg/isotp"
	log "github.com/sirupsen/logrus"
)

// Config holds the four UDS client timings: the response deadlines (P2,
// P2* after a pending NRC), the S3 inactivity window, and the TesterPresent
// cadence that holds a non-Default session open.
type Config struct {
	P2Timeout             time.Duration
	P2StarTimeout         time.Duration
	S3ClientTimeout       time.Duration
	TesterPresentInterval time.Duration
}

// DefaultConfig mirrors commonly deployed tester defaults.
func DefaultConfig() Config {
	return Config{
		P2Timeout:             50 * time.Millisecond,
		P2StarTimeout:         5 * time.Second,
		S3ClientTimeout:       5 * time.Second,
		TesterPresentInterval: 2 * time.Second,
	}
}

const maxPendingRetries = 5
const pendingRetryPause = 100 * time.Millisecond

// Engine drives the UDS request/response dialog over an ISO-TP transport.
// It exclusively owns the Transport beneath it, and is not safe for
// concurrent use: every request is a synchronous call that owns the stack
// until it returns.
type Engine struct {
	transport *isotp.Transport
	cfg       Config
	session   SessionStatus
	open      bool
	now       func() time.Time
	logger    *log.Entry
}

// New creates a UDS engine over the given ISO-TP transport. The session is
// created (Default, unlocked) only once Open is called.
func New(transport *isotp.Transport, cfg Config) *Engine {
	return &Engine{
		transport: transport,
		cfg:       cfg,
		now:       time.Now,
		logger:    log.WithField("component", "uds"),
	}
}

// Open starts the engine's session lifecycle.
func (e *Engine) Open() error {
	e.session = newSessionStatus()
	e.session.touch(e.now())
	e.open = true
	return nil
}

// Close destroys the session.
func (e *Engine) Close() error {
	e.open = false
	return nil
}

// Session returns a snapshot of the current session status.
func (e *Engine) Session() SessionStatus {
	return e.session
}

// Process evaluates session timing: it is the caller's responsibility to
// invoke this periodically, the engine runs no background goroutines. It
// drops an expired non-Default session to Default, and emits TesterPresent
// at the configured cadence to hold an active non-Default session open.
func (e *Engine) Process() error {
	if !e.open {
		return diagstack.Wrap(diagstack.KindNotInitialized, "engine not open", nil)
	}
	now := e.now()
	e.session.evaluateS3(now, e.cfg.S3ClientTimeout)

	if e.session.SessionType == SessionDefault {
		return nil
	}
	if now.Sub(e.session.LastActivity) < e.cfg.TesterPresentInterval {
		return nil
	}
	return e.TesterPresent(true)
}

// request runs the send/wait-for-response loop shared by every service:
// evaluate S3 once up front, send the request, wait for a response, and if
// the response is NRC 0x78 (ResponsePending), keep waiting under the P2*
// deadline up to maxPendingRetries times before surfacing a timeout.
func (e *Engine) request(sid byte, payload []byte) ([]byte, error) {
	if !e.open {
		return nil, diagstack.Wrap(diagstack.KindNotInitialized, "engine not open", nil)
	}

	e.session.evaluateS3(e.now(), e.cfg.S3ClientTimeout)
	e.session.touch(e.now())

	req := append([]byte{sid}, payload...)
	if err := e.transport.Send(req); err != nil {
		return nil, err
	}

	timeout := e.cfg.P2Timeout
	for attempt := 0; ; attempt++ {
		e.transport.SetReceiveTimeout(timeout)
		resp, err := e.transport.Receive()
		if err != nil {
			return nil, diagstack.ErrTimeout
		}

		if nrc, ok := negativeResponseNRC(resp, sid); ok {
			if nrc == NRCResponsePending {
				if attempt >= maxPendingRetries {
					return nil, udsErr("response timeout")
				}
				e.logger.Debugf("response pending (attempt %d), waiting p2*", attempt+1)
				time.Sleep(pendingRetryPause)
				timeout = e.cfg.P2StarTimeout
				continue
			}
			return nil, diagstack.NewError(diagstack.KindUds, nrc.String())
		}

		if !isPositiveResponse(resp, sid) {
			return nil, diagstack.NewError(diagstack.KindInvalidParameter, "unexpected positive response SID")
		}
		return resp, nil
	}
}
