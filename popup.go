package authkit

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Message is a cross-window message delivered to the opener context.
type Message struct {
	Origin string
	Data   string
	Source Window
}

// Window is a detached browsing context created for one login attempt.
// There is no close event for popups, so liveness is observed by polling
// Closed.
type Window interface {
	Closed() bool
	Close() error
}

// WindowOptions sizes the created popup.
type WindowOptions struct {
	Width  int
	Height int
}

// WindowOpener creates popup windows and exposes the opener-side message
// feed. Messages are not implicitly scoped to one window; coordinators must
// validate source and origin themselves.
type WindowOpener interface {
	Open(url string, opts WindowOptions) (Window, error)
	Messages() <-chan Message
}

// AttemptState is the lifecycle of a single popup login attempt.
type AttemptState string

const (
	StateIdle      AttemptState = "idle"
	StatePopupOpen AttemptState = "popup_open"
	StateCompleted AttemptState = "completed"
	StateCancelled AttemptState = "cancelled"
	StateTimedOut  AttemptState = "timed_out"
)

const (
	defaultPopupTimeout  = 2 * time.Minute
	defaultProbeInterval = 500 * time.Millisecond
	defaultPopupWidth    = 600
	defaultPopupHeight   = 600
)

// PopupCoordinator drives exactly one external-login handshake. Terminal
// states are final: a resolved attempt never fires again, and a coordinator
// cannot be reused for a second attempt.
type PopupCoordinator struct {
	opener         WindowOpener
	logger         Logger
	attemptID      string
	timeout        time.Duration
	probeInterval  time.Duration
	expectedOrigin string
	winOpts        WindowOptions

	mu     sync.Mutex
	state  AttemptState
	window Window
}

// PopupOption customizes a coordinator.
type PopupOption func(*PopupCoordinator)

// WithPopupTimeout bounds the wait for the completion signal.
func WithPopupTimeout(d time.Duration) PopupOption {
	return func(p *PopupCoordinator) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithProbeInterval sets how often the window is polled for liveness.
func WithProbeInterval(d time.Duration) PopupOption {
	return func(p *PopupCoordinator) {
		if d > 0 {
			p.probeInterval = d
		}
	}
}

// WithExpectedOrigin restricts accepted completion messages to one origin.
func WithExpectedOrigin(origin string) PopupOption {
	return func(p *PopupCoordinator) {
		p.expectedOrigin = origin
	}
}

// WithWindowSize sets the popup dimensions.
func WithWindowSize(width, height int) PopupOption {
	return func(p *PopupCoordinator) {
		if width > 0 {
			p.winOpts.Width = width
		}
		if height > 0 {
			p.winOpts.Height = height
		}
	}
}

// WithPopupLogger overrides the coordinator logger.
func WithPopupLogger(logger Logger) PopupOption {
	return func(p *PopupCoordinator) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPopupCoordinator(opener WindowOpener, opts ...PopupOption) *PopupCoordinator {
	p := &PopupCoordinator{
		opener:        opener,
		logger:        defLogger{},
		attemptID:     uuid.New().String(),
		timeout:       defaultPopupTimeout,
		probeInterval: defaultProbeInterval,
		winOpts:       WindowOptions{Width: defaultPopupWidth, Height: defaultPopupHeight},
		state:         StateIdle,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// State returns the current attempt state.
func (p *PopupCoordinator) State() AttemptState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Run opens the popup and blocks until the attempt resolves. It returns nil
// on completion, ErrPopupBlocked when the window cannot be created,
// ErrPopupClosed when the user closes the popup or ctx is cancelled, and
// ErrPopupTimeout when no signal arrives in time. All resolutions release
// the probe ticker and, except for user closure, close the popup window.
func (p *PopupCoordinator) Run(ctx context.Context, popupURL string) error {
	if !p.begin() {
		return ErrAttemptConsumed
	}

	w, err := p.opener.Open(popupURL, p.winOpts)
	if err != nil || w == nil {
		p.resolve(StateCancelled)
		p.logger.Error("Popup window creation failed", "attempt", p.attemptID, "error", err)
		if err != nil {
			return errors.Wrap(err, errors.CategoryOperation, "popup window blocked").
				WithTextCode(TextCodePopupBlocked)
		}
		return ErrPopupBlocked
	}

	p.mu.Lock()
	p.window = w
	p.mu.Unlock()

	p.logger.Debug("Popup opened", "attempt", p.attemptID, "url", popupURL)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	ticker := time.NewTicker(p.probeInterval)
	defer ticker.Stop()

	msgs := p.opener.Messages()

	for {
		select {
		case <-ctx.Done():
			if p.resolve(StateCancelled) {
				p.closeWindow(w)
			}
			return errors.Wrap(ctx.Err(), errors.CategoryOperation, "popup attempt cancelled").
				WithTextCode(TextCodePopupClosed)

		case msg, ok := <-msgs:
			if !ok {
				// feed gone; keep waiting on probe and timeout
				msgs = nil
				continue
			}
			if !p.accepts(msg, w) {
				continue
			}
			if p.resolve(StateCompleted) {
				p.closeWindow(w)
				return nil
			}

		case <-ticker.C:
			if w.Closed() && p.resolve(StateCancelled) {
				p.logger.Info("Popup closed before completion", "attempt", p.attemptID)
				return ErrPopupClosed
			}

		case <-timer.C:
			if p.resolve(StateTimedOut) {
				// close the window itself, not merely abandon the wait
				p.closeWindow(w)
				p.logger.Info("Popup login timed out", "attempt", p.attemptID, "timeout", p.timeout)
				return ErrPopupTimeout
			}
		}
	}
}

func (p *PopupCoordinator) begin() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return false
	}
	p.state = StatePopupOpen
	return true
}

// resolve moves the attempt to a terminal state. Only the first resolution
// wins, any later one is a no-op.
func (p *PopupCoordinator) resolve(target AttemptState) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePopupOpen {
		return false
	}
	p.state = target
	return true
}

// accepts validates a message before it may complete the attempt: it must
// come from our own window, from the expected origin, and carry the literal
// completion marker. The payload is never trusted for identity claims.
func (p *PopupCoordinator) accepts(msg Message, w Window) bool {
	if msg.Source != w {
		p.logger.Debug("Ignoring message from foreign window", "attempt", p.attemptID)
		return false
	}
	if p.expectedOrigin != "" && msg.Origin != p.expectedOrigin {
		p.logger.Warn("Ignoring message from unexpected origin", "attempt", p.attemptID, "origin", msg.Origin)
		return false
	}
	if msg.Data != LoginSuccessMarker {
		p.logger.Debug("Ignoring non-completion message", "attempt", p.attemptID)
		return false
	}
	return true
}

func (p *PopupCoordinator) closeWindow(w Window) {
	if w.Closed() {
		return
	}
	if err := w.Close(); err != nil {
		p.logger.Warn("Unable to close popup window", "attempt", p.attemptID, "error", err)
	}
}

// originOf extracts scheme://host from a URL for message origin validation.
func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
