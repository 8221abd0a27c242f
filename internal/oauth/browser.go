package oauth

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/browser"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/log"
)

// ErrBrowserCancelled means the user closed or abandoned the auth session.
var ErrBrowserCancelled = errors.New(errors.ErrCodeAuthCancelled, "browser session cancelled")

// Browser runs an external authorization session.
type Browser interface {
	// RedirectURL is where the session must finish for OpenAuthSession to see it.
	RedirectURL() string

	// OpenAuthSession opens authURL and blocks until the redirect arrives,
	// returning the full callback URL, or ErrBrowserCancelled.
	OpenAuthSession(ctx context.Context, authURL string) (string, error)
}

const (
	callbackPath = "/callback"
	cancelPath   = "/cancel"
)

const closePage = `<!doctype html>
<html><head><meta charset="utf-8"><title>OFlow</title></head>
<body style="font-family:sans-serif;text-align:center;padding-top:4em">
<h2>%s</h2><p>You can close this window and return to the terminal.</p>
</body></html>`

// LoopbackBrowser opens the system browser and receives the redirect on a
// 127.0.0.1 listener. Visiting /cancel, or cancelling ctx, cancels.
type LoopbackBrowser struct {
	ln     net.Listener
	open   func(url string) error
	notice func(authURL, cancelURL string)
	logger *log.Logger

	mu     sync.Mutex
	used   bool
	closed bool
}

// LoopbackOption configures a LoopbackBrowser.
type LoopbackOption func(*LoopbackBrowser)

// WithOpener replaces the system browser launcher.
func WithOpener(open func(url string) error) LoopbackOption {
	return func(b *LoopbackBrowser) { b.open = open }
}

// WithNotice is called with the URLs before the browser opens, so the
// caller can print them for headless terminals.
func WithNotice(fn func(authURL, cancelURL string)) LoopbackOption {
	return func(b *LoopbackBrowser) { b.notice = fn }
}

// WithBrowserLogger sets the logger.
func WithBrowserLogger(l *log.Logger) LoopbackOption {
	return func(b *LoopbackBrowser) { b.logger = l.Named("browser") }
}

// NewLoopbackBrowser listens on addr ("127.0.0.1:0" picks a free port).
func NewLoopbackBrowser(addr string, opts ...LoopbackOption) (*LoopbackBrowser, error) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeAuthRequestFailed, "failed to start callback listener", err)
	}

	b := &LoopbackBrowser{
		ln:     ln,
		open:   browser.OpenURL,
		logger: log.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// RedirectURL returns http://127.0.0.1:<port>/callback.
func (b *LoopbackBrowser) RedirectURL() string {
	return "http://" + b.ln.Addr().String() + callbackPath
}

// CancelURL returns the URL that aborts the session.
func (b *LoopbackBrowser) CancelURL() string {
	return "http://" + b.ln.Addr().String() + cancelPath
}

// Close releases the listener. It is safe to call after OpenAuthSession
// and more than once.
func (b *LoopbackBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.used = true
	if err := b.ln.Close(); err != nil && !stderrors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

type sessionResult struct {
	url string
	err error
}

// OpenAuthSession may be called once; the listener closes when it returns.
func (b *LoopbackBrowser) OpenAuthSession(ctx context.Context, authURL string) (string, error) {
	b.mu.Lock()
	if b.used {
		b.mu.Unlock()
		return "", fmt.Errorf("loopback browser already used or closed")
	}
	b.used = true
	b.mu.Unlock()

	results := make(chan sessionResult, 1)
	deliver := func(r sessionResult) {
		select {
		case results <- r:
		default:
		}
	}

	redirectBase := "http://" + b.ln.Addr().String()
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, closePage, "Login received")
		deliver(sessionResult{url: redirectBase + r.URL.RequestURI()})
	})
	mux.HandleFunc(cancelPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, closePage, "Login cancelled")
		deliver(sessionResult{err: ErrBrowserCancelled})
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(b.ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			deliver(sessionResult{err: errors.Wrap(errors.ErrCodeAuthRequestFailed, "callback listener failed", err)})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	b.logger.Debug("opening browser", "redirect", b.RedirectURL())
	if b.notice != nil {
		b.notice(authURL, b.CancelURL())
	}
	if err := b.open(authURL); err != nil {
		b.logger.Warn("could not open a browser; open the URL manually", "url", authURL, "error", err)
	}

	select {
	case r := <-results:
		return r.url, r.err
	case <-ctx.Done():
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", errors.NewTimeoutError("browser sign-in", ctx.Err())
		}
		return "", ErrBrowserCancelled
	}
}
