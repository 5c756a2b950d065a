package checkout

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Listener catches the card-charge redirect on surfaces without an embeddable
// web view (the CLI, desktop). It binds a loopback HTTP server, hands out its
// return URL for the charge, and delivers the first completion exactly once.
type Listener struct {
	logger *zap.SugaredLogger

	server   *http.Server
	listener net.Listener

	once    sync.Once
	returns chan Return
}

func NewListener(logger *zap.SugaredLogger) *Listener {
	return &Listener{
		logger:  logger,
		returns: make(chan Return, 1),
	}
}

// Start binds an ephemeral loopback port and begins serving. It returns the
// full return URL the payment page should redirect to.
func (l *Listener) Start() (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	l.listener = ln

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(returnPath, l.handleReturn)

	l.server = &http.Server{Handler: r}
	go func() {
		if err := l.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			l.logger.Warnw("return listener stopped", "error", err)
		}
	}()

	return "http://" + ln.Addr().String() + returnPath, nil
}

// Returns delivers the first parsed return, then the channel is closed.
func (l *Listener) Returns() <-chan Return {
	return l.returns
}

// Shutdown stops the server. Safe to call whether or not a return arrived.
func (l *Listener) Shutdown(ctx context.Context) error {
	if l.server == nil {
		return nil
	}
	return l.server.Shutdown(ctx)
}

func (l *Listener) handleReturn(w http.ResponseWriter, r *http.Request) {
	ret, ok := ParseReturn(r.URL.String())
	if !ok {
		// Shouldn't happen given the route, but don't swallow it silently.
		l.logger.Warnw("redirect hit return path without completion markers", "url", r.URL.String())
	}

	l.once.Do(func() {
		l.returns <- ret
		close(l.returns)
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<html><body><h3>Payment step finished.</h3><p>You can close this tab and return to the app.</p></body></html>"))
}
