package auth

import (
	"fmt"
	"html"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Callback is the terminal result delivered by the redirect listener:
// either an authorization code with its echoed state, or a provider error
// code such as "access_denied".
type Callback struct {
	Code  string
	State string
	Err   string
}

// Listener is the transient loopback endpoint the provider redirects the
// user's browser to. It accepts exactly one terminal callback per login
// attempt; requests that carry neither a code nor an error (favicon probes,
// stray preflights) are answered and ignored, and listening continues.
type Listener struct {
	srv  *http.Server
	ln   net.Listener
	ch   chan Callback
	once sync.Once
}

// Listen binds the loopback redirect endpoint. Port 0 picks a free port
// (tests); any other port must be free. A bind failure is returned
// immediately, since a held port means a prior attempt never closed.
func Listen(port int, callbackPath string) (*Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("redirect port %d unavailable: %w", port, err)
	}

	l := &Listener{
		ln: ln,
		ch: make(chan Callback, 1),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, l.handleCallback)
	l.srv = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() { _ = l.srv.Serve(ln) }()
	return l, nil
}

// Port returns the bound port.
func (l *Listener) Port() int {
	return l.ln.Addr().(*net.TCPAddr).Port
}

// Callbacks returns the channel the terminal callback is delivered on.
// At most one value is ever sent per listener.
func (l *Listener) Callbacks() <-chan Callback {
	return l.ch
}

// Close stops the listener and releases the bound port. It is idempotent
// and safe to call from the cancellation path while a request is in flight.
func (l *Listener) Close() {
	l.once.Do(func() {
		_ = l.srv.Close()
	})
}

func (l *Listener) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cb := Callback{
		Code:  strings.TrimSpace(q.Get("code")),
		State: strings.TrimSpace(q.Get("state")),
		Err:   strings.TrimSpace(q.Get("error")),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	// Neither code nor error: not a terminal event, keep waiting.
	if cb.Code == "" && cb.Err == "" {
		_, _ = fmt.Fprint(w, pageWaiting)
		return
	}

	// First terminal callback wins; later ones still get a page but are
	// dropped on the floor.
	select {
	case l.ch <- cb:
	default:
	}

	if cb.Err != "" {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprintf(w, pageError, html.EscapeString(cb.Err))
		return
	}
	_, _ = fmt.Fprint(w, pageSuccess)
}

const (
	pageSuccess = `<!DOCTYPE html><html><head><title>Signed in</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<h1>Signed in</h1><p>You can close this window and return to the app.</p>
</body></html>`

	pageError = `<!DOCTYPE html><html><head><title>Sign-in failed</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<h1>Sign-in failed</h1><p>The provider reported: %s</p>
<p>You can close this window and try again from the app.</p>
</body></html>`

	pageWaiting = `<!DOCTYPE html><html><head><title>Waiting</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<p>Waiting for sign-in to complete&hellip;</p>
</body></html>`
)
