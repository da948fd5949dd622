// Package bridge exposes the login manager to a surrounding UI process as
// a line-delimited JSON request/response channel, usually over stdio.
package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/jwhitfield/deskauth/internal/logging"
	"github.com/jwhitfield/deskauth/internal/session"
)

// Request is one command from the frontend. ID is an opaque tag echoed
// back so the caller can correlate responses, which may arrive out of
// order when a blocking call overlaps a window_closed notification.
type Request struct {
	ID     string `json:"id"`
	Method string `json:"method"`
}

// Response carries the outcome of one request. Profile is always present;
// its fields are empty when the call failed or the user is signed out.
type Response struct {
	ID      string          `json:"id"`
	OK      bool            `json:"ok"`
	Profile session.Profile `json:"profile"`
	Error   string          `json:"error,omitempty"`
}

// Service is the slice of the login manager the bridge drives.
type Service interface {
	GetUser(ctx context.Context) (session.Profile, error)
	Logout(ctx context.Context) (session.Profile, error)
	WindowClosed()
}

// Bridge reads requests line by line and dispatches them. get_user and
// logout run on their own goroutines so a window_closed arriving while a
// login waits on the browser can still cancel it.
type Bridge struct {
	svc Service
	in  io.Reader

	mu  sync.Mutex // serializes response writes
	out *json.Encoder

	wg sync.WaitGroup
}

// New wraps a request stream and a response sink.
func New(svc Service, r io.Reader, w io.Writer) *Bridge {
	return &Bridge{svc: svc, in: r, out: json.NewEncoder(w)}
}

// Run reads requests until EOF or a read error. In-flight calls are
// allowed to finish and answer before Run returns.
func (b *Bridge) Run(ctx context.Context) error {
	log := logging.FromContext(ctx)
	defer b.wg.Wait()

	sc := bufio.NewScanner(b.in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			log.Warn("malformed bridge request", "err", err)
			b.write(Response{Error: "malformed request: " + err.Error()})
			continue
		}
		b.dispatch(ctx, req)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	log.Debug("bridge input closed")
	return nil
}

func (b *Bridge) dispatch(ctx context.Context, req Request) {
	switch req.Method {
	case "get_user":
		b.async(req, func() (session.Profile, error) { return b.svc.GetUser(ctx) })
	case "logout":
		b.async(req, func() (session.Profile, error) { return b.svc.Logout(ctx) })
	case "window_closed":
		b.svc.WindowClosed()
		b.write(Response{ID: req.ID, OK: true})
	default:
		b.write(Response{ID: req.ID, Error: "unknown method: " + req.Method})
	}
}

func (b *Bridge) async(req Request, call func() (session.Profile, error)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		profile, err := call()
		if err != nil {
			b.write(Response{ID: req.ID, Error: err.Error()})
			return
		}
		b.write(Response{ID: req.ID, OK: true, Profile: profile})
	}()
}

func (b *Bridge) write(resp Response) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// An encode failure means the frontend is gone; the read loop will
	// see EOF shortly, so there is nothing useful to do here.
	_ = b.out.Encode(resp)
}
