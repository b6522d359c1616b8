package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/dshills/livemark/internal/event"
	"github.com/dshills/livemark/internal/logging"
	"github.com/dshills/livemark/internal/resolve"
)

// Handler serves collaborators to bridge clients over WebSocket.
type Handler struct {
	collab   resolve.Collaborators
	upgrader websocket.Upgrader
	log      *logging.Logger

	mu    sync.Mutex
	conns map[*serverConn]struct{}
}

type serverConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (sc *serverConn) send(msg string) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	_ = sc.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return sc.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

// NewHandler creates a handler answering with collab.
func NewHandler(collab resolve.Collaborators, log *logging.Logger) *Handler {
	return &Handler{
		collab: collab,
		log:    logging.OrNop(log).WithComponent("bridge-server"),
		conns:  make(map[*serverConn]struct{}),
	}
}

// ServeHTTP upgrades the request and serves calls until the client leaves.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade: %v", err)
		return
	}
	sc := &serverConn{conn: conn}
	h.mu.Lock()
	h.conns[sc] = struct{}{}
	h.mu.Unlock()

	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		h.mu.Lock()
		delete(h.conns, sc)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sc.send(h.serve(ctx, data)); err != nil {
				h.log.Debug("reply: %v", err)
			}
		}()
	}
}

// Conns returns the number of connected clients.
func (h *Handler) Conns() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Notify pushes a host event to every connected client.
func (h *Handler) Notify(ev event.Event) error {
	var p string
	var err error
	switch pl := ev.Payload.(type) {
	case event.NoteSaved:
		p, err = params("path", pl.Path)
	case event.PropertyChanged:
		p, err = params("note_id", pl.NoteID, "key", pl.Key)
	case event.HabitLogged:
		p, err = params("habit_id", pl.HabitID, "date", pl.Date)
	default:
		return fmt.Errorf("bridge: cannot forward %s", ev.Topic)
	}
	if err != nil {
		return err
	}
	msg, err := notification(string(ev.Topic), p)
	if err != nil {
		return err
	}

	h.mu.Lock()
	conns := make([]*serverConn, 0, len(h.conns))
	for sc := range h.conns {
		conns = append(conns, sc)
	}
	h.mu.Unlock()

	var errs []error
	for _, sc := range conns {
		if err := sc.send(msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Handler) serve(ctx context.Context, data []byte) string {
	if !gjson.ValidBytes(data) {
		return failure(gjson.Result{}, CodeParseError, "invalid JSON")
	}
	msg := gjson.ParseBytes(data)
	id := msg.Get("id")
	method := msg.Get("method").String()
	if method == "" {
		return failure(id, CodeInvalidRequest, "missing method")
	}

	raw, err := h.call(ctx, method, msg.Get("params"))
	if err != nil {
		var code int
		switch {
		case errors.Is(err, errUnknownMethod):
			code = CodeMethodNotFound
		case errors.Is(err, errInvalidParams):
			code = CodeInvalidParams
		case errors.Is(err, resolve.ErrNotFound):
			code = CodeNotFound
		case errors.Is(err, resolve.ErrUnsupported):
			code = CodeUnsupported
		default:
			code = CodeInternalError
		}
		return failure(id, code, err.Error())
	}
	out, err := result(id, raw)
	if err != nil {
		return failure(id, CodeInternalError, err.Error())
	}
	return out
}

var (
	errUnknownMethod = errors.New("unknown method")
	errInvalidParams = errors.New("invalid params")
)

func unsupported(method string) error {
	return fmt.Errorf("%s: %w", method, resolve.ErrUnsupported)
}

func decodeParams(p gjson.Result, v any) error {
	if !p.IsObject() {
		return errInvalidParams
	}
	if err := json.Unmarshal([]byte(p.Raw), v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return nil
}

func (h *Handler) call(ctx context.Context, method string, p gjson.Result) (string, error) {
	c := h.collab
	switch method {
	case MethodResolveQuery:
		if c.Query == nil {
			return "", unsupported(method)
		}
		res, err := c.Query.ResolveQuery(ctx, p.Get("raw").String())
		if err != nil {
			return "", err
		}
		return encodeQuery(res)

	case MethodResolveHabits:
		if c.Habits == nil {
			return "", unsupported(method)
		}
		res, err := c.Habits.ResolveHabits(ctx, p.Get("raw").String())
		if err != nil {
			return "", err
		}
		return encodeJSON(res)

	case MethodResolveEmbed:
		if c.Embeds == nil {
			return "", unsupported(method)
		}
		var req resolve.EmbedRequest
		if err := decodeParams(p, &req); err != nil {
			return "", err
		}
		res, err := c.Embeds.ResolveEmbed(ctx, req)
		if err != nil {
			return "", err
		}
		return encodeJSON(res)

	case MethodToggleHabit, MethodSetHabitEntry, MethodSetProperty:
		if c.Mutations == nil {
			return "", unsupported(method)
		}
		var err error
		switch method {
		case MethodToggleHabit:
			err = c.Mutations.ToggleHabit(ctx, p.Get("habit_id").Int(), p.Get("date").String())
		case MethodSetHabitEntry:
			err = c.Mutations.SetHabitEntry(ctx, p.Get("habit_id").Int(), p.Get("date").String(), p.Get("value").String())
		default:
			err = c.Mutations.SetNoteProperty(ctx, p.Get("note_id").Int(), p.Get("key").String(), p.Get("value").String(), p.Get("type").String())
		}
		return "", err

	case MethodFollowLink:
		if c.Navigator == nil {
			return "", unsupported(method)
		}
		var link resolve.Link
		if err := decodeParams(p, &link); err != nil {
			return "", err
		}
		return "", c.Navigator.FollowLink(ctx, link)

	case MethodApplyEdit:
		if c.Editor == nil {
			return "", unsupported(method)
		}
		var edit resolve.Edit
		if err := decodeParams(p, &edit); err != nil {
			return "", err
		}
		return "", c.Editor.ApplyEdit(ctx, edit)

	default:
		return "", fmt.Errorf("%w: %s", errUnknownMethod, method)
	}
}
