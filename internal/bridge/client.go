package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/livemark/internal/event"
	"github.com/dshills/livemark/internal/logging"
	"github.com/dshills/livemark/internal/resolve"
)

// Config configures a Client.
type Config struct {
	URL         string
	DialTimeout time.Duration
	CallTimeout time.Duration

	// MaxFailures consecutive failures open the breaker.
	MaxFailures uint32

	// OpenTimeout is how long the breaker rejects calls before probing.
	OpenTimeout time.Duration

	Header http.Header
}

// DefaultConfig returns the default client settings for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:         url,
		DialTimeout: 5 * time.Second,
		CallTimeout: 10 * time.Second,
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
	}
}

// Publisher receives host notifications. *event.Bus satisfies it.
type Publisher interface {
	Publish(ev event.Event) error
}

type response struct {
	result gjson.Result
	err    error
}

// Client calls the host over one WebSocket, redialing after the connection
// drops. It is safe for concurrent use.
type Client struct {
	cfg     Config
	dialer  websocket.Dialer
	breaker *gobreaker.CircuitBreaker
	group   singleflight.Group
	pub     Publisher
	log     *logging.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	pending map[string]chan response
	closed  bool
	readers sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithPublisher forwards host notifications to p.
func WithPublisher(p Publisher) Option {
	return func(c *Client) {
		c.pub = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// New creates a client. The connection is opened by the first call or by
// Connect.
func New(cfg Config, opts ...Option) *Client {
	def := DefaultConfig(cfg.URL)
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}

	c := &Client{
		cfg:     cfg,
		dialer:  websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
		pending: make(map[string]chan response),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrNop(c.log).WithComponent("bridge")
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "bridge",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		// The host answering with an error is not a transport failure.
		IsSuccessful: func(err error) bool {
			var re *RemoteError
			return err == nil || errors.As(err, &re)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit %s: %s -> %s", name, from, to)
		},
	})
	return c
}

// Connect opens the connection now.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.connection(ctx)
	return err
}

// State returns the breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) connection(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.conn != nil {
		return c.conn, nil
	}
	dctx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()
	conn, _, err := c.dialer.DialContext(dctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("bridge: dial %s: %w", c.cfg.URL, err)
	}
	c.conn = conn
	c.readers.Add(1)
	go c.readLoop(conn)
	c.log.Debug("connected to %s", c.cfg.URL)
	return conn, nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.readers.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("read: %v", err)
			}
			c.drop(conn)
			return
		}
		c.dispatch(data)
	}
}

// drop forgets conn and fails every call waiting on it.
func (c *Client) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	pending := c.pending
	c.pending = make(map[string]chan response)
	c.mu.Unlock()

	conn.Close()
	for _, ch := range pending {
		ch <- response{err: ErrDisconnected}
	}
}

func (c *Client) dispatch(data []byte) {
	if !gjson.ValidBytes(data) {
		c.log.Warn("invalid message from host")
		return
	}
	msg := gjson.ParseBytes(data)
	id := msg.Get("id")
	if !id.Exists() || id.Type == gjson.Null {
		c.notify(msg.Get("method").String(), msg.Get("params"))
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[id.String()]
	delete(c.pending, id.String())
	c.mu.Unlock()
	if !ok {
		c.log.Debug("response for unknown call %s", id.String())
		return
	}
	if e := msg.Get("error"); e.Exists() {
		ch <- response{err: &RemoteError{Code: int(e.Get("code").Int()), Message: e.Get("message").String()}}
		return
	}
	ch <- response{result: msg.Get("result")}
}

func (c *Client) notify(method string, p gjson.Result) {
	if c.pub == nil {
		return
	}
	var ev event.Event
	switch event.Topic(method) {
	case event.TopicNoteSaved:
		ev = event.NoteSavedEvent(p.Get("path").String())
	case event.TopicPropertyChanged:
		ev = event.PropertyChangedEvent(p.Get("note_id").String(), p.Get("key").String())
	case event.TopicHabitLogged:
		ev = event.HabitLoggedEvent(p.Get("habit_id").String(), p.Get("date").String())
	default:
		c.log.Debug("ignoring notification %q", method)
		return
	}
	ev.Source = "bridge"
	if err := c.pub.Publish(ev); err != nil {
		c.log.Warn("publish %s: %v", method, err)
	}
}

// Call sends one request and waits for its result.
func (c *Client) Call(ctx context.Context, method, params string) (gjson.Result, error) {
	v, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, method, params)
	})
	if err != nil {
		var re *RemoteError
		if errors.As(err, &re) {
			re.Method = method
		}
		return gjson.Result{}, err
	}
	return v.(gjson.Result), nil
}

func (c *Client) roundTrip(ctx context.Context, method, params string) (gjson.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	conn, err := c.connection(ctx)
	if err != nil {
		return gjson.Result{}, err
	}
	id := newID()
	msg, err := request(id, method, params)
	if err != nil {
		return gjson.Result{}, err
	}

	ch := make(chan response, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(dl)
	}
	err = conn.WriteMessage(websocket.TextMessage, []byte(msg))
	c.writeMu.Unlock()
	if err != nil {
		c.drop(conn)
		return gjson.Result{}, fmt.Errorf("bridge: send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return gjson.Result{}, fmt.Errorf("bridge: %s: %w", method, ctx.Err())
	case r := <-ch:
		return r.result, r.err
	}
}

// read performs a call whose result may be shared with identical in-flight
// reads.
func (c *Client) read(ctx context.Context, method, params string) (gjson.Result, error) {
	v, err, _ := c.group.Do(method+"\x00"+params, func() (interface{}, error) {
		return c.Call(ctx, method, params)
	})
	if err != nil {
		return gjson.Result{}, err
	}
	return v.(gjson.Result), nil
}

// Close closes the connection. Pending calls fail with ErrDisconnected.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	var err error
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = conn.Close()
	}
	c.readers.Wait()
	return err
}

// ResolveQuery implements resolve.QueryResolver.
func (c *Client) ResolveQuery(ctx context.Context, raw string) (*resolve.QueryResult, error) {
	p, err := params("raw", raw)
	if err != nil {
		return nil, err
	}
	r, err := c.read(ctx, MethodResolveQuery, p)
	if err != nil {
		return nil, err
	}
	return decodeQuery(r)
}

// ResolveHabits implements resolve.HabitResolver.
func (c *Client) ResolveHabits(ctx context.Context, raw string) (*resolve.HabitResult, error) {
	p, err := params("raw", raw)
	if err != nil {
		return nil, err
	}
	r, err := c.read(ctx, MethodResolveHabits, p)
	if err != nil {
		return nil, err
	}
	return decodeJSON[resolve.HabitResult](r, "habits")
}

// ResolveEmbed implements resolve.EmbedResolver.
func (c *Client) ResolveEmbed(ctx context.Context, req resolve.EmbedRequest) (*resolve.EmbedResult, error) {
	p, err := encodeJSON(req)
	if err != nil {
		return nil, err
	}
	r, err := c.read(ctx, MethodResolveEmbed, p)
	if err != nil {
		return nil, err
	}
	return decodeJSON[resolve.EmbedResult](r, "embed")
}

// ToggleHabit implements resolve.Mutator.
func (c *Client) ToggleHabit(ctx context.Context, habitID int64, date string) error {
	return c.write(ctx, MethodToggleHabit, "habit_id", habitID, "date", date)
}

// SetHabitEntry implements resolve.Mutator.
func (c *Client) SetHabitEntry(ctx context.Context, habitID int64, date, value string) error {
	return c.write(ctx, MethodSetHabitEntry, "habit_id", habitID, "date", date, "value", value)
}

// SetNoteProperty implements resolve.Mutator.
func (c *Client) SetNoteProperty(ctx context.Context, noteID int64, key, value, typ string) error {
	return c.write(ctx, MethodSetProperty, "note_id", noteID, "key", key, "value", value, "type", typ)
}

// FollowLink implements resolve.Navigator.
func (c *Client) FollowLink(ctx context.Context, link resolve.Link) error {
	p, err := encodeJSON(link)
	if err != nil {
		return err
	}
	_, err = c.Call(ctx, MethodFollowLink, p)
	return err
}

// ApplyEdit implements resolve.Editor.
func (c *Client) ApplyEdit(ctx context.Context, edit resolve.Edit) error {
	p, err := encodeJSON(edit)
	if err != nil {
		return err
	}
	_, err = c.Call(ctx, MethodApplyEdit, p)
	return err
}

func (c *Client) write(ctx context.Context, method string, kv ...any) error {
	p, err := params(kv...)
	if err != nil {
		return err
	}
	_, err = c.Call(ctx, method, p)
	return err
}

// Collaborators returns c as every resolve contract.
func (c *Client) Collaborators() resolve.Collaborators {
	return resolve.Full(c)
}
