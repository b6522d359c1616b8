package bridge

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/livemark/internal/resolve"
)

// Methods understood by the host.
const (
	MethodResolveQuery  = "query.resolve"
	MethodResolveHabits = "habits.resolve"
	MethodResolveEmbed  = "embed.resolve"
	MethodToggleHabit   = "habit.toggle"
	MethodSetHabitEntry = "habit.set"
	MethodSetProperty   = "note.property.set"
	MethodFollowLink    = "link.follow"
	MethodApplyEdit     = "document.edit"
)

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeNotFound reports a missing habit, note or item.
	CodeNotFound = -32004

	// CodeUnsupported reports an operation the host does not offer.
	CodeUnsupported = -32005
)

var (
	ErrClosed       = errors.New("bridge: client closed")
	ErrDisconnected = errors.New("bridge: connection lost")
	ErrBadResponse  = errors.New("bridge: malformed response")
)

// RemoteError is an error returned by the host.
type RemoteError struct {
	Method  string
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bridge: %s: %s (code %d)", e.Method, e.Message, e.Code)
}

// Unwrap maps host error codes onto resolve sentinels.
func (e *RemoteError) Unwrap() error {
	switch e.Code {
	case CodeNotFound:
		return resolve.ErrNotFound
	case CodeUnsupported:
		return resolve.ErrUnsupported
	default:
		return nil
	}
}

// request builds a request envelope.
func request(id, method, params string) (string, error) {
	msg := `{"jsonrpc":"2.0"}`
	var err error
	if msg, err = sjson.Set(msg, "id", id); err != nil {
		return "", err
	}
	if msg, err = sjson.Set(msg, "method", method); err != nil {
		return "", err
	}
	if params == "" {
		params = "{}"
	}
	return sjson.SetRaw(msg, "params", params)
}

// notification builds a message without an id.
func notification(method, params string) (string, error) {
	msg, err := sjson.Set(`{"jsonrpc":"2.0"}`, "method", method)
	if err != nil {
		return "", err
	}
	return sjson.SetRaw(msg, "params", params)
}

// result builds a success response.
func result(id gjson.Result, raw string) (string, error) {
	msg, err := sjson.SetRaw(`{"jsonrpc":"2.0"}`, "id", id.Raw)
	if err != nil {
		return "", err
	}
	if raw == "" {
		raw = "null"
	}
	return sjson.SetRaw(msg, "result", raw)
}

// failure builds an error response.
func failure(id gjson.Result, code int, message string) string {
	idRaw := id.Raw
	if idRaw == "" {
		idRaw = "null"
	}
	msg, _ := sjson.SetRaw(`{"jsonrpc":"2.0"}`, "id", idRaw)
	msg, _ = sjson.Set(msg, "error.code", code)
	msg, _ = sjson.Set(msg, "error.message", message)
	return msg
}

// params builds a params object from alternating keys and values.
func params(kv ...any) (string, error) {
	out := "{}"
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			return "", fmt.Errorf("params: key %v is not a string", kv[i])
		}
		var err error
		if out, err = sjson.Set(out, key, kv[i+1]); err != nil {
			return "", err
		}
	}
	return out, nil
}

func newID() string {
	return uuid.NewString()
}
