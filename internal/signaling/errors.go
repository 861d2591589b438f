package signaling

import "errors"

// Registry-level rejections. These are reported to the offending client
// over the "log" event and logged server-side; they never terminate the
// connection.
var (
	ErrEmptyRoom     = errors.New("room name must not be empty")
	ErrAlreadyInRoom = errors.New("already a member of a room")
	ErrNotInRoom     = errors.New("not in a room")
)
