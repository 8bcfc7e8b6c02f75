package client

import (
	"fmt"

	"github.com/lox/memoryforbots/internal/game"
	"github.com/lox/memoryforbots/internal/server"
)

// RemoteError is an error reply from the server. Engine rejections unwrap to
// the matching game sentinel, so errors.Is(err, game.ErrAlreadyMatched)
// works across the wire.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server error %s: %s", e.Code, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return game.ErrorFromCode(e.Code)
}

func remoteErrorFrom(msg *server.Message) error {
	var data server.ErrorData
	if err := msg.Decode(&data); err != nil {
		return err
	}
	return &RemoteError{Code: data.Code, Message: data.Message}
}
