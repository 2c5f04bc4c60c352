package errors

import "fmt"

var (
	ErrWorkerPanic       = fmt.Errorf("worker panic")
	ErrNickAlreadyInUse  = fmt.Errorf("nickname already in use")
	ErrRoomNotFound      = fmt.Errorf("group chat does not exists")
	ErrNotJoined         = fmt.Errorf("not a participant of this room")
	ErrMalformedAddress  = fmt.Errorf("malformed address")
	ErrStreamClosed      = fmt.Errorf("component stream closed")
	ErrHandshakeRejected = fmt.Errorf("component handshake rejected")
)
