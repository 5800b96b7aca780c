package audio

import "errors"

var (
	ErrConfiguration     = errors.New("invalid player configuration")
	ErrUnrecoverableInit = errors.New("track initialization failed")
	ErrSessionClosed     = errors.New("session is closed")
	ErrNoTrack           = errors.New("no track loaded")
)
