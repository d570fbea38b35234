package chat

import "errors"

// ErrUnknownAccount is returned by Login when the requested account has not
// been created.
var ErrUnknownAccount = errors.New("unknown account")
