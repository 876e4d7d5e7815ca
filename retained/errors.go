package retained

import "errors"

var ErrClosed = errors.New("retained: backend is closed")
