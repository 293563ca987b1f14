package scout

import "errors"

var (
	errPlainFunc = errors.New("plain func values do not expose arguments")
	errPanicked  = errors.New("arguments accessor panicked")
)
