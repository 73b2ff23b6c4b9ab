package debug

import (
	"fmt"
	"runtime"
)

// Assert panics when truth is false. It guards programming errors only
// (coordinates that skipped validation, impossible cell transitions); anything
// a peer or a human can trigger must be returned as an error instead.
//
// At most one msg may be given.
func Assert(truth bool, msg ...string) {
	if len(msg) > 1 {
		panic("debug.Assert: too many msg args")
	}
	if truth {
		return
	}
	if len(msg) == 1 {
		fail(msg[0])
	}
	fail("")
}

// Assertf is Assert with a formatted message.
func Assertf(truth bool, format string, args ...any) {
	if truth {
		return
	}
	fail(fmt.Sprintf(format, args...))
}

func fail(msg string) {
	text := "assertion failed"
	if msg != "" {
		text += ": " + msg
	}
	// skip fail and Assert/Assertf; the location otherwise gets buried under
	// recover frames
	if _, file, line, ok := runtime.Caller(2); ok {
		text = fmt.Sprintf("%s:%d: %s", file, line, text)
	}
	panic(text)
}
