package pagination

import "errors"

// ErrCursorMalformed is returned by DecodeCursor for tokens that are not
// valid base64url JSON or whose timestamps do not parse.
var ErrCursorMalformed = errors.New("malformed cursor")

// ErrCursorReset is returned by a query service when the row a cursor
// points at no longer exists.  Browsers restart from the first page.
var ErrCursorReset = errors.New("cursor reset")

// ErrStaleResponse marks a response that arrived after a newer request
// or a filter change.  It is never shown to users.
var ErrStaleResponse = errors.New("stale response")

// ErrNoMorePages is returned when moving past the last page.
var ErrNoMorePages = errors.New("no more pages")

// ErrPageUnreachable is returned when a page beyond the next uncached one
// is requested; keyset pagination cannot skip ahead.
var ErrPageUnreachable = errors.New("page unreachable")
