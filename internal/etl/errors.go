package etl

import (
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/lib/pq"
)

// statusError carries the HTTP status of a rejected sink request so the
// loader can tell backpressure apart from a real failure.
type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string { return e.msg }

// isBackpressure reports whether err is a 429 from the sink. The request
// was well-formed and the connection is healthy, so the chunk is retried
// as-is under the operation budget.
func isBackpressure(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == http.StatusTooManyRequests
}

// isTransient reports whether err is a connectivity failure worth a full
// reconnect cycle, as opposed to a logic error that should end the run.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 08: connection exception. Class 57: operator intervention,
		// which covers admin_shutdown on restarts.
		class := pqErr.Code.Class()
		return class == "08" || class == "57"
	}
	return false
}
