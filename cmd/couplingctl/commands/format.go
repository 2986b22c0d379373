package commands

import "errors"

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// errStatusRequestFailed is returned when couplingd's status endpoint
// itself responds with a non-200 status.
var errStatusRequestFailed = errors.New("status request failed")
