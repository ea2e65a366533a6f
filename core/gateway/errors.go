package gateway

import "errors"

// ErrUnreachableDriver is returned when a candidate has no usable
// notification address.
var ErrUnreachableDriver = errors.New("driver has no reachable notification address")
