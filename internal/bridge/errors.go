package bridge

import "errors"

// ErrUnsafeText marks text that contains the preformatted-block terminator
// and would break out of the fenced block it is embedded in.
var ErrUnsafeText = errors.New("text contains a preformatted block terminator")

// ErrAllDeliveriesFailed is returned when every recipient chat send failed.
// The SMTP layer maps it to a temporary failure so the sender retries.
var ErrAllDeliveriesFailed = errors.New("delivery failed for every recipient chat")
