package dispatch

import "errors"

// ErrOracleUnavailable indicates the decision model could not be reached
// after retries. It is terminal for the turn.
var ErrOracleUnavailable = errors.New("decision oracle unavailable")
