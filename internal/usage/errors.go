package usage

import "errors"

// ErrLimitReached indicates the user exhausted the monthly analysis quota
// for their plan.
var ErrLimitReached = errors.New("monthly analysis limit reached")
