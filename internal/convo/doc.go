// Package convo provides filesystem-backed thread and message storage.
package convo

import "github.com/user/concierge/internal/types"

// Compile-time interface compliance checks.
var _ types.ThreadStore = (*ThreadStore)(nil)
var _ types.MessageStore = (*MessageStore)(nil)
