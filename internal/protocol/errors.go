package protocol

// Error codes reported to observers and admin callers.
const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Region routing/state.
	ErrRegionBusy = "E_REGION_BUSY"

	// Object layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNoPermission  = "E_NO_PERMISSION"
	ErrNotFound      = "E_NOT_FOUND"
	ErrGroupTooSmall = "E_GROUP_TOO_SMALL"
	ErrTooManyLinks  = "E_TOO_MANY_LINKS"
	ErrConflict      = "E_CONFLICT"
	ErrStale         = "E_STALE"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrRegionBusy:      {},
	ErrBadRequest:      {},
	ErrNoPermission:    {},
	ErrNotFound:        {},
	ErrGroupTooSmall:   {},
	ErrTooManyLinks:    {},
	ErrConflict:        {},
	ErrStale:           {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
