package cachesim

import "github.com/ehrlich-b/cachesim/internal/constants"

// Re-exported defaults for the public API; see internal/constants for the
// authoritative values.
const (
	DefaultWordSize      = constants.DefaultWordSize
	DefaultAddressSize   = constants.DefaultAddressSize
	DefaultBlockSize     = constants.DefaultBlockSize
	DefaultCacheSize     = constants.DefaultCacheSize
	DefaultCacheAssoc    = constants.DefaultCacheAssoc
	DefaultMemLat        = constants.DefaultMemLat
	DefaultBusWordTfLat  = constants.DefaultBusWordTfLat
	DefaultInputName     = constants.DefaultInputName
)
