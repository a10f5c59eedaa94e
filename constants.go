package netbuf

import "github.com/mnunberg/netbuf/internal/constants"

// Re-export pool-sizing defaults for the public API.
const (
	DefaultSendQueueBaseAlloc   = constants.SendQueueBaseAlloc
	DefaultSendQueueCacheBlocks = constants.SendQueueCacheBlocks
	DefaultDeallocBaseAlloc     = constants.DeallocBaseAlloc
	DefaultDeallocCacheBlocks   = constants.DeallocCacheBlocks
	DefaultDataBaseAlloc        = constants.DataBaseAlloc
	DefaultDataCacheBlocks      = constants.DataCacheBlocks
)
