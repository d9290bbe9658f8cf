package util

// LockTimeThreshold is the number below which a transaction lock-time is
// interpreted as a block height instead of a unix timestamp.
const LockTimeThreshold = 500000000

// IsLockTimeSatisfied reports whether a lock-time value has been reached,
// given the candidate block height and the median time past of the chain.
func IsLockTimeSatisfied(lockTime, blockHeight uint32, medianTimePast int64) bool {
	if lockTime < LockTimeThreshold {
		return lockTime < blockHeight
	}

	return int64(lockTime) < medianTimePast
}
