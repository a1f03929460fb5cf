package service

// DeviceLimitExceeded decides whether a login from a new device must be
// refused. Callers only evaluate it when the current fingerprint is not
// already among the user's sessions; a returning device is never blocked by
// its own prior session. There is no eviction of old devices: the block
// holds until a slot frees up through logout, cleanup, or a raised limit.
func DeviceLimitExceeded(distinctDevices, deviceLimit int) bool {
	return distinctDevices >= deviceLimit
}
