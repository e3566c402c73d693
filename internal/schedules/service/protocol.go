package service

import (
	"fmt"
	"math/rand/v2"
	"time"
)

const maxProtocolAttempts = 3

// ProtocolFunc produces a candidate protocol for a booking created at now.
type ProtocolFunc func(now time.Time) string

// NewProtocol is the epoch milliseconds of now followed by four random digits.
func NewProtocol(now time.Time) string {
	return fmt.Sprintf("%d%04d", now.UnixMilli(), rand.IntN(10000))
}

func qrPayload(baseURL, protocol string) string {
	return baseURL + "/verify/" + protocol
}
