// Package ordercode generates numeric order codes for payment links.
//
// PayOS rejects order codes above 9007199254740991 (the largest integer its
// JS-based tooling represents exactly), so codes are built as a decimal
// concatenation of a seconds timestamp and a zero-padded random suffix that is
// guaranteed to stay under that ceiling.
package ordercode

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

// MaxSafe is the largest order code the QR payment provider accepts.
const MaxSafe = 9007199254740991

// Generate returns a fresh order code: unix seconds (10 digits) followed by a
// 6-digit random suffix. If the concatenation would exceed MaxSafe, the
// timestamp is truncated to its last 9 digits and the suffix widened to 7
// digits so the total digit count stays constant. Codes sort roughly by
// creation time; uniqueness is probabilistic, not cryptographic.
func Generate() int64 {
	return generateAt(time.Now(), rand.Int63n)
}

func generateAt(now time.Time, randN func(int64) int64) int64 {
	timestamp := now.Unix()
	random := randN(1_000_000)

	code, err := strconv.ParseInt(fmt.Sprintf("%d%06d", timestamp, random), 10, 64)
	if err != nil || code > MaxSafe {
		short := timestamp % 1_000_000_000
		code, _ = strconv.ParseInt(fmt.Sprintf("%d%07d", short, random), 10, 64)
	}
	return code
}
