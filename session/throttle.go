package session

import (
	"strconv"
	"time"

	"github.com/presbrey/services/metadata"
)

// WarnThreshold is the failure count at which operators are warned. The
// warning fires only at this exact count, so one streak warns exactly once;
// a later streak (after a successful login clears the counter) warns again.
const WarnThreshold = 10

// Throttle tracks failed authentication attempts per account. The counter
// and last-failure details live in account metadata under a stable key
// contract, so external tooling can audit them.
type Throttle struct {
	meta *metadata.Store
}

func NewThrottle(meta *metadata.Store) *Throttle {
	return &Throttle{meta: meta}
}

// RecordFailure increments the account's failure counter (initializing it to
// 1 if absent) and records the failing mask and time. warn is true only when
// the counter lands exactly on WarnThreshold.
func (t *Throttle) RecordFailure(accountName, mask string, now time.Time) (count int, warn bool) {
	owner := metadata.Account(accountName)
	count = 1
	if raw, ok := t.meta.Get(owner, metadata.KeyLoginFailCount); ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			count = n + 1
		}
	}
	t.meta.Set(owner, metadata.KeyLoginFailCount, strconv.Itoa(count))
	t.meta.Set(owner, metadata.KeyLoginFailAddr, mask)
	t.meta.Set(owner, metadata.KeyLoginFailTime, strconv.FormatInt(now.Unix(), 10))
	return count, count == WarnThreshold
}

// Last returns the recorded failure count, last failing mask, and last
// failure time. ok is false when no failures are recorded; a missing counter
// always reads as zero.
func (t *Throttle) Last(accountName string) (count int, mask string, when time.Time, ok bool) {
	owner := metadata.Account(accountName)
	raw, present := t.meta.Get(owner, metadata.KeyLoginFailCount)
	if !present {
		return 0, "", time.Time{}, false
	}
	count, err := strconv.Atoi(raw)
	if err != nil || count <= 0 {
		return 0, "", time.Time{}, false
	}
	mask, _ = t.meta.Get(owner, metadata.KeyLoginFailAddr)
	if ts, tsOK := t.meta.Get(owner, metadata.KeyLoginFailTime); tsOK {
		if unix, err := strconv.ParseInt(ts, 10, 64); err == nil {
			when = time.Unix(unix, 0)
		}
	}
	return count, mask, when, true
}

// Clear deletes the three throttle keys. The deletes are issued together; if
// a crash leaves a partial set behind, the next read treats the missing
// counter as zero, so the inconsistency is harmless.
func (t *Throttle) Clear(accountName string) {
	owner := metadata.Account(accountName)
	t.meta.Delete(owner, metadata.KeyLoginFailCount)
	t.meta.Delete(owner, metadata.KeyLoginFailAddr)
	t.meta.Delete(owner, metadata.KeyLoginFailTime)
}
