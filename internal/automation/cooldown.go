package automation

import (
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cooldowns remembers when each keyword responder last fired. Entries
// expire after the responder's cooldown, which keeps the map bounded.
type Cooldowns struct {
	mu    sync.Mutex
	fired *cache.Cache
}

func NewCooldowns() *Cooldowns {
	return &Cooldowns{fired: cache.New(cache.NoExpiration, 5*time.Minute)}
}

func cooldownKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// Ready reports whether at least cooldownSeconds have passed since the
// responder last fired.
func (c *Cooldowns) Ready(id uint, cooldownSeconds int, now time.Time) bool {
	if cooldownSeconds <= 0 {
		return true
	}
	v, ok := c.fired.Get(cooldownKey(id))
	if !ok {
		return true
	}
	return now.Sub(v.(time.Time)) >= time.Duration(cooldownSeconds)*time.Second
}

// Claim marks the responder as fired at now if it is ready.
func (c *Cooldowns) Claim(id uint, cooldownSeconds int, now time.Time) bool {
	if cooldownSeconds <= 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.Ready(id, cooldownSeconds, now) {
		return false
	}
	c.fired.Set(cooldownKey(id), now, time.Duration(cooldownSeconds)*time.Second)
	return true
}

// Release undoes a Claim made at claimedAt, unless a later claim replaced it.
func (c *Cooldowns) Release(id uint, claimedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.fired.Get(cooldownKey(id)); ok && v.(time.Time).Equal(claimedAt) {
		c.fired.Delete(cooldownKey(id))
	}
}
