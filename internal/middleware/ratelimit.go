package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/G1D0/flowgate/internal/observe"
	"github.com/G1D0/flowgate/internal/proxy"
	"github.com/G1D0/flowgate/internal/ratelimit"
	"github.com/G1D0/flowgate/pkg/compose"
)

// RateLimit short-circuits calls over the limit with a 429. The rest of the
// chain and the upstream are skipped. m may be nil.
func RateLimit(limiter *ratelimit.PerKey, key KeyFunc, m *observe.Metrics) Middleware {
	if key == nil {
		key = ByClientIP
	}
	return func(c *Context, next compose.Next) error {
		ok, retryAfter := limiter.Allow(key(c.Req()))
		if ok {
			return next()
		}

		if m != nil {
			m.RateLimitedTotal.WithLabelValues(c.Req().Route).Inc()
		}
		res := proxy.Text(http.StatusTooManyRequests, "rate limited")
		if retryAfter > 0 {
			res.Header.Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
		}
		respond(c, res)
		return nil
	}
}
