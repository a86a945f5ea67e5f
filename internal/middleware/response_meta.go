package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	metaContextKey = "mtss.response_meta"
	metaStartKey   = "mtss.response_start"

	metaCacheHit       = "cache_hit"
	metaProcessingTime = "processing_time_ms"
)

// WithResponseMeta opens a per-request meta map that handlers fill before writing the
// envelope, e.g. whether a report was served from the tenant cache.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(metaStartKey, time.Now())
		c.Set(metaContextKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit flags whether the report payload came from Redis.
func SetCacheHit(c *gin.Context, hit bool) {
	if c == nil {
		return
	}
	meta := metaFor(c)
	if meta == nil {
		meta = map[string]interface{}{}
		c.Set(metaContextKey, meta)
	}
	meta[metaCacheHit] = hit
}

// ExtractMeta returns the meta to embed in the envelope, stamped with the time spent
// so far when WithResponseMeta is in the chain. Nil when nothing was recorded.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	meta := metaFor(c)
	if meta == nil {
		return nil
	}
	if start, ok := c.Get(metaStartKey); ok {
		if t, ok := start.(time.Time); ok {
			meta[metaProcessingTime] = time.Since(t).Milliseconds()
		}
	}
	return meta
}

func metaFor(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	raw, ok := c.Get(metaContextKey)
	if !ok {
		return nil
	}
	meta, _ := raw.(map[string]interface{})
	return meta
}
