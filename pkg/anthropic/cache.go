package anthropic

// CachedSystem returns a single system block marked for prompt caching.
// ttl is "5m" or "1h"; empty uses the API default.
func CachedSystem(text, ttl string) []SystemBlock {
	return []SystemBlock{{
		Text:         text,
		CacheControl: &CacheControl{TTL: ttl},
	}}
}
