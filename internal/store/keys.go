package store

import "strings"

// Persisted state keys. The split between data-bearing keys (cleared by
// Reset) and identity/preference keys (preserved) is a contract shared with
// the UI; keep the two lists below in sync with it.
const (
	// KeyTimeseries holds the raw uploaded time-series payload.
	KeyTimeseries = "timeseries"
	// KeyCategories holds the category -> filenames index.
	KeyCategories = "categories"
	// KeySelection holds the user's metric allow-list; absent = defaults.
	KeySelection = "metric_selection"
	// KeyPlugins holds user-defined plugin definitions.
	KeyPlugins = "plugins"
	// KeySessionToken holds the anonymous session token.
	KeySessionToken = "session_token"
	// KeyPrefs holds UI-only preferences.
	KeyPrefs = "ui_prefs"

	// resultPrefix namespaces one key per metric kind's computed results.
	resultPrefix = "result:"
	// pluginCachePrefix namespaces content-addressed plugin cache entries.
	pluginCachePrefix = "plugincache:"
)

// ResultKey returns the persistence key for a metric kind's results.
func ResultKey(kind string) string {
	return resultPrefix + kind
}

// PluginCacheKey returns the persistence key for a plugin cache hash.
func PluginCacheKey(hash string) string {
	return pluginCachePrefix + hash
}

// clearedByReset reports whether a key holds data derived from the current
// upload and therefore falls to Reset. Session token, plugin definitions
// and UI preferences survive.
func clearedByReset(key string) bool {
	switch key {
	case KeyTimeseries, KeyCategories, KeySelection:
		return true
	}
	return strings.HasPrefix(key, resultPrefix) || strings.HasPrefix(key, pluginCachePrefix)
}
