package models

import "time"

// Plugin is a user-supplied metric: code executed remotely against every
// file pair of a category. The orchestrator treats it as just another
// pairwise kind; results are cached by content hash because execution is
// expensive.
type Plugin struct {
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
}

// Kind returns the metric kind identifier for this plugin.
func (p Plugin) Kind() Kind {
	return PluginKind(p.Name).ID
}
