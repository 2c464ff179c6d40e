package models

// EngagementSession is the per-browsing-session popup state: a monotonic
// shown counter, the one-shot trigger flags already consumed, and whether
// the visitor dismissed prompts for good. Serialized into the session store.
type EngagementSession struct {
	ShownCount   int             `json:"shown_count"`
	UsedOneShots map[string]bool `json:"used_one_shots,omitempty"`
	Dismissed    bool            `json:"dismissed"`
	LastTrigger  string          `json:"last_trigger,omitempty"`
}
