package profiles

// Profile is the persisted record for a single Ethereum address.
// Rows are only ever written wholesale by a completed refresh; a refresh
// replaces every field rather than merging.
type Profile struct {
	Address   string      `json:"address" db:"address"`
	Name      string      `json:"name,omitempty" db:"name"`
	Data      ProfileData `json:"data" db:"data"`
	UpdatedAt int64       `json:"updatedAt" db:"updated_at"` // seconds since epoch
}

// ProfileData holds the metadata published under an ENS name.
// Every field defaults to the empty string when the registry has no value.
type ProfileData struct {
	Avatar      string `json:"avatar"`
	Header      string `json:"header"`
	Description string `json:"description"`
	Links       Links  `json:"links"`
}

// Links are the contact text records of an ENS name.
type Links struct {
	URL     string `json:"url"`
	Email   string `json:"email"`
	Twitter string `json:"twitter"`
	GitHub  string `json:"github"`
}

// Resolution is the outcome of classifying an identifier.
// It has exactly three shapes: resolved with a cached profile, resolved
// without one, or unresolved (zero value).
type Resolution struct {
	Address string   `json:"address,omitempty"`
	Name    string   `json:"name,omitempty"`
	Profile *Profile `json:"profile,omitempty"`
	Fresh   bool     `json:"fresh"`
}

// Resolved reports whether classification produced an address to act on.
func (r *Resolution) Resolved() bool {
	return r.Address != ""
}
