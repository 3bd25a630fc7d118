package models

// Suggestion is one sample question offered to the user before they type
// their own. Loaded once at startup from the proposal endpoint; read-only
// afterwards.
type Suggestion struct {
	Text string
}
