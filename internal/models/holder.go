package models

// Holder is a player from an external directory. Only the id is stored with
// tickets; the contact rides along on reminder requests.
type Holder struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Contact string `json:"contact,omitempty"`
}
