package domain

// Persona is the user's self-representation injected into the system
// context. Avatar is an image data URL or external reference; the server
// stores it opaquely.
type Persona struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Bio    string `json:"bio,omitempty"`
}

// DefaultUserName is used when no persona resolves for the active user.
const DefaultUserName = "You"

// PersonaInfo is the resolved identity the context assembler personalizes
// prompts with.
type PersonaInfo struct {
	UserName string
	UserBio  string
}
