package api

import "time"

// Status is one snapshot of /api/status.
type Status struct {
	LastConnectTime    *time.Time `json:"lastConnectTime"`
	LastDisconnectTime *time.Time `json:"lastDisconnectTime"`
	StreamTitle        string     `json:"streamTitle"`
	ViewerCount        int        `json:"viewerCount"`
	Online             bool       `json:"online"`
}

// ExternalAction is a server-configured link shown to viewers.
type ExternalAction struct {
	URL            string `json:"url"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Icon           string `json:"icon"`
	Color          string `json:"color"`
	OpenExternally bool   `json:"openExternally"`
}

// Config is the subset of /api/config the viewer consumes.
type Config struct {
	Name                 string           `json:"name"`
	Summary              string           `json:"summary"`
	Logo                 string           `json:"logo"`
	Version              string           `json:"version"`
	ExtraPageContent     string           `json:"extraPageContent"`
	CustomStyles         string           `json:"customStyles"`
	Tags                 []string         `json:"tags"`
	ExternalActions      []ExternalAction `json:"externalActions"`
	MaxSocketPayloadSize int              `json:"maxSocketPayloadSize"`
	ChatDisabled         bool             `json:"chatDisabled"`
}

// Variant is one stream output rendition.
type Variant struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

// Registration is the result of an anonymous chat registration.
type Registration struct {
	ID          string `json:"id"`
	AccessToken string `json:"accessToken"`
	DisplayName string `json:"displayName"`
}
