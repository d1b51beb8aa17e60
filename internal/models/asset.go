package models

import "time"

// MarkerKind says which tracking pattern an asset uses.
type MarkerKind string

const (
	MarkerDefaultPreset MarkerKind = "default_preset"
	MarkerCustom        MarkerKind = "custom"
)

// Asset is one owner's original image plus its optional synthesized marker.
// The JSON form is the persisted index record.
type Asset struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"owner_id"`
	Name       string     `json:"name"`
	FilePath   string     `json:"file_path"`
	FileURL    string     `json:"file_url"`
	MarkerType MarkerKind `json:"marker_type"`
	MarkerURL  string     `json:"marker_url,omitempty"`
	MarkerPath string     `json:"marker_path,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// HasMarker reports whether a custom marker is attached.
func (a *Asset) HasMarker() bool {
	return a.MarkerType == MarkerCustom && a.MarkerPath != "" && a.MarkerURL != ""
}

// AttachMarker records a stored custom marker.
func (a *Asset) AttachMarker(path, url string) {
	a.MarkerPath = path
	a.MarkerURL = url
	a.MarkerType = MarkerCustom
}

// Normalize makes marker fields agree: a record is custom only when both the
// marker path and URL are present, otherwise it falls back to the preset with
// no marker reference.
func (a *Asset) Normalize() {
	if a.MarkerPath != "" && a.MarkerURL != "" {
		a.MarkerType = MarkerCustom
		return
	}
	a.MarkerType = MarkerDefaultPreset
	a.MarkerPath = ""
	a.MarkerURL = ""
}
