package models

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type AssetResponse struct {
	Success bool   `json:"success"`
	Asset   *Asset `json:"asset"`
}

type AssetListResponse struct {
	Success bool    `json:"success"`
	Assets  []Asset `json:"assets"`
}

type DeleteResponse struct {
	Success  bool     `json:"success"`
	Warnings []string `json:"warnings,omitempty"`
}

// ViewerResponse carries what the AR viewer needs to track and render an
// asset.
type ViewerResponse struct {
	AssetID    string `json:"asset_id"`
	AssetName  string `json:"asset_name"`
	AssetURL   string `json:"asset_url"`
	MarkerType string `json:"marker_type"`
	MarkerURL  string `json:"marker_url,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
