package models

// DeleteAssetRequest optionally names the blobs to remove. Missing paths are
// looked up from the index.
type DeleteAssetRequest struct {
	FilePath   string `json:"file_path,omitempty"`
	MarkerPath string `json:"marker_path,omitempty"`
}
