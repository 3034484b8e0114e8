package backup

import "time"

const ManifestFile = "manifest.json"

// MainRecord describes the backed-up main file.
type MainRecord struct {
	StoredFile       string `json:"stored_file"`
	OriginalPath     string `json:"original_path"` // relative to uploads root
	OriginalSize     int64  `json:"original_size"`
	OriginalMime     string `json:"original_mime"`
	ConvertedFromPNG bool   `json:"converted_from_png,omitempty"`
	ConvertedToWebP  bool   `json:"converted_to_webp,omitempty"`
	HasAlpha         bool   `json:"has_alpha,omitempty"`
	PriorMime        string `json:"prior_mime,omitempty"` // pre-conversion MIME for webp inputs
}

// ThumbRecord describes one backed-up thumbnail. The entry is recorded even
// when the copy failed so a later restore can detect the gap.
type ThumbRecord struct {
	StoredFile   string `json:"stored_file"`
	OriginalPath string `json:"original_path"`
	Copied       bool   `json:"copied"`
}

// ConversionStep is one intermediate format change in a chain.
type ConversionStep struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
}

// ConversionDetail is present when a conversion was performed on top of a
// prior conversion. Original is the earliest known backup record.
type ConversionDetail struct {
	Original MainRecord       `json:"original"`
	Steps    []ConversionStep `json:"steps"`
}

// Manifest is the JSON sidecar written into each backup directory.
type Manifest struct {
	Kind         Kind                   `json:"kind"`
	AttachmentID int64                  `json:"attachment_id"`
	CreatedAt    time.Time              `json:"created_at"`
	Compression  string                 `json:"compression,omitempty"`
	ToolVersion  string                 `json:"tool_version,omitempty"`
	Main         MainRecord             `json:"main"`
	Thumbnails   map[string]ThumbRecord `json:"thumbnails,omitempty"`
	Chain        *ConversionDetail      `json:"conversion_chain,omitempty"`
}
