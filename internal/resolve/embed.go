package resolve

import (
	"path/filepath"
	"sort"
	"strings"
)

// MaxEmbedDepth is the deepest nested note embed that is resolved.
const MaxEmbedDepth = 3

// MediaKind classifies a media embed.
type MediaKind string

const (
	MediaNone  MediaKind = ""
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
	MediaPDF   MediaKind = "pdf"
)

var mediaExtensions = map[string]MediaKind{
	".png": MediaImage, ".jpg": MediaImage, ".jpeg": MediaImage, ".gif": MediaImage,
	".webp": MediaImage, ".svg": MediaImage, ".bmp": MediaImage, ".ico": MediaImage,
	".mp3": MediaAudio, ".wav": MediaAudio, ".ogg": MediaAudio, ".m4a": MediaAudio, ".flac": MediaAudio,
	".mp4": MediaVideo, ".webm": MediaVideo, ".mov": MediaVideo, ".avi": MediaVideo,
	".pdf": MediaPDF,
}

// MediaKindOf classifies a target by its extension.
func MediaKindOf(target string) MediaKind {
	return mediaExtensions[strings.ToLower(filepath.Ext(target))]
}

// MediaExtensions returns every recognized media extension, sorted.
func MediaExtensions() []string {
	out := make([]string, 0, len(mediaExtensions))
	for ext := range mediaExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// EmbedRequest asks for a note or media target.
type EmbedRequest struct {
	Target  string `json:"target"`
	Section string `json:"section,omitempty"`
	Depth   int    `json:"depth"`
}

// EmbedResult is the resolved embed.
type EmbedResult struct {
	NoteID    int64     `json:"note_id,omitempty"`
	Path      string    `json:"path"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content,omitempty"`
	Media     MediaKind `json:"media,omitempty"`
	AssetPath string    `json:"asset_url,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// IsMedia reports whether the result is a media asset.
func (r *EmbedResult) IsMedia() bool {
	return r.Media != MediaNone
}
