package domain

import (
	"strings"
)

// MediaType discriminates photo and video items.
type MediaType string

const (
	MediaTypePhoto MediaType = "Photo"
	MediaTypeVideo MediaType = "Video"
)

// IsValid checks whether the media type is known.
func (t MediaType) IsValid() bool {
	return t == MediaTypePhoto || t == MediaTypeVideo
}

// DefaultViewportWidth is the logical width, in points, layouts are computed for.
const DefaultViewportWidth = 390.0

// Pool identifies one of the two cache partitions.
type Pool int

const (
	PoolImage Pool = iota
	PoolVideo
)

func (p Pool) String() string {
	switch p {
	case PoolImage:
		return "image"
	case PoolVideo:
		return "video"
	default:
		return "unknown"
	}
}

// IsValid checks whether the pool is one of the known partitions.
func (p Pool) IsValid() bool {
	return p == PoolImage || p == PoolVideo
}

// PhotoSource lists the renditions of a photo.
type PhotoSource struct {
	Original  string `json:"original"`
	Large2x   string `json:"large2x"`
	Large     string `json:"large"`
	Medium    string `json:"medium"`
	Small     string `json:"small"`
	Portrait  string `json:"portrait"`
	Landscape string `json:"landscape"`
	Tiny      string `json:"tiny"`
}

// Photographer is the author of a photo.
type Photographer struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Photo is the photo-specific payload of a MediaItem.
type Photo struct {
	Source       PhotoSource  `json:"src"`
	Photographer Photographer `json:"photographer"`
	AvgColor     string       `json:"avg_color,omitempty"`
	Alt          string       `json:"alt,omitempty"`
}

// VideoFile is one encoded variant of a video.
type VideoFile struct {
	ID       int64   `json:"id"`
	Quality  string  `json:"quality,omitempty"`
	FileType string  `json:"file_type"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps,omitempty"`
	Link     string  `json:"link"`
	Size     int64   `json:"size"`
}

// VideoPicture is a preview frame of a video.
type VideoPicture struct {
	ID      int64  `json:"id"`
	Nr      int    `json:"nr"`
	Picture string `json:"picture"`
}

// VideoUser is the author of a video.
type VideoUser struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Video is the video-specific payload of a MediaItem.
type Video struct {
	Duration     int            `json:"duration"`
	ThumbnailURL string         `json:"thumbnail_url"`
	User         VideoUser      `json:"user"`
	Files        []VideoFile    `json:"files"`
	Pictures     []VideoPicture `json:"pictures,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
}

// MediaItem is one entry of a media feed. Items are never mutated after
// construction; a refresh replaces them.
type MediaItem struct {
	ID     int64     `json:"id"`
	Type   MediaType `json:"type"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
	URL    string    `json:"url"`
	Photo  *Photo    `json:"photo,omitempty"`
	Video  *Video    `json:"video,omitempty"`
}

// IsPhoto reports whether the item is a photo.
func (m *MediaItem) IsPhoto() bool { return m.Type == MediaTypePhoto }

// IsVideo reports whether the item is a video.
func (m *MediaItem) IsVideo() bool { return m.Type == MediaTypeVideo }

// IsLandscape reports whether the item is wider than tall.
func (m *MediaItem) IsLandscape() bool { return m.Width > m.Height }

// ContentHeight returns the cell height of the item in a grid rendered at
// viewportWidth. Photos and landscape videos take a third of the viewport,
// portrait videos half of it.
func (m *MediaItem) ContentHeight(viewportWidth float64) float64 {
	if m.IsVideo() && !m.IsLandscape() {
		return 2 * viewportWidth / 4
	}
	return viewportWidth / 3
}

// RenderURL returns the resource a grid cell displays and the cache pool it
// belongs to. Photos render their medium rendition. Videos play the first
// "sd" file, then the first file of any quality, and fall back to their
// thumbnail (an image) when no file is available. ok is false when the item
// has nothing to render.
func (m *MediaItem) RenderURL() (url string, pool Pool, ok bool) {
	switch {
	case m.IsPhoto() && m.Photo != nil:
		if m.Photo.Source.Medium != "" {
			return m.Photo.Source.Medium, PoolImage, true
		}
		if m.Photo.Source.Original != "" {
			return m.Photo.Source.Original, PoolImage, true
		}
	case m.IsVideo() && m.Video != nil:
		if f, found := m.Video.PreferredFile(); found {
			return f.Link, PoolVideo, true
		}
		if m.Video.ThumbnailURL != "" {
			return m.Video.ThumbnailURL, PoolImage, true
		}
	}
	return "", PoolImage, false
}

// PreferredFile picks the file a grid cell plays.
func (v *Video) PreferredFile() (VideoFile, bool) {
	for _, f := range v.Files {
		if strings.EqualFold(f.Quality, "sd") && f.Link != "" {
			return f, true
		}
	}
	for _, f := range v.Files {
		if f.Link != "" {
			return f, true
		}
	}
	return VideoFile{}, false
}
