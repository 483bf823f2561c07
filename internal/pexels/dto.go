package pexels

import (
	"github.com/utafrali/mediafeed/internal/domain"
)

// collectionResponse is one page of GET /collections/{id}.
type collectionResponse struct {
	Media        []mediaDTO `json:"media" validate:"dive"`
	Page         int        `json:"page"`
	PerPage      int        `json:"per_page"`
	TotalResults int        `json:"total_results"`
	NextPage     string     `json:"next_page,omitempty"`
}

// mediaDTO is the flat wire shape shared by photos and videos; which of the
// optional groups is populated depends on Type.
type mediaDTO struct {
	Type   string `json:"type" validate:"required,oneof=Photo Video"`
	ID     int64  `json:"id" validate:"gt=0"`
	Width  int    `json:"width" validate:"gt=0"`
	Height int    `json:"height" validate:"gt=0"`
	URL    string `json:"url"`

	// Photo
	Photographer    string              `json:"photographer,omitempty"`
	PhotographerURL string              `json:"photographer_url,omitempty"`
	PhotographerID  int64               `json:"photographer_id,omitempty"`
	Src             *domain.PhotoSource `json:"src,omitempty"`
	AvgColor        string              `json:"avg_color,omitempty"`
	Alt             string              `json:"alt,omitempty"`

	// Video
	Duration      int                   `json:"duration,omitempty"`
	Image         string                `json:"image,omitempty"`
	Tags          []string              `json:"tags,omitempty"`
	User          *domain.VideoUser     `json:"user,omitempty"`
	VideoFiles    []videoFileDTO        `json:"video_files,omitempty"`
	VideoPictures []domain.VideoPicture `json:"video_pictures,omitempty"`
}

// videoFileDTO differs from domain.VideoFile only in that quality may be null.
type videoFileDTO struct {
	ID       int64   `json:"id"`
	Quality  *string `json:"quality"`
	FileType string  `json:"file_type"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	Link     string  `json:"link"`
	Size     int64   `json:"size"`
}

func (d *mediaDTO) toDomain() *domain.MediaItem {
	item := &domain.MediaItem{
		ID:     d.ID,
		Type:   domain.MediaType(d.Type),
		Width:  d.Width,
		Height: d.Height,
		URL:    d.URL,
	}

	switch item.Type {
	case domain.MediaTypePhoto:
		photo := &domain.Photo{
			Photographer: domain.Photographer{
				ID:   d.PhotographerID,
				Name: d.Photographer,
				URL:  d.PhotographerURL,
			},
			AvgColor: d.AvgColor,
			Alt:      d.Alt,
		}
		if d.Src != nil {
			photo.Source = *d.Src
		}
		item.Photo = photo
	case domain.MediaTypeVideo:
		video := &domain.Video{
			Duration:     d.Duration,
			ThumbnailURL: d.Image,
			Pictures:     d.VideoPictures,
			Tags:         d.Tags,
		}
		if d.User != nil {
			video.User = *d.User
		}
		video.Files = make([]domain.VideoFile, 0, len(d.VideoFiles))
		for _, f := range d.VideoFiles {
			file := domain.VideoFile{
				ID:       f.ID,
				FileType: f.FileType,
				Width:    f.Width,
				Height:   f.Height,
				FPS:      f.FPS,
				Link:     f.Link,
				Size:     f.Size,
			}
			if f.Quality != nil {
				file.Quality = *f.Quality
			}
			video.Files = append(video.Files, file)
		}
		item.Video = video
	}
	return item
}
