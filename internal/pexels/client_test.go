package pexels

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/mediafeed/internal/domain"
	apperrors "github.com/utafrali/mediafeed/pkg/errors"
	"github.com/utafrali/mediafeed/pkg/httpclient"
	"github.com/utafrali/mediafeed/pkg/logger"
)

const collectionPage = `{
  "page": 1,
  "per_page": 2,
  "total_results": 40,
  "next_page": "https://api.pexels.com/v1/collections/d3factz?page=2&per_page=2",
  "media": [
    {
      "type": "Photo",
      "id": 1001,
      "width": 4000,
      "height": 6000,
      "url": "https://www.pexels.com/photo/1001/",
      "photographer": "Jane Doe",
      "photographer_url": "https://www.pexels.com/@jane",
      "photographer_id": 7,
      "avg_color": "#7E7E7E",
      "alt": "a lake",
      "src": {
        "original": "https://images.pexels.com/1001.jpeg",
        "medium": "https://images.pexels.com/1001.jpeg?h=350"
      }
    },
    {
      "type": "Video",
      "id": 2002,
      "width": 1080,
      "height": 1920,
      "url": "https://www.pexels.com/video/2002/",
      "duration": 12,
      "image": "https://images.pexels.com/videos/2002/thumb.jpeg",
      "user": {"id": 9, "name": "John Roe", "url": "https://www.pexels.com/@john"},
      "video_files": [
        {"id": 1, "quality": null, "file_type": "video/mp4", "width": 1080, "height": 1920, "fps": 25, "link": "https://player.vimeo.com/hls", "size": 0},
        {"id": 2, "quality": "sd", "file_type": "video/mp4", "width": 540, "height": 960, "fps": 25, "link": "https://player.vimeo.com/sd.mp4", "size": 1234}
      ],
      "video_pictures": [{"id": 5, "nr": 0, "picture": "https://images.pexels.com/videos/2002/pic0.jpg"}]
    }
  ]
}`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	doer := httpclient.New(httpclient.Config{
		Timeout:         5 * time.Second,
		MaxRetries:      2,
		RetryWaitMin:    time.Millisecond,
		RetryWaitMax:    2 * time.Millisecond,
		MaxConnsPerHost: 10,
	})
	c, err := New(doer, Config{
		BaseURL:      server.URL + "/v1",
		APIKey:       "test-key",
		CollectionID: "d3factz",
		Sort:         "asc",
	}, logger.Discard())
	require.NoError(t, err)
	return c
}

func TestNew_RequiresCollection(t *testing.T) {
	_, err := New(httpclient.New(httpclient.DefaultConfig()), Config{}, logger.Discard())
	assert.Error(t, err)
}

func TestPageURL(t *testing.T) {
	c, err := New(nil, Config{CollectionID: "d3factz", Sort: "asc"}, logger.Discard())
	require.NoError(t, err)

	assert.Equal(t,
		"https://api.pexels.com/v1/collections/d3factz?page=3&per_page=50&sort=asc",
		c.pageURL(3, 50))
}

func TestFetchPage_DecodesPhotosAndVideos(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/collections/d3factz", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		assert.Equal(t, "asc", r.URL.Query().Get("sort"))
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(collectionPage))
	}))

	items, err := c.FetchPage(context.Background(), 1, 2)

	require.NoError(t, err)
	require.Len(t, items, 2)

	photo := items[0]
	assert.Equal(t, int64(1001), photo.ID)
	assert.True(t, photo.IsPhoto())
	require.NotNil(t, photo.Photo)
	assert.Equal(t, "Jane Doe", photo.Photo.Photographer.Name)
	assert.Equal(t, int64(7), photo.Photo.Photographer.ID)
	assert.Equal(t, "a lake", photo.Photo.Alt)
	url, pool, ok := photo.RenderURL()
	assert.True(t, ok)
	assert.Equal(t, domain.PoolImage, pool)
	assert.Equal(t, "https://images.pexels.com/1001.jpeg?h=350", url)

	video := items[1]
	assert.True(t, video.IsVideo())
	require.NotNil(t, video.Video)
	assert.Equal(t, 12, video.Video.Duration)
	assert.Equal(t, "https://images.pexels.com/videos/2002/thumb.jpeg", video.Video.ThumbnailURL)
	assert.Equal(t, "John Roe", video.Video.User.Name)
	require.Len(t, video.Video.Files, 2)
	assert.Equal(t, "", video.Video.Files[0].Quality, "null quality decodes to empty")
	url, pool, ok = video.RenderURL()
	assert.True(t, ok)
	assert.Equal(t, domain.PoolVideo, pool)
	assert.Equal(t, "https://player.vimeo.com/sd.mp4", url)
}

func TestFetchPage_EmptyPage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"page": 9, "per_page": 50, "total_results": 40, "media": []}`))
	}))

	items, err := c.FetchPage(context.Background(), 9, 50)

	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFetchPage_InvalidArguments(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))

	_, err := c.FetchPage(context.Background(), 0, 10)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = c.FetchPage(context.Background(), 1, MaxPerPage+1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestFetchPage_NonSuccessStatusIsNetworkFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
	}))

	_, err := c.FetchPage(context.Background(), 1, 50)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNetworkFailure)
	assert.Equal(t, "pexels returned status 401: Unauthorized", apperrors.Message(err))
}

func TestFetchPage_RetriesServerErrors(t *testing.T) {
	var attempts int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(collectionPage))
	}))

	items, err := c.FetchPage(context.Background(), 1, 2)

	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestFetchPage_MalformedJSONIsDecodeFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"media": [`))
	}))

	_, err := c.FetchPage(context.Background(), 1, 50)

	assert.ErrorIs(t, err, apperrors.ErrDecodeFailure)
}

func TestFetchPage_UnknownMediaTypeIsDecodeFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"media": [{"type": "Gif", "id": 1, "width": 1, "height": 1}]}`))
	}))

	_, err := c.FetchPage(context.Background(), 1, 50)

	require.ErrorIs(t, err, apperrors.ErrDecodeFailure)
	assert.Contains(t, err.Error(), "Type")
}

func TestFetchPage_MissingIDIsDecodeFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"media": [{"type": "Photo", "width": 1, "height": 1}]}`))
	}))

	_, err := c.FetchPage(context.Background(), 1, 50)

	assert.ErrorIs(t, err, apperrors.ErrDecodeFailure)
}

func TestFetchPage_ContextCancelled(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchPage(ctx, 1, 50)

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, apperrors.ErrNetworkFailure)
}

func TestDownload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"), "api key is not sent to media hosts")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))

	payload, err := c.Download(context.Background(), c.base.Scheme+"://"+c.base.Host+"/img/1.jpeg")

	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), payload)
}

func TestDownload_NotFound(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())

	_, err := c.Download(context.Background(), c.base.Scheme+"://"+c.base.Host+"/missing.jpeg")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDownload_InvalidURL(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())

	for _, u := range []string{"", "ftp://x/y", "/relative", "::"} {
		_, err := c.Download(context.Background(), u)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, u)
	}
}

func TestDownload_TooLarge(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	c.cfg.MaxDownloadBytes = 16

	_, err := c.Download(context.Background(), c.base.Scheme+"://"+c.base.Host+"/big.mp4")

	require.ErrorIs(t, err, apperrors.ErrNetworkFailure)
	assert.Contains(t, apperrors.Message(err), "byte limit")
}

func TestFetchPage_ZeroDimensionsIsDecodeFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"media": [{"type": "Video", "id": 3, "width": 0, "height": 720}]}`))
	}))

	_, err := c.FetchPage(context.Background(), 1, 50)

	require.ErrorIs(t, err, apperrors.ErrDecodeFailure)
	assert.Contains(t, err.Error(), "Width")
}
