package inventory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageStoreDownload(t *testing.T) {
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/typed":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpeg"))
		case "/plain.png":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte("png"))
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		case "/big.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer src.Close()

	store := NewImageStore(t.TempDir(), 32)

	tests := []struct {
		name    string
		path    string
		ext     string
		wantErr error
		anyErr  bool
	}{
		{name: "extension from content type", path: "/typed", ext: ".jpg"},
		{name: "extension from url", path: "/plain.png", ext: ".png"},
		{name: "not an image", path: "/page", wantErr: ErrImageType},
		{name: "too large", path: "/big.png", wantErr: ErrImageTooLarge},
		{name: "http error", path: "/missing", anyErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, err := store.Download(context.Background(), src.URL+tt.path)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.True(t, strings.HasSuffix(name, tt.ext))
				_, err := os.Stat(store.Path(name))
				assert.NoError(t, err)
			}
		})
	}
}

func TestImageStorePathStaysInDir(t *testing.T) {
	dir := t.TempDir()
	store := NewImageStore(dir, 0)
	assert.Equal(t, dir+string(os.PathSeparator)+"passwd", store.Path("../../etc/passwd"))
	assert.NoError(t, store.Remove("missing.png"))
	assert.NoError(t, store.Remove(""))
}
