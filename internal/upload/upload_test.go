package upload

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPUploader_Upload(t *testing.T) {
	t.Run("returns secure url", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "ml_default", r.FormValue("upload_preset"))

			f, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			defer f.Close()
			body, _ := io.ReadAll(f)
			assert.Equal(t, "receipt.png", hdr.Filename)
			assert.Equal(t, "png-bytes", string(body))

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"secure_url":"https://cdn.example.com/receipt.png"}`))
		}))
		defer srv.Close()

		u := NewHTTPUploader(srv.URL, "ml_default")
		url, err := u.Upload(context.Background(), "receipt.png", strings.NewReader("png-bytes"))
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/receipt.png", url)
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		u := NewHTTPUploader(srv.URL, "")
		_, err := u.Upload(context.Background(), "receipt.png", strings.NewReader("x"))
		assert.Error(t, err)
	})

	t.Run("missing url is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		u := NewHTTPUploader(srv.URL, "")
		_, err := u.Upload(context.Background(), "receipt.png", strings.NewReader("x"))
		assert.Error(t, err)
	})
}
