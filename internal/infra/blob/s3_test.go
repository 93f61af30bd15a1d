package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mindnote/counsel/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptKey(t *testing.T) {
	u := &S3Deps{Prefix: "transcripts"}
	at := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "transcripts/2026/03/09/abc.json", u.TranscriptKey("abc", at))
}

func TestArchiveTranscript(t *testing.T) {
	var (
		mu      sync.Mutex
		gotPath string
		gotBody string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotPath, gotBody = r.URL.Path, string(b)
		mu.Unlock()
		w.Header().Set("ETag", `"etag-1"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := &config.Config{S3: config.S3Cfg{
		Endpoint:         srv.URL,
		Region:           "auto",
		AccessKey:        "ak",
		SecretKey:        "sk",
		Bucket:           "mindnote",
		UsePathStyle:     true,
		TranscriptPrefix: "transcripts",
	}}
	u, err := NewS3(context.Background(), cfg)
	require.NoError(t, err)

	key, err := u.ArchiveTranscript(context.Background(), "sess-1", map[string]any{"messages": []string{"hi"}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "transcripts/"))
	assert.True(t, strings.HasSuffix(key, "/sess-1.json"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/mindnote/"+key, gotPath)
	assert.Contains(t, gotBody, `"messages"`)
}
