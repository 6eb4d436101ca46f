package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = zerolog.New(nil).Level(zerolog.Disabled)

func TestNewClient_Disabled(t *testing.T) {
	c, err := NewClient(context.Background(), Config{}, quiet)
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	_, err = c.Upload(context.Background(), "a.csv", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = c.List(context.Background())
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestClient_Key(t *testing.T) {
	c := &Client{cfg: Config{Prefix: "/runs/"}}
	assert.Equal(t, "runs/a.csv", c.Key("a.csv"))
	c.cfg.Prefix = ""
	assert.Equal(t, "a.csv", c.Key("a.csv"))
}

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]string
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		raw, _ := io.ReadAll(r.Body)
		b.objects[r.URL.Path] = string(raw)
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
<Name>results</Name><Prefix>runs/</Prefix><KeyCount>1</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>
<Contents><Key>runs/a.csv</Key><Size>3</Size></Contents>
</ListBucketResult>`)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeClient(t *testing.T) (*Client, *fakeBucket) {
	t.Helper()
	bucket := &fakeBucket{objects: make(map[string]string)}
	srv := httptest.NewServer(bucket)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), Config{
		Bucket:          "results",
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Prefix:          "runs",
	}, quiet)
	require.NoError(t, err)
	require.True(t, c.Enabled())
	return c, bucket
}

func TestClient_Upload(t *testing.T) {
	c, bucket := newFakeClient(t)

	loc, err := c.Upload(context.Background(), "a.csv", strings.NewReader("a,b\n"))
	require.NoError(t, err)
	assert.Contains(t, loc, "/results/runs/a.csv")
	assert.Contains(t, bucket.objects["/results/runs/a.csv"], "a,b")
}

func TestClient_List(t *testing.T) {
	c, _ := newFakeClient(t)

	keys, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"runs/a.csv"}, keys)
}
