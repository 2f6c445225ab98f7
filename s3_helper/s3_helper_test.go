package s3_helper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
)

// fakeS3 stores objects by path on PUT and serves them on GET
func fakeS3(t *testing.T) (*Client, map[string][]byte) {
	var mu sync.Mutex
	objects := map[string][]byte{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			b, _ := io.ReadAll(r.Body)
			objects[r.URL.Path] = b
			w.Header().Set("ETag", `"etag"`)
		case http.MethodGet:
			b, ok := objects[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Length", fmt.Sprint(len(b)))
			w.Header().Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", len(b)-1, len(b)))
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write(b)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		Bucket:      "dead",
		Region:      "us-east-1",
		Endpoint:    srv.URL,
		Credentials: credentials.NewStaticCredentials("id", "secret", ""),
	})
	if err != nil {
		t.Fatal(err)
	}
	return c, objects
}

func TestWriteAndReadBytes(t *testing.T) {
	c, objects := fakeS3(t)
	ctx := context.Background()

	_, err := c.WriteBytes(ctx, "project=p/file.parquet", bytes.NewReader([]byte("hello")), aws.String("application/octet-stream"))
	if err != nil {
		t.Fatal(err)
	}
	if string(objects["/dead/project=p/file.parquet"]) != "hello" {
		t.Fatalf("object not stored at the path style key: %v", objects)
	}

	b, err := c.ReadBytes(ctx, "project=p/file.parquet")
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "hello" {
		t.Fatalf("got %q", b)
	}

	if _, err := c.ReadBytes(ctx, "missing"); err == nil {
		t.Fatal("expected an error for a missing object")
	}
}
