package casefile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"k8s.io/klog/v2"
)

const gcsScheme = "gs://"

// Load reads and parses a case file from a local path or a gs://bucket/object URL.
func Load(ctx context.Context, source string) (*Case, error) {
	log := klog.FromContext(ctx)

	var (
		data []byte
		err  error
	)
	startedAt := time.Now()
	if strings.HasPrefix(source, gcsScheme) {
		data, err = readGCS(ctx, source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read case file %q: %w", source, err)
	}
	log.V(2).Info("read case file", "source", source, "bytes", len(data), "duration", time.Since(startedAt))

	return Parse(data)
}

// parseGCSURL splits gs://bucket/object into its parts.
func parseGCSURL(u string) (bucket, object string, err error) {
	bucket, object, ok := strings.Cut(strings.TrimPrefix(u, gcsScheme), "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("invalid GCS URL %q: want gs://bucket/object", u)
	}
	return bucket, object, nil
}

func readGCS(ctx context.Context, u string) ([]byte, error) {
	log := klog.FromContext(ctx)

	bucket, object, err := parseGCSURL(u)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS storage client: %w", err)
	}
	defer client.Close()

	log.Info("downloading case file from GCS", "source", u)

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("object %q not found: %w", u, err)
		}
		return nil, fmt.Errorf("opening %q: %w", u, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", u, err)
	}
	return data, nil
}
