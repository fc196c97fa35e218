package source

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	cerrors "github.com/fieldconv/fieldconv/internal/errors"
)

// fetcher downloads one remote URI into a local file.
type fetcher interface {
	fetch(ctx context.Context, uri, localPath string) error
}

// httpFetcher downloads over HTTP(S).
type httpFetcher struct {
	client *http.Client
}

func (f *httpFetcher) fetch(ctx context.Context, uri, localPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return writeStream(localPath, resp.Body)
}

// s3Object is the subset of the S3 client the fetcher needs.
type s3Object interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// s3Fetcher downloads s3:// URIs.
type s3Fetcher struct {
	client s3Object
}

func newS3Fetcher(ctx context.Context) (*s3Fetcher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &s3Fetcher{client: s3.NewFromConfig(cfg)}, nil
}

func (f *s3Fetcher) fetch(ctx context.Context, uri, localPath string) error {
	parsed, err := url.Parse(uri)
	if err != nil {
		return err
	}
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(parsed.Host),
		Key:    aws.String(strings.TrimPrefix(parsed.Path, "/")),
	})
	if err != nil {
		return err
	}
	defer out.Body.Close()
	return writeStream(localPath, out.Body)
}

// writeStream copies a response body into a local file.
func writeStream(localPath string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return err
	}
	f, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return err
	}
	return nil
}

// acquire resolves a source location to a readable local path: local paths
// pass through, remote URIs go through the cache and, on a miss, a bounded
// retry-with-backoff download.
func (l *Loader) acquire(ctx context.Context, uri string) (string, error) {
	scheme := uriScheme(uri)
	if scheme == "" || scheme == "file" {
		local := strings.TrimPrefix(uri, "file://")
		if _, err := os.Stat(local); err != nil {
			return "", cerrors.NewSourceError("source file "+local+" is not readable", err)
		}
		return local, nil
	}

	if local, ok := l.cache.Resolve(uri); ok {
		log.Printf("source: cache hit for %s", uri)
		return local, nil
	}

	f, err := l.fetcherFor(ctx, scheme)
	if err != nil {
		return "", cerrors.NewSourceError("no fetcher for scheme "+scheme, err)
	}

	local := filepath.Join(l.scratchDir, "download-"+cacheKey(uri)+path.Ext(uri))
	if err := l.retryWithBackoff(ctx, func() error {
		return f.fetch(ctx, uri, local)
	}); err != nil {
		os.Remove(local)
		return "", cerrors.NewSourceError("failed to download "+uri, err)
	}

	if err := l.cache.Store(uri, local); err != nil {
		// Cache population is a side effect, not a correctness concern.
		log.Printf("source: failed to cache %s: %v", uri, err)
	}
	return local, nil
}

func (l *Loader) fetcherFor(ctx context.Context, scheme string) (fetcher, error) {
	switch scheme {
	case "http", "https":
		return &httpFetcher{client: l.httpClient}, nil
	case "s3":
		if l.s3 != nil {
			return &s3Fetcher{client: l.s3}, nil
		}
		return newS3Fetcher(ctx)
	default:
		return nil, fmt.Errorf("unsupported protocol %q", scheme)
	}
}

// retryWithBackoff executes the operation with exponential backoff retry.
func (l *Loader) retryWithBackoff(ctx context.Context, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		if attempt < l.maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
			log.Printf("source: download attempt %d failed (%v), retrying in %s", attempt+1, lastErr, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}

func uriScheme(uri string) string {
	i := strings.Index(uri, "://")
	if i < 0 {
		return ""
	}
	return strings.ToLower(uri[:i])
}
