// Package schedulesource reads the doctor schedule document from local disk or S3.
package schedulesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/clinic-scheduler/internal/scheduling"
)

// S3API is the subset of the S3 client used to fetch schedules.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ErrNoS3Client is returned for s3:// locations when no client was configured.
var ErrNoS3Client = errors.New("schedulesource: s3 location requires an S3 client")

// Open returns a reader for location, which is either a file path or s3://bucket/key.
func Open(ctx context.Context, location string, client S3API) (io.ReadCloser, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errors.New("schedulesource: location is empty")
	}
	if bucket, key, ok := ParseS3URI(location); ok {
		if client == nil {
			return nil, ErrNoS3Client
		}
		out, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("schedulesource: get s3://%s/%s: %w", bucket, key, err)
		}
		return out.Body, nil
	}
	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("schedulesource: open %s: %w", location, err)
	}
	return f, nil
}

// Load opens location and parses it into a ScheduleStore.
func Load(ctx context.Context, location string, client S3API) (*scheduling.ScheduleStore, error) {
	rc, err := Open(ctx, location, client)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	store, err := scheduling.LoadSchedule(rc)
	if err != nil {
		return nil, fmt.Errorf("schedulesource: %s: %w", location, err)
	}
	return store, nil
}

// ParseS3URI splits s3://bucket/key. Both parts must be non-empty.
func ParseS3URI(uri string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(uri, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
