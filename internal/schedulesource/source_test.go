package schedulesource

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-scheduler/internal/scheduling"
)

const doc = `{"doctors":[{"name":"Dr. Mehta","available_slots":[{"date":"2030-01-02","time_slots":[{"start":"09:00","end":"09:30","available":true}]}]}]}`

type mockS3 struct {
	objects map[string][]byte
	bucket  string
	key     string
}

func (m *mockS3) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.bucket, m.key = *input.Bucket, *input.Key
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	store, err := Load(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dr. Mehta"}, store.Doctors())
}

func TestLoadFromS3(t *testing.T) {
	client := &mockS3{objects: map[string][]byte{"schedules/current.json": []byte(doc)}}
	store, err := Load(context.Background(), "s3://clinic-data/schedules/current.json", client)
	require.NoError(t, err)
	assert.Equal(t, "clinic-data", client.bucket)
	assert.Equal(t, "schedules/current.json", client.key)
	assert.Len(t, store.SlotsFor("", "2030-01-02"), 1)
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()

	_, err := Load(ctx, "s3://bucket/key.json", nil)
	assert.ErrorIs(t, err, ErrNoS3Client)

	_, err = Load(ctx, filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(ctx, "s3://bucket/missing.json", &mockS3{objects: map[string][]byte{}})
	assert.Error(t, err)

	bad := &mockS3{objects: map[string][]byte{"bad.json": []byte(`{"doctors":[{"name":""}]}`)}}
	_, err = Load(ctx, "s3://bucket/bad.json", bad)
	assert.ErrorIs(t, err, scheduling.ErrInvalidSchedule)

	_, err = Load(ctx, "  ", nil)
	assert.Error(t, err)
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		in     string
		bucket string
		key    string
		ok     bool
	}{
		{"s3://b/k.json", "b", "k.json", true},
		{"s3://b/nested/k.json", "b", "nested/k.json", true},
		{"s3://b", "", "", false},
		{"s3:///k", "", "", false},
		{"./data/doctor_schedule.json", "", "", false},
	}
	for _, tt := range tests {
		bucket, key, ok := ParseS3URI(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.bucket, bucket, tt.in)
		assert.Equal(t, tt.key, key, tt.in)
	}
}
