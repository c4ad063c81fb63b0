package export

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	p, err := s.Put(ctx, "MC_20250301_120000/report.json", "application/json", strings.NewReader(`{"ok":true}`))
	require.NoError(t, err)
	assert.Equal(t, "MC_20250301_120000/report.json", p)

	rc, err := s.Get(ctx, p)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(b))

	_, err = s.Get(ctx, "missing.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorage_KeysStayInsideRoot(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	p, err := s.Put(ctx, "../../escape.json", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	assert.Equal(t, "escape.json", p)

	_, err = s.Put(ctx, "/", "application/json", strings.NewReader("{}"))
	assert.Error(t, err)
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = b
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func TestS3Storage(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	s := NewS3StorageWithClient(fake, "reports", "legalsim")

	p, err := s.Put(ctx, "MC_1/report.json", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	assert.Equal(t, "legalsim/MC_1/report.json", p)
	assert.Equal(t, "application/json", fake.types[p])

	rc, err := s.Get(ctx, p)
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "{}", string(b))

	_, err = s.Get(ctx, "legalsim/none.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, Config{Type: StorageTypeNone})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = New(ctx, Config{Type: StorageTypeLocal, LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = New(ctx, Config{Type: StorageTypeS3})
	assert.Error(t, err)

	_, err = New(ctx, Config{Type: "ftp"})
	assert.Error(t, err)
}
