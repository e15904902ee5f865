package mirror

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valentinpelus/langfeed/pkg/types"
)

type fakeUploader struct {
	bucket, key, body string
	err               error
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.bucket, f.key, f.body = *in.Bucket, *in.Key, string(data)
	return &manager.UploadOutput{Location: "https://example/" + *in.Key}, nil
}

func TestS3MirrorUploadsDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.csv")
	require.NoError(t, os.WriteFile(path, []byte("text,label\nhello there,English\n"), 0o644))

	up := &fakeUploader{}
	m := newS3Mirror(up, "datasets", "langfeed/v2", nil)
	require.NoError(t, m.Mirror(context.Background(), types.FeedbackRecord{}, path))

	assert.Equal(t, "datasets", up.bucket)
	assert.Equal(t, "langfeed/v2/feedback.csv", up.key)
	assert.Equal(t, "text,label\nhello there,English\n", up.body)
}

func TestS3MirrorErrors(t *testing.T) {
	m := newS3Mirror(&fakeUploader{}, "datasets", "", nil)
	assert.Error(t, m.Mirror(context.Background(), types.FeedbackRecord{}, filepath.Join(t.TempDir(), "absent.csv")))

	path := filepath.Join(t.TempDir(), "feedback.csv")
	require.NoError(t, os.WriteFile(path, []byte("text,label\n"), 0o644))
	m = newS3Mirror(&fakeUploader{err: assert.AnError}, "datasets", "", nil)
	assert.ErrorIs(t, m.Mirror(context.Background(), types.FeedbackRecord{}, path), assert.AnError)
}

func TestRowArgs(t *testing.T) {
	id := uuid.MustParse("6f1c1f5e-2a43-4c3c-9a55-1d2b8d3b9e10")
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	roman := types.LabelRomanNep
	rec := types.FeedbackRecord{Text: "ma ghar janchu", Predicted: types.LabelNone, Corrected: &roman, CreatedAt: created}

	args := rowArgs(id, rec, "/data/feedback.csv", types.NewLabelSet("Roman Nepali"))
	assert.Equal(t, []any{
		id.String(), "ma ghar janchu", "Roman Nepali", "None", "incorrect",
		sql.NullString{String: "Roman Nepali", Valid: true}, "/data/feedback.csv", created,
	}, args)

	accepted := types.FeedbackRecord{Text: "hello there", Predicted: types.LabelEnglish, Accepted: true, CreatedAt: created}
	args = rowArgs(id, accepted, "/data/feedback.csv", types.DefaultLabelSet())
	assert.Equal(t, "correct", args[4])
	assert.Equal(t, sql.NullString{}, args[5])
}

func TestPostgresMirror(t *testing.T) {
	url := os.Getenv("MIRROR_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("MIRROR_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	m, err := NewPostgresMirror(ctx, url, types.DefaultLabelSet(), nil)
	require.NoError(t, err)
	defer m.Close()

	before, err := m.Count(ctx)
	require.NoError(t, err)
	rec := types.FeedbackRecord{Text: "hello there", Predicted: types.LabelEnglish, Accepted: true, CreatedAt: time.Now().UTC()}
	require.NoError(t, m.Mirror(ctx, rec, "feedback.csv"))
	after, err := m.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}

func TestNewPostgresMirrorRequiresURL(t *testing.T) {
	_, err := NewPostgresMirror(context.Background(), "", types.DefaultLabelSet(), nil)
	assert.Error(t, err)
}
