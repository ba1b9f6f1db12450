package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	body        []byte
	contentType string
	modified    time.Time
}

type fakeS3 struct {
	s3iface.S3API

	mu      sync.Mutex
	objects map[string]fakeObject
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string]fakeObject{}} }

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil)
	}
	return &s3.GetObjectOutput{
		Body:         io.NopCloser(bytes.NewReader(obj.body)),
		ContentType:  aws.String(obj.contentType),
		LastModified: aws.Time(obj.modified),
	}, nil
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key)] = fakeObject{
		body:        body,
		contentType: aws.StringValue(in.ContentType),
		modified:    time.Now(),
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucketWithContext(_ aws.Context, in *s3.HeadBucketInput, _ ...request.Option) (*s3.HeadBucketOutput, error) {
	if aws.StringValue(in.Bucket) != "reports" {
		return nil, awserr.New("NotFound", "bucket not found", nil)
	}
	return &s3.HeadBucketOutput{}, nil
}

func TestS3_RoundTripWithPrefix(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	st := NewS3(api, "reports", "/tariffs/")

	require.NoError(t, st.Ping(ctx))
	require.NoError(t, PutJSON(ctx, st, "steel/tariff-updates.json", map[string]int{"n": 1}))

	_, stored := api.objects["reports/tariffs/steel/tariff-updates.json"]
	assert.True(t, stored)

	doc, err := st.GetDocument(ctx, "steel/tariff-updates.json")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, ContentTypeJSON, doc.ContentType)
	assert.JSONEq(t, `{"n":1}`, string(doc.Body))
	assert.False(t, doc.UpdatedAt.IsZero())
}

func TestS3_MissingKeyIsNil(t *testing.T) {
	st := NewS3(newFakeS3(), "reports", "")
	doc, err := st.GetDocument(context.Background(), "nope.json")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestS3_PingUnknownBucket(t *testing.T) {
	st := NewS3(newFakeS3(), "other", "")
	assert.Error(t, st.Ping(context.Background()))
}

func TestOpenS3_RequiresBucket(t *testing.T) {
	_, err := OpenS3(S3Config{})
	assert.Error(t, err)
}
