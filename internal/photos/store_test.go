package photos

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

type stubDeleter struct {
	inputs []*s3.DeleteObjectInput
	err    error
}

func (d *stubDeleter) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	d.inputs = append(d.inputs, in)
	return &s3.DeleteObjectOutput{}, d.err
}

func TestObjectKey(t *testing.T) {
	cases := map[string]string{
		"s3://juno-photos/u1/meal.jpg":                                                      "u1/meal.jpg",
		"https://juno-photos.s3.eu-west-1.amazonaws.com/u1/run.jpg":                         "u1/run.jpg",
		"http://localhost:9000/juno-photos/u1/yoga.png":                                     "u1/yoga.png",
		"https://firebasestorage.googleapis.com/v0/b/juno-photos/o/users%2Fu1%2Fx.jpg?alt=media": "users/u1/x.jpg",
	}
	for raw, want := range cases {
		got, err := ObjectKey(raw, "juno-photos")
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}
}

func TestObjectKeyRejectsForeignURLs(t *testing.T) {
	for _, raw := range []string{
		"s3://other/u1/meal.jpg",
		"https://cdn.example.com/u1/meal.jpg",
		"https://firebasestorage.googleapis.com/v0/b/other/o/a.jpg",
		"ftp://juno-photos/a.jpg",
	} {
		_, err := ObjectKey(raw, "juno-photos")
		require.ErrorIs(t, err, ErrForeignURL, raw)
	}

	_, err := ObjectKey("s3://juno-photos/", "juno-photos")
	require.Error(t, err)
}

func TestS3StoreDelete(t *testing.T) {
	deleter := &stubDeleter{}
	store := &S3Store{client: deleter, bucket: "juno-photos"}

	require.NoError(t, store.Delete(context.Background(), "s3://juno-photos/u1/meal.jpg"))
	require.Len(t, deleter.inputs, 1)
	require.Equal(t, "juno-photos", aws.ToString(deleter.inputs[0].Bucket))
	require.Equal(t, "u1/meal.jpg", aws.ToString(deleter.inputs[0].Key))

	deleter.err = errors.New("access denied")
	require.ErrorContains(t, store.Delete(context.Background(), "s3://juno-photos/u1/meal.jpg"), "access denied")
	require.ErrorIs(t, store.Delete(context.Background(), "https://cdn.example.com/x.jpg"), ErrForeignURL)
}
