// Package testutil provides test helper functions.
package testutil

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// GenerateRandomData generates random bytes of the specified size.
// This is useful for creating test data for uploads.
func GenerateRandomData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(rand.Intn(256))
	}
	return data
}

// GeneratePatternData generates deterministic bytes of the specified size.
// Each byte is its offset modulo 251, so tests can verify part ordering by
// checking the reassembled body against the same pattern.
func GeneratePatternData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// GenerateTestKey generates a test S3 object key with optional prefix.
// This helps ensure test isolation by using unique keys.
func GenerateTestKey(prefix string) string {
	timestamp := time.Now().UnixNano()
	random := rand.Int63n(100000)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return fmt.Sprintf("%stest-object-%d-%d", prefix, timestamp, random)
}

// GenerateTestBucketName generates a valid test bucket name.
// Bucket names must be DNS-compliant and globally unique.
func GenerateTestBucketName(prefix string) string {
	timestamp := time.Now().Unix()
	random := rand.Int31n(10000)
	name := fmt.Sprintf("%s-%d-%d", prefix, timestamp, random)
	// Ensure DNS compliance
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "_", "-")
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}

// CalculateETag calculates the simple-upload ETag for the given data.
func CalculateETag(data []byte) string {
	h := md5.Sum(data)
	return fmt.Sprintf(`"%x"`, h)
}

// ReadObject downloads an object's full body. This is useful for verifying
// uploads against a real endpoint.
func ReadObject(ctx context.Context, client *s3.Client, bucket, key string) ([]byte, error) {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, out.Body); err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return buf.Bytes(), nil
}

// CleanupTestBucket creates a function to clean up a test bucket.
// This should be used with t.Cleanup() to ensure buckets are deleted after tests.
func CleanupTestBucket(client *s3.Client, bucket string) func() {
	return func() {
		// First, delete all objects in the bucket
		listInput := &s3.ListObjectsV2Input{
			Bucket: aws.String(bucket),
		}
		for {
			listOutput, err := client.ListObjectsV2(context.Background(), listInput)
			if err != nil {
				break
			}
			if len(listOutput.Contents) == 0 {
				break
			}
			var objects []types.ObjectIdentifier
			for _, obj := range listOutput.Contents {
				objects = append(objects, types.ObjectIdentifier{
					Key: obj.Key,
				})
			}
			deleteInput := &s3.DeleteObjectsInput{
				Bucket: aws.String(bucket),
				Delete: &types.Delete{
					Objects: objects,
				},
			}
			_, _ = client.DeleteObjects(context.Background(), deleteInput)
			if !aws.ToBool(listOutput.IsTruncated) {
				break
			}
			listInput.ContinuationToken = listOutput.NextContinuationToken
		}
		// Then delete the bucket
		deleteInput := &s3.DeleteBucketInput{
			Bucket: aws.String(bucket),
		}
		_, _ = client.DeleteBucket(context.Background(), deleteInput)
	}
}
