// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client so enrolment feeds can be read from an S3 compatible
// bucket (feed locations of the form s3://bucket/key) and so run logs can be archived
// next to them. Both AWS S3 and self-hosted MinIO instances are supported.
//
// # Client Interface
//
// The Client interface abstracts the underlying storage provider, making it easier
// to mock storage interactions for unit testing (see core/storage/mocks).
//
// # Operations
//
//   - BucketExists: Verifies access to a bucket.
//   - StatObject: Reads object size and modification time for change detection.
//   - GetObject: Retrieves content as a stream.
//   - PutObject: Uploads content (with size and options).
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	bucket, key, ok := storage.ParseURI("s3://sis-exports/enrol.xml")
package storage
