// Package blobstore abstracts where VCF inputs, codebook files and
// serialized vectors live.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, atomic rename on write
//   - MemoryStore: in-memory, for tests
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// Streaming consumers use OpenReader:
//
//	rc, err := blobstore.OpenReader(ctx, store, "cohort/sample.vcf.gz")
//	if err != nil {
//	    return err
//	}
//	defer rc.Close()
package blobstore
