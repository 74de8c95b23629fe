// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore,
// used to stream cohort VCFs and codebooks straight from a bucket.
//
// # Usage
//
//	store, err := s3.New(ctx, "genomics-cohort",
//	    s3.WithPrefix("vcf/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//	rc, err := blobstore.OpenReader(ctx, store, "sample-001.vcf.gz")
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads through the s3 manager for large blobs
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
