// Package minio provides a BlobStore backed by MinIO or any other
// S3-compatible object store (Ceph, Garage, SeaweedFS). It is the
// air-gapped option for hospital deployments that cannot reach AWS.
//
//	store, err := minio.Dial("minio.lab.internal:9000", "genomics", "cohort-a/",
//	    minio.WithStaticCredentials(accessKey, secretKey),
//	    minio.WithTLS(true),
//	)
//	res, err := streamer.EncodeBlob(ctx, store, "sample-001.vcf.gz")
package minio
