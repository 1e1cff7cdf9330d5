// Package multipart uploads a byte stream in fixed-size parts with bounded
// concurrency and computes S3-style multipart ETags.
//
// A Store holds the uploaded data. DirStore keeps objects and in-progress
// uploads on the local filesystem, which is what partcopy uses as its
// destination and what the tests use instead of a remote service.
package multipart
