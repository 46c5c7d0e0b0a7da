// Package simplefiles provides a small file management library: upload a file
// together with free-form key/value metadata in one multipart/form-data
// request, list and fetch file records, and derive coarse metadata from
// stored objects.
//
// A Service orchestrates a Repository (file records), a BlobStore (object
// bytes) and an EventSink (classification trigger). Implementations live in
// subpackages: repo/{memory,postgres,redis}, storage/{memory,fs,s3} and
// events/{inproc,nats}.
//
// Upload flow
//
// ParseUpload decodes the request body with the multipart package and
// normalizes the parts with the metadata package. UploadFile stores the bytes
// under uploads/{id}/{filename}, writes a record with status "uploaded" and
// notifies the EventSink. ProcessStoredObject is the handler for that
// notification: it classifies the object and marks the record "processed"
// with flattened extracted_* attributes.
package simplefiles
