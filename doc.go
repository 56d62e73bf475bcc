// Package s3client implements streaming, incremental object uploads to
// Amazon S3.
//
// The central type is the UploadSession returned by Client.PutObject: an
// append-only handle that accepts sequential Write calls of arbitrary size,
// buffers them into parts, and streams the parts through a concurrent
// multipart-upload engine while the caller keeps writing. A session is
// finalized with Complete, or with ReviewAndComplete to inspect the
// transmitted parts and veto finalization at the last moment.
//
//	client, err := s3client.New(s3client.WithRegion("us-west-2"))
//	if err != nil {
//	    return err
//	}
//	session, err := client.PutObject(ctx, "my-bucket", "logs/today.ndjson")
//	if err != nil {
//	    return err
//	}
//	for chunk := range chunks {
//	    if err := session.Write(ctx, chunk); err != nil {
//	        return err
//	    }
//	}
//	result, err := session.Complete(ctx)
//
// Small payloads that are fully in memory can skip the session machinery with
// Client.PutObjectSingle, and Client.PutObjectFromFile streams a local file
// through a session with automatic content-type detection.
package s3client
