package transfer

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/cloudnepal/mountpoint-s3/s3types"
)

// headerMiddleware returns a build middleware that sets the given HTTP
// headers on the outgoing request. Header material is validated at template
// construction; by the time a request is built the pairs are known good.
func headerMiddleware(headers map[string]string) middleware.BuildMiddleware {
	return middleware.BuildMiddlewareFunc("UploadCustomHeaders",
		func(ctx context.Context, in middleware.BuildInput, next middleware.BuildHandler) (
			middleware.BuildOutput, middleware.Metadata, error,
		) {
			if req, ok := in.Request.(*smithyhttp.Request); ok {
				for name, value := range headers {
					req.Header.Set(name, value)
				}
			}
			return next.HandleBuild(ctx, in)
		})
}

// requestOptions translates a template's custom headers into per-request S3
// client options. Every sub-request of an upload carries the same headers, so
// the same options are reused across create, part, complete, and abort calls.
func requestOptions(tmpl *s3types.RequestTemplate) []func(*s3.Options) {
	if len(tmpl.Headers) == 0 {
		return nil
	}
	mw := headerMiddleware(tmpl.Headers)
	return []func(*s3.Options){
		func(o *s3.Options) {
			o.APIOptions = append(o.APIOptions, func(stack *middleware.Stack) error {
				return stack.Build.Add(mw, middleware.After)
			})
		},
	}
}
