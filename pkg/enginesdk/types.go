// Package enginesdk is the public SDK for building multiocr recognizer plugins.
//
// A plugin is a standalone binary that implements Recognizer and hands it to
// Serve. The host launches the binary, passes the engine options through the
// environment, and talks to it over gRPC.
//
//	type shouty struct{}
//
//	func (shouty) Describe(context.Context) (*enginesdk.DescribeResponse, error) {
//		return &enginesdk.DescribeResponse{Name: "Shouty", Version: "1.0.0", FileTypes: []string{".png"}}, nil
//	}
//
//	func (shouty) Recognize(_ context.Context, req *enginesdk.RecognizeRequest) (*enginesdk.RecognizeResponse, error) {
//		return &enginesdk.RecognizeResponse{Text: strings.ToUpper(req.FileName)}, nil
//	}
//
//	func main() {
//		enginesdk.Serve(shouty{})
//	}
package enginesdk

import (
	"github.com/felixgeelhaar/multiocr/internal/engine/grpc"
	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
)

// Recognizer types
type (
	// Recognizer is implemented by plugin engines.
	Recognizer = grpc.Recognizer

	// DescribeResponse is the identity a recognizer reports at startup.
	DescribeResponse = grpc.DescribeResponse

	// RecognizeRequest carries one document to a recognizer.
	RecognizeRequest = grpc.RecognizeRequest

	// RecognizeResponse is a recognizer's output for one document.
	RecognizeResponse = grpc.RecognizeResponse
)

// Result types
type (
	// Result is the engine-independent recognition output.
	Result = sdk.Result

	// Page is the recognized content of one page.
	Page = sdk.Page

	// Options are the engine options from the engines file.
	Options = sdk.Options

	// OCRError is the structured failure recorded in result documents.
	OCRError = sdk.OCRError
)

// Confidence returns a pointer for use in RecognizeResponse and Page.
func Confidence(v float64) *float64 {
	return sdk.Confidence(v)
}

// EngineFailure reports a recognition failure to the host.
func EngineFailure(message string, err error) *OCRError {
	return sdk.EngineFailure(message, err)
}
