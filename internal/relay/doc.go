// Package relay forwards a door photo and its protection mask to an
// image-editing provider.
//
// A Relay validates the upload, re-normalizes image and mask to the square
// canvas (tolerating input the compositor already normalized), makes exactly
// one provider call and wraps the answer as a Result holding a URL, inline
// bytes, or both. It never retries and keeps no state between calls.
//
// Providers sit behind the narrow Editor interface. OpenAIEditor uses the
// Images Edit endpoint through go-openai; GeminiEditor uses a Gemini image
// model through the genai SDK.
//
// # Errors
//
// Every failure is an *Error whose Kind tells the caller what went wrong:
//
//   - KindValidation: a required field is missing or malformed
//   - KindDecode: an upload is not an image
//   - KindUpstream: the provider call failed; Message carries the
//     provider's own explanation when it gave one
//   - KindNoImage: the provider answered without an image
//   - KindUnexpected: anything else
//
// Validation and decode errors are reported before any network call.
//
// # Mask polarity
//
// Masks are forwarded as uploaded unless Options.MaskPolarity is
// MaskInvert. Providers regenerate transparent mask pixels and keep opaque
// ones.
package relay
