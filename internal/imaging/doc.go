// Package imaging implements the door compositor: it letterboxes photos onto a
// square canvas, derives the protection mask, and re-normalizes uploads before
// they are relayed to an image-editing service.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based with the origin at the
// top-left corner:
//   - X increases rightward, Y increases downward
//   - Rectangles are half-open: Min is inclusive, Max is exclusive
//
// # Canvas and Mask
//
// Every image produced here is a square canvas of CanvasSize pixels (1024 by
// default). Sources of any aspect ratio are scaled uniformly so they fit
// entirely inside the canvas, then centered on a neutral fill color.
//
// The mask has the same dimensions as the canvas and carries exactly two alpha
// values:
//   - 255 (opaque white) everywhere outside the protected rectangle
//   - 0 (fully transparent) inside the protected rectangle
//
// The protected rectangle is always centered. Only its width and height, given
// as fractions of the canvas edge, are configurable.
//
// # Supported Formats
//
// Decoding accepts PNG, JPEG, GIF, WebP, BMP and TIFF. JPEG orientation tags
// are honored. Outputs are always PNG.
//
// # Thread Safety
//
// All functions are stateless and safe to call concurrently. ImageCache is
// safe for concurrent use.
package imaging
