// Package detection suggests a protected box by looking for a door frame.
//
// The protected rectangle of a door composition is always centered on the
// canvas, so the only thing worth detecting is how wide and how tall it must
// be. SuggestBox finds the largest tall, roughly rectangular outline that
// covers the image center and converts it to the centered width and height
// fractions the compositor uses.
//
// # Pipeline
//
//  1. Edge detection: bild grayscale, Laplacian edge filter and threshold
//  2. Contours: stack-based flood fill groups 8-connected edge pixels
//  3. Scoring: how much of each bounding box perimeter the contour touches
//  4. Selection: largest tall outline over the center, clamped to BoxBounds
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Bounds are inclusive on both corners
//
// # Limitations
//
// The heuristic works on clean, high-contrast frames. Cluttered photos,
// strong perspective or doors with no visible casing fall back to the
// default box, which the user can still adjust by hand.
package detection
