// Package marker turns an arbitrary photograph into a square, high-contrast
// tracking marker.
//
// # Layout
//
// The marker is a Size x Size canvas with a solid black frame of width Border.
// The source image is scaled to fit the interior square, centered, and the
// whole interior is binarized to pure black or white using Otsu's threshold.
// Three white orientation squares sit in the frame corners (top-left large,
// top-right and bottom-left small, bottom-right empty) so that the marker's
// rotation can be recovered.
//
// # Determinism
//
// Thresholding depends only on the interior histogram, so identical inputs
// always produce byte-identical markers.
package marker
