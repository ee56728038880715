// Package apng writes and reads animated PNG (APNG) streams.
//
// The writer emits 8-bit truecolour-with-alpha images only: every frame is
// compressed up front with CompressFrame and the compressed frames are laid
// out by Encode. The first frame doubles as the default image, so it is
// carried in IDAT chunks while the rest use fdAT.
//
// For encoding details, see:
//
// https://wiki.mozilla.org/APNG_Specification
// https://www.w3.org/TR/PNG/
package apng
