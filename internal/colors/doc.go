// Package colors extracts a representative "dominant" color from cover art.
//
// The algorithm samples every 20th pixel, ranks samples by HSL saturation and averages the most
// saturated tenth, which favors vivid accents over large neutral backgrounds.
//
// [Extractor] runs extractions on a worker pool and caches results per entity id under
// "color-cache-<id>". The cache is keyed by id only, so a changed image URL keeps the old color
// until the entry is cleared.
package colors
