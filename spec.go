package fastimage

// Spec names a load variant of an image. Requests for the same URL with
// different specs are distinct cache entries.
//
// MaxWidth and MaxHeight bound the decoded image; the loader downscales
// preserving aspect ratio. Zero means no bound.
type Spec struct {
	Name      string
	MaxWidth  int
	MaxHeight int
}

// SpecOriginal loads images at their original dimensions.
var SpecOriginal = Spec{Name: "orig"}
