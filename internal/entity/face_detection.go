package entity

// FaceBox is a face bounding box in pixel coordinates.
type FaceBox struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

func (b FaceBox) Valid() bool {
	return b.Top < b.Bottom && b.Left < b.Right
}

// FaceEncoding is an opaque per-face feature vector.
type FaceEncoding []float32

// LocatedFaces is what a face locator returns for one frame. Locations[i] and
// Encodings[i] describe the same face.
type LocatedFaces struct {
	Locations []FaceBox
	Encodings []FaceEncoding
	Count     int
}

func NoFaces() *LocatedFaces {
	return &LocatedFaces{
		Locations: []FaceBox{},
		Encodings: []FaceEncoding{},
		Count:     0,
	}
}
