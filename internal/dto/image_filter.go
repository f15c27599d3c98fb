package dto

// DefaultListLimit is used when the client does not send a limit.
const DefaultListLimit = 20

// ImageFilters describe user-provided filters to narrow the image list.
// An empty Tag means no tag filter; MinConfidence only applies together with a Tag.
type ImageFilters struct {
	Tag           string
	MinConfidence float64
	Limit         int
}

// HasTag reports whether the tag filter is set.
func (f ImageFilters) HasTag() bool {
	return f.Tag != ""
}
