package filterengine

// FilterType classifies a filter rule.
type FilterType string

const (
	FilterTypeBlocking  FilterType = "blocking"
	FilterTypeException FilterType = "exception"
	FilterTypeElemhide  FilterType = "elemhide"
	FilterTypeComment   FilterType = "comment"
	FilterTypeInvalid   FilterType = "invalid"
)

// Filter is the outcome of a match query. The zero value represents
// "no filter matched".
type Filter struct {
	Text string
	Type FilterType
}

// IsValid reports whether the filter represents an actual rule.
func (f Filter) IsValid() bool {
	return f.Text != "" && f.Type != "" && f.Type != FilterTypeInvalid
}

// IsException reports whether the filter is an exception (allowing)
// rule.
func (f Filter) IsException() bool {
	return f.Type == FilterTypeException
}
