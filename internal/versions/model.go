package versions

// Version is an upstream tag with its normalized numeric core.
type Version struct {
	Raw   string
	Major int
	Minor int
	Patch int
}

// Minimum is the lowest release that still gets an image.
type Minimum struct {
	Major int
	Minor int
	Patch int
}

// Discovery is the classified result of one pass over the upstream tag list.
// Both slices keep the order the upstream API reported the tags in.
type Discovery struct {
	Supported   []string
	Unsupported []string
}

// Latest returns the first supported tag, which the upstream reports newest first.
func (d Discovery) Latest() (string, bool) {
	if len(d.Supported) == 0 {
		return "", false
	}
	return d.Supported[0], true
}

type DiscoverOptions struct {
	APIURL   string
	Repo     string
	Token    string
	PageSize int
	Minimum  Minimum
}
