// Package registry reads the published tag list of the target image
// repository. Only bare tags (no architecture suffix) count as published,
// since a bare tag is written last, after every per-arch image was pushed.
package registry

import (
	"context"
	"sort"
	"strings"
)

type Inspector interface {
	ExistingTags(ctx context.Context) (TagSet, error)
}

type TagSet map[string]struct{}

func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

func (s TagSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for tag := range s {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// BareTags keeps the tags that carry no "-<arch>" style suffix.
func BareTags(names []string) TagSet {
	set := make(TagSet, len(names))
	for _, name := range names {
		if name == "" || strings.Contains(name, "-") {
			continue
		}
		set[name] = struct{}{}
	}
	return set
}

// HasImage reports whether version already has a published multi-arch image.
func HasImage(version string, existing TagSet) bool {
	return existing.Has(version)
}
