// Package grouping decides how uploaded files are gathered into file sets
// and which type each file set gets.
package grouping

import (
	"fmt"
	"path"
	"strings"

	"sdr-go/internal/sdr"
)

// Grouping strategy names accepted in configuration and on the command line.
const (
	Single         = "single"
	MatchingPrefix = "matching_prefix"
)

// New returns the grouping strategy registered under name.
func New(name string) (sdr.GroupingStrategy, error) {
	switch name {
	case "", Single:
		return SingleStrategy{}, nil
	case MatchingPrefix:
		return MatchingPrefixStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown grouping strategy: %q (valid: %s, %s)", name, Single, MatchingPrefix)
	}
}

// SingleStrategy puts every file in its own group, in upload order.
type SingleStrategy struct{}

func (SingleStrategy) Group(uploads []sdr.UploadResponse) [][]sdr.UploadResponse {
	groups := make([][]sdr.UploadResponse, 0, len(uploads))
	for _, u := range uploads {
		groups = append(groups, []sdr.UploadResponse{u})
	}
	return groups
}

// MatchingPrefixStrategy groups files whose paths are equal once the
// extension is removed, so "a/x.tif" and "a/x.xml" share a group while
// "b/x.tif" does not. Matching is case sensitive. Groups appear in the
// order their first file was uploaded.
type MatchingPrefixStrategy struct{}

func (MatchingPrefixStrategy) Group(uploads []sdr.UploadResponse) [][]sdr.UploadResponse {
	index := make(map[string]int)
	var groups [][]sdr.UploadResponse
	for _, u := range uploads {
		key := Prefix(u.Filename)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], u)
	}
	return groups
}

// Prefix returns filename without its final extension. Leading dots of
// hidden files are not treated as an extension.
func Prefix(filename string) string {
	name := strings.ReplaceAll(filename, "\\", "/")
	dir, base := path.Split(name)
	ext := path.Ext(base)
	if ext == base {
		return name
	}
	return dir + strings.TrimSuffix(base, ext)
}

var (
	_ sdr.GroupingStrategy = SingleStrategy{}
	_ sdr.GroupingStrategy = MatchingPrefixStrategy{}
)
