package docstore

import (
	"fmt"
	"strings"
)

func segments(p string) []string {
	return strings.Split(strings.Trim(p, "/"), "/")
}

// ValidateDocPath checks that p names a document.
func ValidateDocPath(p string) error {
	segs := segments(p)
	if len(segs)%2 != 0 {
		return fmt.Errorf("%q is not a document path", p)
	}
	return validSegments(p, segs)
}

// ValidateCollectionPath checks that p names a collection.
func ValidateCollectionPath(p string) error {
	segs := segments(p)
	if len(segs)%2 != 1 {
		return fmt.Errorf("%q is not a collection path", p)
	}
	return validSegments(p, segs)
}

func validSegments(p string, segs []string) error {
	for _, s := range segs {
		if s == "" || s == "." || s == ".." {
			return fmt.Errorf("%q has an empty or relative segment", p)
		}
	}
	return nil
}

// DocID returns the document id of a document path.
func DocID(docPath string) string {
	segs := segments(docPath)
	return segs[len(segs)-1]
}

// Parent returns the collection path containing a document.
func Parent(docPath string) string {
	segs := segments(docPath)
	return strings.Join(segs[:len(segs)-1], "/")
}

// CollectionID returns the id of the collection containing a document.
func CollectionID(docPath string) string {
	segs := segments(docPath)
	if len(segs) < 2 {
		return ""
	}
	return segs[len(segs)-2]
}

// Child joins a collection path and a document id.
func Child(collection, id string) string {
	return strings.Trim(collection, "/") + "/" + id
}

// Within reports whether docPath lies strictly below ancestor. Every path is
// within the empty ancestor.
func Within(docPath, ancestor string) bool {
	ancestor = strings.Trim(ancestor, "/")
	if ancestor == "" {
		return true
	}
	return strings.HasPrefix(strings.Trim(docPath, "/"), ancestor+"/")
}

// Root returns the top-level document a path belongs to, or "" for a path
// shorter than one document.
func Root(p string) string {
	segs := segments(p)
	if len(segs) < 2 {
		return ""
	}
	return segs[0] + "/" + segs[1]
}
