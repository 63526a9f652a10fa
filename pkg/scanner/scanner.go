// Package scanner walks the raw and checked trees and yields the set of
// present identifiers, grouped by the directory they were found in.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openlabtools/datamon/pkg/identifier"
)

var (
	sessionRunRe = regexp.MustCompile(`^s\d+_r\d+$`)
	subjectRe    = regexp.MustCompile(`^sub-\d+$`)
)

// File is one directory entry with the attributes validation needs.
type File struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Present is one identifier observed on disk, with the files encoding it.
type Present struct {
	ID    identifier.Identifier
	Files []File
}

// Listing is the contents of one identifier directory.
type Listing struct {
	Path       string
	Mode       identifier.Mode
	SessionRun string
	DataType   string
	Subject    string
	Files      []File
	Present    []Present
}

// Issue is a directory segment that does not match the convention. These are
// converted into "Improper directory structure" outcome records, never raised.
type Issue struct {
	Path   string
	Detail string
}

// Tree is one full scan of the raw or checked side.
type Tree struct {
	Mode     identifier.Mode
	Listings []Listing
	Issues   []Issue
}

// Scanner walks one dataset's sourcedata trees.
type Scanner struct {
	log  logrus.FieldLogger
	root string // sourcedata parent, i.e. the dataset root
}

// New creates a scanner for a dataset root.
func New(log logrus.FieldLogger, root string) *Scanner {
	return &Scanner{
		log:  log.WithField("service", "scanner"),
		root: root,
	}
}

// Scan walks one side of the sourcedata tree. Raw segment order is
// session_run/datatype/subject; checked order is subject/session_run/datatype.
func (s *Scanner) Scan(mode identifier.Mode) (*Tree, error) {
	base := filepath.Join(s.root, "sourcedata", string(mode))
	tree := &Tree{Mode: mode}

	top, err := readDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return tree, nil
		}
		return nil, err
	}

	for _, first := range top {
		if !first.IsDir() {
			continue
		}
		firstPath := filepath.Join(base, first.Name())

		second, err := readDir(firstPath)
		if err != nil {
			return nil, err
		}
		for _, mid := range second {
			if !mid.IsDir() {
				continue
			}
			midPath := filepath.Join(firstPath, mid.Name())

			leaves, err := readDir(midPath)
			if err != nil {
				return nil, err
			}
			for _, leaf := range leaves {
				if !leaf.IsDir() {
					continue
				}
				listing, issue, err := s.scanLeaf(mode, first.Name(), mid.Name(), leaf.Name(), filepath.Join(midPath, leaf.Name()))
				if err != nil {
					return nil, err
				}
				if issue != nil {
					tree.Issues = append(tree.Issues, *issue)
					continue
				}
				tree.Listings = append(tree.Listings, *listing)
			}
		}
	}

	s.log.WithFields(logrus.Fields{
		"mode":     mode,
		"listings": len(tree.Listings),
		"issues":   len(tree.Issues),
	}).Debug("Scan complete")

	return tree, nil
}

func (s *Scanner) scanLeaf(mode identifier.Mode, first, mid, leaf, path string) (*Listing, *Issue, error) {
	listing := &Listing{Path: path, Mode: mode}
	switch mode {
	case identifier.ModeRaw:
		listing.SessionRun, listing.DataType, listing.Subject = first, mid, leaf
	case identifier.ModeChecked:
		listing.Subject, listing.SessionRun, listing.DataType = first, mid, leaf
	}

	if !sessionRunRe.MatchString(listing.SessionRun) {
		return nil, &Issue{Path: path, Detail: fmt.Sprintf("segment %q is not a session_run", listing.SessionRun)}, nil
	}
	if !subjectRe.MatchString(listing.Subject) {
		return nil, &Issue{Path: path, Detail: fmt.Sprintf("segment %q is not a subject", listing.Subject)}, nil
	}

	entries, err := readDir(path)
	if err != nil {
		return nil, nil, err
	}

	byKey := make(map[string]*Present)
	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, nil, err
		}
		f := File{
			Name:    e.Name(),
			Path:    filepath.Join(path, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		listing.Files = append(listing.Files, f)

		parts, err := identifier.ParseFilename(e.Name())
		if err != nil {
			continue // naming violations are the validator's concern
		}
		key := parts.ID.Key()
		if byKey[key] == nil {
			id := parts.ID
			byKey[key] = &Present{ID: id}
			keys = append(keys, key)
		}
		if parts.HasDeviation {
			byKey[key].ID.IsFromDeviation = true
		}
		byKey[key].Files = append(byKey[key].Files, f)
	}

	sort.Strings(keys)
	for _, k := range keys {
		listing.Present = append(listing.Present, *byKey[k])
	}

	return listing, nil, nil
}

// AllPresent flattens the present identifiers of every listing.
func (t *Tree) AllPresent() []identifier.Identifier {
	var out []identifier.Identifier
	for _, l := range t.Listings {
		for _, p := range l.Present {
			out = append(out, p.ID)
		}
	}
	return out
}

func readDir(path string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
