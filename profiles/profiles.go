// Package profiles resolves named RSS profiles from the profiles YAML file.
//
// File format:
//
//	tech:
//	  description: Technology news
//	  feeds:
//	    - https://hnrss.org/frontpage
//	    - https://feeds.arstechnica.com/arstechnica/index
package profiles

import (
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kliewerdaniel/News02/digest"
	"github.com/kliewerdaniel/News02/errors"
)

// Profile is one named set of feeds
type Profile struct {
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Feeds       []string `yaml:"feeds" json:"feeds"`
}

// FileResolver reads profiles from a YAML file and caches the parsed result
// until Invalidate is called.
type FileResolver struct {
	path string

	mu       sync.RWMutex
	profiles map[string]Profile
}

var _ digest.ProfileResolver = (*FileResolver)(nil)

// NewFileResolver creates a resolver for path. The file is read lazily.
func NewFileResolver(path string) *FileResolver {
	return &FileResolver{path: path}
}

// Path returns the profiles file location
func (r *FileResolver) Path() string {
	return r.path
}

// Resolve returns the feeds of the named profile. A missing profile, a
// missing file or an empty feed list is digest.ErrProfileNotFound.
func (r *FileResolver) Resolve(name string) ([]string, error) {
	profiles, err := r.load()
	if err != nil {
		return nil, err
	}

	p, ok := profiles[name]
	if !ok {
		return nil, digest.NewProfileNotFoundError(name)
	}

	var feeds []string
	for _, f := range p.Feeds {
		if f = strings.TrimSpace(f); f != "" {
			feeds = append(feeds, f)
		}
	}
	if len(feeds) == 0 {
		return nil, digest.NewProfileNotFoundError(name)
	}
	return feeds, nil
}

// Names lists profile names in sorted order
func (r *FileResolver) Names() ([]string, error) {
	profiles, err := r.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Invalidate drops the cached profiles; the next lookup rereads the file
func (r *FileResolver) Invalidate() {
	r.mu.Lock()
	r.profiles = nil
	r.mu.Unlock()
}

func (r *FileResolver) load() (map[string]Profile, error) {
	r.mu.RLock()
	cached := r.profiles
	r.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.profiles != nil {
		return r.profiles, nil
	}

	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		// Not cached so a file created later is picked up
		return map[string]Profile{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read profiles file %s", r.path)
	}

	profiles := make(map[string]Profile)
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, errors.WithHintf(
			errors.Wrapf(err, "failed to parse profiles file %s", r.path),
			"expected a mapping of profile name to {feeds: [...], description: ...}")
	}
	r.profiles = profiles
	return profiles, nil
}
