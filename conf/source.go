// Package conf resolves the pp-dev project configuration from its candidate
// files, with a process scoped cache that can be invalidated at any time.
package conf

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/ppdev/cmd/logger"
	"github.com/ppdev/cmd/model"
	"github.com/ppdev/cmd/utils"
)

// Package is the parsed package.json.
type Package struct {
	Name    string
	Version string
	Raw     map[string]interface{}
}

// Result is one resolution of the candidate list.
type Result struct {
	Config   model.Config
	Raw      map[string]interface{} // The winning object, as loaded.
	Source   string                 // The winning candidate, empty when none exists.
	Kind     Kind
	Package  Package
	Warnings []*utils.SourceError // Candidates that exist but could not be used.
}

// CacheStats reports what the source currently holds.
type CacheStats struct {
	PackageCached bool
	ConfigEntries int
}

// Source resolves configuration for one project directory.
type Source struct {
	dir        string
	log        logger.MultiLogger
	modules    Loader
	candidates []Candidate

	mu         sync.Mutex
	generation uint64
	pkg        *Package
	pkgModTime time.Time
	resolved   map[uint64]*Result
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger used for warnings.
func WithLogger(l logger.MultiLogger) Option {
	return func(s *Source) { s.log = l }
}

// WithModuleLoader replaces the loader used for .ts/.js style candidates.
func WithModuleLoader(l Loader) Option {
	return func(s *Source) { s.modules = l }
}

// NewSource returns a source for the project in dir with empty caches.
func NewSource(dir string, opts ...Option) *Source {
	s := &Source{
		dir:      dir,
		log:      utils.Logger.New("section", "config"),
		modules:  ModuleLoader{},
		resolved: map[uint64]*Result{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.candidates = Candidates(s.modules, s)
	return s
}

// Dir returns the project directory.
func (s *Source) Dir() string {
	return s.dir
}

// Candidates returns the ordered candidate list.
func (s *Source) Candidates() []Candidate {
	return append([]Candidate(nil), s.candidates...)
}

// Invalidate drops both caches. A Resolve running concurrently discards its
// work and starts over against the empty cache.
func (s *Source) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.pkg = nil
	s.resolved = map[uint64]*Result{}
	s.log.Debug("Config cache invalidated", "generation", s.generation)
}

// Stats reports the cache contents.
func (s *Source) Stats() CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CacheStats{PackageCached: s.pkg != nil, ConfigEntries: len(s.resolved)}
}

// Package returns the parsed package.json, reading it on first use and again
// whenever its modification time changes. A missing file yields an empty
// package.
func (s *Source) Package() (Package, error) {
	path := filepath.Join(s.dir, PackageFile)
	modTime := utils.ModTime(path)

	s.mu.Lock()
	if s.pkg != nil && s.pkgModTime.Equal(modTime) {
		p := *s.pkg
		s.mu.Unlock()
		return p, nil
	}
	gen := s.generation
	s.mu.Unlock()

	p, err := readPackage(path)
	if err != nil {
		return p, err
	}

	s.mu.Lock()
	if gen == s.generation {
		s.pkg, s.pkgModTime = &p, modTime
	}
	s.mu.Unlock()
	return p, nil
}

func readPackage(path string) (Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Package{Raw: map[string]interface{}{}}, nil
		}
		return Package{}, errors.Wrapf(err, "read %s", PackageFile)
	}

	raw, err := decodeObject(PackageFile, data)
	if err != nil {
		return Package{}, err
	}
	p := Package{Raw: raw}
	p.Name, _ = raw["name"].(string)
	p.Version, _ = raw["version"].(string)
	return p, nil
}

type present struct {
	Candidate
	modTime time.Time
}

// Resolve returns the configuration of the first candidate that exists and
// loads. Fields are never backfilled from lower priority candidates.
func (s *Source) Resolve(ctx context.Context) (*Result, error) {
	for {
		s.mu.Lock()
		gen := s.generation
		s.mu.Unlock()

		existing := s.existing()
		key := hashCandidates(existing)

		s.mu.Lock()
		if r, ok := s.resolved[key]; ok {
			s.mu.Unlock()
			return r, nil
		}
		s.mu.Unlock()

		r, err := s.resolve(ctx, existing)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		if gen != s.generation {
			s.mu.Unlock()
			s.log.Debug("Config invalidated during resolve, retrying")
			continue
		}
		s.resolved[key] = r
		s.mu.Unlock()
		return r, nil
	}
}

func (s *Source) existing() []present {
	var out []present
	for _, c := range s.candidates {
		fi, err := os.Stat(filepath.Join(s.dir, c.Name))
		if err != nil || fi.IsDir() {
			continue
		}
		out = append(out, present{Candidate: c, modTime: fi.ModTime()})
	}
	return out
}

func hashCandidates(existing []present) uint64 {
	h := fnv.New64a()
	for _, p := range existing {
		_, _ = h.Write([]byte(p.Name))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(strconv.FormatInt(p.modTime.UnixNano(), 10)))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

func (s *Source) resolve(ctx context.Context, existing []present) (*Result, error) {
	r := &Result{}

	pkg, err := s.Package()
	packageFailed := err != nil
	if packageFailed {
		r.Warnings = append(r.Warnings, s.warn(PackageFile, err))
	} else {
		r.Package = pkg
	}

	for _, c := range existing {
		if c.Kind == KindPackage && packageFailed {
			continue
		}
		m, err := c.Loader.Load(ctx, s.dir, c.Name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.Warnings = append(r.Warnings, s.warn(c.Name, err))
			continue
		}
		if m == nil {
			continue
		}
		cfg, err := model.ConfigFromMap(m)
		if err != nil {
			r.Warnings = append(r.Warnings, s.warn(c.Name, err))
			continue
		}
		r.Config, r.Raw, r.Source, r.Kind = cfg, m, c.Name, c.Kind
		s.log.Debug("Config resolved", "source", c.Name, "kind", c.Kind)
		break
	}
	return r, nil
}

func (s *Source) warn(name string, err error) *utils.SourceError {
	var se *utils.SourceError
	if !errors.As(err, &se) {
		se = utils.NewError("config", "Config Load Error", name, err.Error())
	}
	s.log.Warn("Skipping config source", "file", name, "error", se.Error())
	return se
}

// Load resolves and normalizes the configuration. The template name comes
// from package.json.
func (s *Source) Load(ctx context.Context) (*model.NormalizedConfig, *Result, error) {
	r, err := s.Resolve(ctx)
	if err != nil {
		return nil, nil, err
	}
	if r.Package.Name == "" && !utils.Exists(filepath.Join(s.dir, PackageFile)) {
		return nil, r, errors.Wrapf(model.ErrNoPackage, "%s", s.dir)
	}
	n, err := model.Normalize(r.Config, r.Package.Name)
	if err != nil {
		source := r.Source
		if source == "" {
			source = PackageFile
		}
		return nil, r, errors.Wrapf(err, "config from %s", source)
	}
	return n, r, nil
}

// MarshalJSON renders a result for the status endpoint.
func (r *Result) MarshalJSON() ([]byte, error) {
	warnings := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		warnings = append(warnings, w.Error())
	}
	return json.Marshal(struct {
		Source   string   `json:"source"`
		Kind     string   `json:"kind,omitempty"`
		Warnings []string `json:"warnings"`
	}{r.Source, kindName(r), warnings})
}

func kindName(r *Result) string {
	if r.Source == "" {
		return ""
	}
	return r.Kind.String()
}
