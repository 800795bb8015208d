package conf

// Kind groups candidates by where the configuration lives.
type Kind int

const (
	// KindDedicated is a pp-dev.config.* file.
	KindDedicated Kind = iota
	// KindPackage is the "pp-dev" field of package.json.
	KindPackage
	// KindLegacy is a .pp-watch.config.* file.
	KindLegacy
)

func (k Kind) String() string {
	switch k {
	case KindDedicated:
		return "dedicated"
	case KindPackage:
		return "package"
	case KindLegacy:
		return "legacy"
	}
	return "unknown"
}

const (
	ConfigBaseName = "pp-dev.config"
	LegacyBaseName = ".pp-watch.config"
	PackageFile    = "package.json"
	PackageField   = "pp-dev"
)

var (
	configExtensions = []string{".ts", ".js", ".json", ".cjs", ".mjs", ".cts", ".mts"}
	legacyExtensions = []string{".js", ".ts", ".json"}

	// Files that do not configure pp-dev directly but still warrant a reload.
	envFiles = []string{".env", ".env.local", ".env.development", ".env.development.local"}
)

// Candidate is one place a configuration may come from.
type Candidate struct {
	Name     string // File name, relative to the project directory.
	Priority int    // Lower wins.
	Kind     Kind
	Loader   Loader
}

// ConfigNames lists the dedicated config file names, dotfile variants first.
func ConfigNames() []string {
	names := make([]string, 0, 2*len(configExtensions))
	for _, ext := range configExtensions {
		names = append(names, "."+ConfigBaseName+ext)
	}
	for _, ext := range configExtensions {
		names = append(names, ConfigBaseName+ext)
	}
	return names
}

// LegacyNames lists the legacy config file names.
func LegacyNames() []string {
	names := make([]string, 0, len(legacyExtensions))
	for _, ext := range legacyExtensions {
		names = append(names, LegacyBaseName+ext)
	}
	return names
}

// Candidates returns the ordered candidate list: dedicated files, then the
// package.json field, then legacy files.
func Candidates(modules Loader, packages PackageReader) []Candidate {
	var out []Candidate
	for _, name := range ConfigNames() {
		out = append(out, Candidate{Name: name, Kind: KindDedicated, Loader: LoaderFor(name, modules)})
	}
	out = append(out, Candidate{
		Name:   PackageFile,
		Kind:   KindPackage,
		Loader: PackageFieldLoader{Field: PackageField, Packages: packages},
	})
	for _, name := range LegacyNames() {
		out = append(out, Candidate{Name: name, Kind: KindLegacy, Loader: legacyLoader{LoaderFor(name, modules)}})
	}
	for i := range out {
		out[i].Priority = i
	}
	return out
}

// WatchNames returns every file name whose change may alter the resolved
// configuration.
func WatchNames() []string {
	names := append(ConfigNames(), PackageFile)
	names = append(names, LegacyNames()...)
	return append(names, envFiles...)
}
