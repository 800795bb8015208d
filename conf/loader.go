package conf

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/ppdev/cmd/utils"
)

// Loader reads one candidate and returns its configuration object.
// A nil map with a nil error means the candidate holds no configuration and
// resolution moves on to the next one.
type Loader interface {
	Load(ctx context.Context, dir, name string) (map[string]interface{}, error)
}

// LoaderFor selects the loader for a file by its extension: JSON is decoded
// directly, everything else is evaluated by modules.
func LoaderFor(name string, modules Loader) Loader {
	if filepath.Ext(name) == ".json" {
		return JSONLoader{}
	}
	return modules
}

// JSONLoader decodes a JSON object.
type JSONLoader struct{}

func (JSONLoader) Load(_ context.Context, dir, name string) (map[string]interface{}, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read %s", name)
	}
	return decodeObject(name, data)
}

func decodeObject(name string, data []byte) (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, utils.NewJSONError(name, data, err)
	}
	if m == nil {
		m = map[string]interface{}{}
	}
	return m, nil
}

// The script run by ModuleLoader. It imports the module named by the first
// argument and prints its default export (called first when it is a
// function) as JSON.
const evalScript = `const { pathToFileURL } = require('url');
import(pathToFileURL(process.argv[1]).href)
  .then(async (m) => {
    let c = m && m.default !== undefined ? m.default : m;
    if (c && c.default !== undefined) c = c.default;
    if (typeof c === 'function') c = await c();
    process.stdout.write(JSON.stringify(c === undefined ? {} : c));
  })
  .catch((e) => {
    process.stderr.write(String((e && e.message) || e));
    process.exit(1);
  });`

// ModuleLoader evaluates JavaScript and TypeScript config modules with an
// external runtime. The result is treated as an opaque object.
type ModuleLoader struct {
	Node       []string      // Evaluates .js, .cjs and .mjs. Defaults to node.
	TypeScript []string      // Evaluates .ts, .cts and .mts. Defaults to npx tsx.
	Timeout    time.Duration // Defaults to 30 seconds.
}

func (l ModuleLoader) command(name string) []string {
	switch filepath.Ext(name) {
	case ".ts", ".cts", ".mts":
		if len(l.TypeScript) > 0 {
			return l.TypeScript
		}
		return []string{"npx", "--yes", "tsx"}
	}
	if len(l.Node) > 0 {
		return l.Node
	}
	return []string{"node"}
}

func (l ModuleLoader) Load(ctx context.Context, dir, name string) (map[string]interface{}, error) {
	path := filepath.Join(dir, name)
	if !utils.Exists(path) {
		return nil, nil
	}

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmdline := l.command(name)
	args := append(append([]string{}, cmdline[1:]...), "-e", evalScript, path)
	cmd := exec.CommandContext(ctx, cmdline[0], args...)
	utils.CmdInit(cmd, dir)

	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	utils.Logger.Debug("Evaluating config module", "file", name, "cmd", cmdline[0])
	if err := cmd.Run(); err != nil {
		description := strings.TrimSpace(stderr.String())
		if description == "" {
			description = err.Error()
		}
		return nil, utils.NewError("config module", "Config Evaluation Error", name, description)
	}

	m, err := decodeObject(name, stdout.Bytes())
	if err != nil {
		var se *utils.SourceError
		if errors.As(err, &se) {
			se.SourceType = "config module output"
		}
		return nil, err
	}
	return m, nil
}

// PackageReader gives access to the parsed package.json.
type PackageReader interface {
	Package() (Package, error)
}

// PackageFieldLoader reads one top level field of package.json.
type PackageFieldLoader struct {
	Field    string
	Packages PackageReader
}

func (l PackageFieldLoader) Load(context.Context, string, string) (map[string]interface{}, error) {
	pkg, err := l.Packages.Package()
	if err != nil {
		return nil, err
	}
	v, ok := pkg.Raw[l.Field]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, utils.NewError("package.json", "Config Parse Error", PackageFile,
			"the \""+l.Field+"\" field must be an object")
	}
	return m, nil
}

// legacyLoader maps the .pp-watch.config field names onto the current ones.
type legacyLoader struct {
	Loader
}

func (l legacyLoader) Load(ctx context.Context, dir, name string) (map[string]interface{}, error) {
	m, err := l.Loader.Load(ctx, dir, name)
	if err != nil || m == nil {
		return m, err
	}
	if _, ok := m["backendBaseURL"]; !ok {
		if base, ok := m["baseURL"]; ok {
			m["backendBaseURL"] = base
		}
	}
	delete(m, "baseURL")
	return m, nil
}
