package utils

import (
	"os"
	"os/exec"
	"strings"
)

// CmdInit prepares a helper command to run inside basePath with the current
// environment. Node prints experimental warnings to stderr, which would be
// mixed into our error messages, so they are silenced.
func CmdInit(c *exec.Cmd, basePath string) {
	c.Dir = basePath
	c.Env = []string{"NODE_NO_WARNINGS=1"}
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if pair[0] == "NODE_NO_WARNINGS" {
			continue
		}
		c.Env = append(c.Env, e)
	}
}
