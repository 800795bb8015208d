package conf_test

import "os"

func chmodExec(path string) error {
	return os.Chmod(path, 0o755)
}
