// Package paths locates configuration files shipped next to the binary.
package paths

import (
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// searchDirs is consulted in order. Tests replace it.
var searchDirs = defaultSearchDirs

func defaultSearchDirs() []string {
	dirs := []string{
		".",
		"config",
		os.Args[0] + ".runfiles/go_logon/config",
	}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Join(filepath.Dir(exe), "config"))
	}
	if cfg, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(cfg, "logonserv"))
	}
	return append(dirs, "/etc/logonserv")
}

// Find locates the passed config file shortname and returns an absolute or
// relative path to find it at, or "" if no candidate exists.
//
// For example, for "realms.toml" it may return
// "mybinary.runfiles/go_logon/config/realms.toml".
func Find(fileName string) string {
	for _, dir := range searchDirs() {
		path := filepath.Join(dir, fileName)
		if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
			glog.V(1).Infof("paths.Find(%q)=%s", fileName, path)
			return path
		}
	}
	return ""
}

// Open opens the file Find locates.
func Open(fileName string) (*os.File, error) {
	path := Find(fileName)
	if path == "" {
		return nil, errors.Wrapf(os.ErrNotExist, "paths: %s not found", fileName)
	}
	return os.Open(path)
}
