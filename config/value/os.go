package value

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dir is a directory that has to exist and has to be writable, e.g. for
// the history database.
type Dir string

func NewDir(p *string, val string) *Dir {
	*p = val

	return (*Dir)(p)
}

func (u *Dir) Set(val string) error {
	val = strings.TrimSpace(val)
	if len(val) != 0 {
		val = filepath.Clean(val)
	}

	*u = Dir(val)

	return nil
}

func (u *Dir) String() string {
	return string(*u)
}

func (u *Dir) Validate() error {
	dir := string(*u)

	if len(strings.TrimSpace(dir)) == 0 {
		return fmt.Errorf("path name must not be empty")
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%s does not exist", dir)
	}

	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	f, err := os.CreateTemp(dir, ".ffstats-probe-*")
	if err != nil {
		return fmt.Errorf("%s is not writable", dir)
	}

	f.Close()
	os.Remove(f.Name())

	return nil
}

func (u *Dir) IsEmpty() bool {
	return len(string(*u)) == 0
}
