package templating

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultVersion names a directory that matches every server version.
const DefaultVersion = "default"

// bundleVersion is one version directory of a category.
type bundleVersion struct {
	dir string
	num int
}

// ParseVersionDir converts a version directory name to server_version_num
// form: "9.6" is 90600, "10.0" is 100000, "15.2" is 150002 and "default" is 0.
func ParseVersionDir(name string) (int, error) {
	if name == DefaultVersion {
		return 0, nil
	}

	major, minor, ok := strings.Cut(name, ".")
	if !ok {
		return 0, fmt.Errorf("version directory %q is not major.minor", name)
	}
	maj, err := strconv.Atoi(major)
	if err != nil || maj <= 0 {
		return 0, fmt.Errorf("version directory %q: bad major version", name)
	}
	mnr, err := strconv.Atoi(minor)
	if err != nil || mnr < 0 || mnr > 99 {
		return 0, fmt.Errorf("version directory %q: bad minor version", name)
	}

	if maj < 10 {
		return maj*10000 + mnr*100, nil
	}
	return maj*10000 + mnr, nil
}

// FormatVersionNum renders a server_version_num as major.minor.
func FormatVersionNum(num int) string {
	if num >= 100000 {
		return fmt.Sprintf("%d.%d", num/10000, num%10000)
	}
	return fmt.Sprintf("%d.%d", num/10000, num/100%100)
}
