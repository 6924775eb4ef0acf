package mem

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// IsExecutable reports whether addr falls inside a mapping with execute
// permission, per /proc/self/maps.
func IsExecutable(addr uintptr) (bool, error) {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return false, errors.Wrap(err, "open /proc/self/maps")
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		// 55e3a8a1c000-55e3a8a21000 r-xp 00002000 fd:01 3931 /usr/bin/cat
		fields := strings.SplitN(sc.Text(), " ", 3)
		if len(fields) < 2 {
			continue
		}
		lo, hi, ok := parseRange(fields[0])
		if !ok || addr < lo || addr >= hi {
			continue
		}
		return strings.Contains(fields[1], "x"), nil
	}
	if err := sc.Err(); err != nil {
		return false, errors.Wrap(err, "scan /proc/self/maps")
	}
	return false, nil
}

func parseRange(s string) (lo, hi uintptr, ok bool) {
	dash := strings.IndexByte(s, '-')
	if dash < 0 {
		return 0, 0, false
	}
	l, err1 := strconv.ParseUint(s[:dash], 16, 64)
	h, err2 := strconv.ParseUint(s[dash+1:], 16, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return uintptr(l), uintptr(h), true
}
