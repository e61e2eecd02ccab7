package record

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
)

const positionPrefix = "The last known position in encoder ticks is: "

// WriteShutdown appends a shutdown entry with the final encoder position
// to the file at path, creating it if needed.
func WriteShutdown(path string, position int64, at time.Time) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open shutdown log: %w", err)
	}
	_, werr := fmt.Fprintf(f, "%s%d\nYou performed a graceful shutdown at %s\n\n",
		positionPrefix, position, at.Format(time.RFC3339))
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("write shutdown log: %w", werr)
	}
	if cerr != nil {
		return fmt.Errorf("close shutdown log: %w", cerr)
	}
	return nil
}

// LastPosition returns the position of the most recent entry in the file
// at path. ok is false when the file does not exist or holds no entry.
func LastPosition(path string) (pos int64, ok bool, err error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("open shutdown log: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		rest, found := strings.CutPrefix(sc.Text(), positionPrefix)
		if !found {
			continue
		}
		v, perr := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
		if perr != nil {
			continue
		}
		pos, ok = v, true
	}
	if err := sc.Err(); err != nil {
		return 0, false, fmt.Errorf("read shutdown log: %w", err)
	}
	return pos, ok, nil
}
