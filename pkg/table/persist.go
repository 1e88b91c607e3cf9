package table

import (
	"bufio"
	"errors"
	"fmt"
)

const dirPerms = 0o755

// persist overwrites the backing file with lines, each followed by "\n".
func (t *Table) persist(lines []string) error {
	data := encodeLines(lines)

	var err error
	if t.directWrite {
		err = t.writeDirect(data)
	} else {
		err = t.fsys.WriteFileAtomic(t.path, data)
	}

	if err != nil {
		t.log.Debug("table persist failed", "path", t.path, "atomic", !t.directWrite, "error", err)

		return fmt.Errorf("%w: %s: %w", ErrIO, t.path, err)
	}

	t.log.Debug("table persisted", "path", t.path, "lines", len(lines), "atomic", !t.directWrite)

	return nil
}

// writeDirect truncates the backing file and writes data in place. The file
// handle is closed on every path.
func (t *Table) writeDirect(data []byte) (err error) {
	f, err := t.fsys.Create(t.path)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := f.Close()
		if closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close: %w", closeErr))
		}
	}()

	w := bufio.NewWriter(f)

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	return nil
}

func encodeLines(lines []string) []byte {
	size := 0
	for _, line := range lines {
		size += len(line) + 1
	}

	buf := make([]byte, 0, size)
	for _, line := range lines {
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	return buf
}
