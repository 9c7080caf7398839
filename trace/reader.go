package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrMalformedTrace is returned when a trace line cannot be parsed.
var ErrMalformedTrace = errors.New("malformed trace")

// Reader reads records from a trace one line at a time.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Next returns the next record. It returns io.EOF after the last record.
// Blank lines are skipped.
func (r *Reader) Next() (Record, error) {
	for r.scanner.Scan() {
		r.line++

		text := strings.TrimSpace(r.scanner.Text())
		if text == "" {
			continue
		}

		return parseLine(text, r.line)
	}

	if err := r.scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("failed to read trace: %w", err)
	}

	return Record{}, io.EOF
}

// parseLine parses "<op> <hex-address>,<size>".
func parseLine(text string, line int) (Record, error) {
	op, operand, found := strings.Cut(text, " ")
	if !found || len(op) != 1 {
		return Record{}, malformed(line, "expected \"<op> <address>,<size>\", got %q", text)
	}

	kind, ok := ParseKind(op[0])
	if !ok {
		return Record{}, malformed(line, "unknown operation %q", op)
	}

	addrText, sizeText, found := strings.Cut(operand, ",")
	if !found {
		return Record{}, malformed(line, "missing size in %q", text)
	}

	addrText = strings.TrimSpace(addrText)
	addrText = strings.TrimPrefix(strings.TrimPrefix(addrText, "0x"), "0X")
	addr, err := strconv.ParseUint(addrText, 16, 64)
	if err != nil {
		return Record{}, malformed(line, "bad address %q", addrText)
	}

	size, err := strconv.Atoi(strings.TrimSpace(sizeText))
	if err != nil {
		return Record{}, malformed(line, "bad size %q", sizeText)
	}

	return Record{
		Kind:    kind,
		Address: addr,
		Size:    size,
		Line:    line,
	}, nil
}

func malformed(line int, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s",
		ErrMalformedTrace, line, fmt.Sprintf(format, args...))
}

// Parse reads every record from r.
func Parse(r io.Reader) ([]Record, error) {
	reader := NewReader(r)

	var records []Record
	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
}

// LoadFile reads every record from the trace file at path.
func LoadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}

// Write writes records to w, one per line.
func Write(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		if _, err := fmt.Fprintln(bw, Format(r)); err != nil {
			return fmt.Errorf("failed to write trace: %w", err)
		}
	}
	return bw.Flush()
}
