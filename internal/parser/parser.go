package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bankpull-dev/bankpull/internal/model"
)

// ErrInvalidFormat reports that a raw document does not carry the
// signature marker of the parser it was handed to.
var ErrInvalidFormat = errors.New("invalid statement format")

// sgt is the civil timezone all statement dates are normalized to before
// the calendar date is extracted.
var sgt = time.FixedZone("SGT", 8*60*60)

// Parser converts one raw bank export document into Transactions.
//
// Parsers emit transactions in reverse source order: exports arrive
// newest-first, so emission is oldest-first. Aggregation performs the
// final global sort, but relative order within a day comes from here.
type Parser interface {
	Parse(raw []byte) ([]model.Transaction, error)
	Bank() string
}

// Reserializer is implemented by parsers whose source is not already
// delimited text. It yields a CSV rendering of the parsed rows for the
// archive; rows that have not settled are excluded.
type Reserializer interface {
	Reserialize(raw []byte) ([]byte, error)
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate bank name.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Bank())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser bank: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for a bank, or nil.
func (r *Registry) Get(bank string) Parser {
	return r.parsers[strings.ToLower(bank)]
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&DBSParser{})
	r.Register(&UOBParser{})
	return r
}

// importDir is the subdirectory raw exports are dropped into.
const importDir = "import"

// processedDir is the subdirectory for already-ingested exports.
const processedDir = "import/processed"

// FileInfo describes a raw export document in the drop directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// Scan returns raw export documents in <workspace>/import/.
func Scan(workspace string) ([]FileInfo, error) {
	dir := filepath.Join(workspace, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".csv" && ext != ".html" && ext != ".xls" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(workspace, fileName string) error {
	src := filepath.Join(workspace, importDir, fileName)
	dstDir := filepath.Join(workspace, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
