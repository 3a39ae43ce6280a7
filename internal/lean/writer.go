package lean

import (
	"archive/zip"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/FranklineMisango/AlgoForge/internal/errors"
	"github.com/FranklineMisango/AlgoForge/internal/models"
)

// ArchiveKey identifies exactly one output file: symbol plus resolution,
// plus the trading date for sub-daily data. Daily and hourly archives
// cover the whole requested range in one file and leave Date zero.
type ArchiveKey struct {
	Symbol     string
	Date       time.Time
	Resolution models.Resolution
}

// WriterConfig configures archive output.
type WriterConfig struct {
	// DataRoot is the root directory of the archive tree,
	// e.g. data/ -> data/equity/usa/minute/...
	DataRoot string

	// Compress selects the container for sub-daily files: a
	// single-entry zip when true, a bare csv when false. Whole-range
	// daily and hourly files are always zipped.
	Compress bool
}

// ArchiveWriter persists encoded rows under the archive layout. Writes
// are idempotent: writing the same key twice overwrites the previous
// file and, for identical rows, produces byte-identical output. Rows
// are never appended to a stale file.
type ArchiveWriter struct {
	cfg    WriterConfig
	logger *slog.Logger
}

// NewArchiveWriter creates a writer rooted at cfg.DataRoot.
func NewArchiveWriter(cfg WriterConfig, logger *slog.Logger) *ArchiveWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveWriter{cfg: cfg, logger: logger.With("component", "archive_writer")}
}

// Write persists one key's rows and returns the file path written.
// Sub-daily keys produce {root}/{resolution}/{symbol}/{YYYYMMDD}_trade.{zip|csv};
// daily and hourly keys produce {root}/{resolution}/{symbol}.zip. The
// rows must already be in ascending time order.
func (w *ArchiveWriter) Write(key ArchiveKey, class models.AssetClass, rows []Row) (string, error) {
	if len(rows) == 0 {
		return "", &apperrors.DataError{Message: "no rows to write for " + key.Symbol}
	}

	symbol := strings.ToLower(key.Symbol)
	resDir := filepath.Join(w.cfg.DataRoot, string(class), class.Market(), string(key.Resolution))

	var path, member string
	if key.Resolution.SubDaily() {
		date := key.Date.Format(DateLayout)
		ext := "zip"
		if !w.cfg.Compress {
			ext = "csv"
		}
		path = filepath.Join(resDir, symbol, fmt.Sprintf("%s_trade.%s", date, ext))
		member = fmt.Sprintf("%s_%s_%s_trade.csv", date, symbol, key.Resolution)
	} else {
		path = filepath.Join(resDir, symbol+".zip")
		member = fmt.Sprintf("%s_%s_trade.csv", symbol, key.Resolution)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", &apperrors.FilesystemError{Path: filepath.Dir(path), Err: err}
	}

	csv := renderCSV(rows)

	var err error
	if strings.HasSuffix(path, ".zip") {
		err = writeZip(path, member, csv)
	} else {
		err = os.WriteFile(path, csv, 0o644)
	}
	if err != nil {
		return "", &apperrors.FilesystemError{Path: path, Err: err}
	}

	w.logger.Debug("wrote archive file", "path", path, "rows", len(rows))
	return path, nil
}

func renderCSV(rows []Row) []byte {
	var buf bytes.Buffer
	for _, row := range rows {
		buf.WriteString(row.CSV())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// writeZip writes a single-member zip. The member header carries a fixed
// modification time so re-writing identical rows yields byte-identical
// archives.
func writeZip(path, member string, content []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(f)
	header := &zip.FileHeader{
		Name:     member,
		Method:   zip.Deflate,
		Modified: time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	entry, err := zw.CreateHeader(header)
	if err == nil {
		_, err = entry.Write(content)
	}
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
	}
	return err
}
