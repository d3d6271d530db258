package recorder

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/snksoft/crc"
	"github.jpl.nasa.gov/bdube/flyopt/fault"
)

const (
	// extName is the EXTNAME of the table HDU holding an episode
	extName = "EPISODE"

	// timeCol is the column of sample times, in ns since the unix epoch
	timeCol = "TIME"
)

var crcTable = crc.NewTable(crc.CRC32)

// FITS records episodes as FITS files with one binary table each, in
// yyyy-mm-dd subfolders of Root.  The table header carries the episode id
// and a CRC-32 of the table contents, checked on retrieval.
type FITS struct {
	// Root is the root path
	Root string

	// Prefix is the prefix for the filenames
	Prefix string

	mu    sync.Mutex
	paths map[string]string
}

// NewFITS returns a FITS recorder writing under root
func NewFITS(root, prefix string) *FITS {
	return &FITS{Root: root, Prefix: prefix, paths: map[string]string{}}
}

// dayFolder is the subfolder of today's episodes
func (r *FITS) dayFolder() string {
	now := time.Now()
	return fmt.Sprintf("%04d-%02d-%02d", now.Year(), now.Month(), now.Day())
}

// mkDir makes the folder and returns it
func (r *FITS) mkDir() (string, error) {
	fldr := filepath.Join(r.Root, r.dayFolder())
	err := os.MkdirAll(fldr, 0777)
	return fldr, err
}

// checksum is the CRC-32 of the times and values, little endian, row major
func checksum(e Episode) uint32 {
	buf := make([]byte, 0, 8*len(e.Rows)*(len(e.Columns)+1))
	for i, row := range e.Rows {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(e.Times[i].UnixNano()))
		for _, v := range row {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		}
	}
	return uint32(crcTable.CalculateCRC(buf))
}

// Record writes e to a new file and returns its id
func (r *FITS) Record(e Episode) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	fldr, err := r.mkDir()
	if err != nil {
		return "", err
	}
	id := newID()
	fn := filepath.Join(fldr, r.Prefix+id+".fits")
	fid, err := os.Create(fn)
	if err != nil {
		return "", err
	}
	defer fid.Close()
	w := bufio.NewWriter(fid)
	if err = writeFITS(w, id, e); err != nil {
		return "", fmt.Errorf("writing %s: %w", fn, err)
	}
	if err = w.Flush(); err != nil {
		return "", err
	}
	r.mu.Lock()
	if r.paths == nil {
		r.paths = map[string]string{}
	}
	r.paths[id] = fn
	r.mu.Unlock()
	return id, nil
}

func writeFITS(w *bufio.Writer, id string, e Episode) error {
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	phdu, err := fitsio.NewPrimaryHDU(nil)
	if err != nil {
		return err
	}
	if err = fits.Write(phdu); err != nil {
		return err
	}

	cols := []fitsio.Column{{Name: timeCol, Format: "K"}}
	for _, c := range e.Columns {
		cols = append(cols, fitsio.Column{Name: c, Format: "D"})
	}
	tbl, err := fitsio.NewTable(extName, cols, fitsio.BINARY_TBL)
	if err != nil {
		return err
	}
	defer tbl.Close()
	err = tbl.Header().Append(
		fitsio.Card{Name: "EPID", Value: id, Comment: "episode id"},
		fitsio.Card{Name: "DATACRC", Value: int(checksum(e)), Comment: "CRC-32 of times and values"},
	)
	if err != nil {
		return err
	}

	args := make([]interface{}, len(e.Columns)+1)
	vals := make([]float64, len(e.Columns))
	var ns int64
	args[0] = &ns
	for j := range vals {
		args[j+1] = &vals[j]
	}
	for i, row := range e.Rows {
		ns = e.Times[i].UnixNano()
		copy(vals, row)
		if err = tbl.Write(args...); err != nil {
			return err
		}
	}
	return fits.Write(tbl)
}

// path returns the file of episode id, searching the day folders if the
// episode was not recorded by this process
func (r *FITS) path(id string) (string, error) {
	r.mu.Lock()
	fn, ok := r.paths[id]
	r.mu.Unlock()
	if ok {
		return fn, nil
	}
	matches, err := filepath.Glob(filepath.Join(r.Root, "*", r.Prefix+id+".fits"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("%w: no file for episode %s under %s", fault.ErrDataUnavailable, id, r.Root)
	}
	return matches[0], nil
}

// Retrieve reads the episode recorded under id and verifies its checksum
func (r *FITS) Retrieve(id string) (*Table, error) {
	fn, err := r.path(id)
	if err != nil {
		return nil, err
	}
	fid, err := os.Open(fn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrDataUnavailable, err)
	}
	defer fid.Close()
	e, sum, err := readFITS(bufio.NewReader(fid))
	if err != nil {
		return nil, fmt.Errorf("%w: episode %s: %v", fault.ErrDataUnavailable, id, err)
	}
	if got := checksum(e); got != sum {
		return nil, fmt.Errorf("%w: episode %s: checksum %08x does not match header %08x",
			fault.ErrDataUnavailable, id, got, sum)
	}
	return NewTable(id, e), nil
}

func readFITS(rdr *bufio.Reader) (Episode, uint32, error) {
	var e Episode
	fits, err := fitsio.Open(rdr)
	if err != nil {
		return e, 0, err
	}
	defer fits.Close()
	hdu := fits.Get(extName)
	if hdu == nil {
		return e, 0, fmt.Errorf("no %s table", extName)
	}
	tbl, ok := hdu.(*fitsio.Table)
	if !ok {
		return e, 0, fmt.Errorf("%s is not a table", extName)
	}
	card := tbl.Header().Get("DATACRC")
	if card == nil {
		return e, 0, fmt.Errorf("no DATACRC card")
	}
	sum, err := cardUint32(card.Value)
	if err != nil {
		return e, 0, err
	}

	cols := tbl.Cols()
	if len(cols) < 2 || cols[0].Name != timeCol {
		return e, 0, fmt.Errorf("malformed table with %d columns", len(cols))
	}
	for _, c := range cols[1:] {
		e.Columns = append(e.Columns, c.Name)
	}
	rows, err := tbl.Read(0, tbl.NumRows())
	if err != nil {
		return e, 0, err
	}
	defer rows.Close()
	args := make([]interface{}, len(cols))
	vals := make([]float64, len(cols)-1)
	var ns int64
	args[0] = &ns
	for j := range vals {
		args[j+1] = &vals[j]
	}
	for rows.Next() {
		if err = rows.Scan(args...); err != nil {
			return e, 0, err
		}
		e.Times = append(e.Times, time.Unix(0, ns))
		e.Rows = append(e.Rows, append([]float64(nil), vals...))
	}
	return e, sum, rows.Err()
}

func cardUint32(v interface{}) (uint32, error) {
	switch t := v.(type) {
	case int:
		return uint32(t), nil
	case int64:
		return uint32(t), nil
	case float64:
		return uint32(t), nil
	default:
		return 0, fmt.Errorf("DATACRC card holds %T", v)
	}
}
