package variant

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/luminous-dynamics/hdc/errdefs"
)

// Genotype is the called genotype of the first sample.
type Genotype int

const (
	// GenotypeAbsent means the line carries no sample column.
	GenotypeAbsent Genotype = iota
	GenotypeMissing
	GenotypeHomRef
	GenotypeHet
	GenotypeHomAlt
	// GenotypeOther covers multi-allelic and haploid calls such as 1/2 or 1.
	GenotypeOther
)

var genotypeNames = [...]string{"absent", "missing", "hom_ref", "het", "hom_alt", "other"}

func (g Genotype) String() string {
	if int(g) < len(genotypeNames) {
		return genotypeNames[g]
	}
	return fmt.Sprintf("Genotype(%d)", int(g))
}

// Code is the codebook symbol for the genotype. Missing and absent
// genotypes have no code.
func (g Genotype) Code() (string, bool) {
	switch g {
	case GenotypeHomRef:
		return "0", true
	case GenotypeHet:
		return "1", true
	case GenotypeHomAlt:
		return "2", true
	case GenotypeOther:
		return "3", true
	default:
		return "", false
	}
}

// ParseGenotype parses a sample column. Only the GT subfield (before the
// first ':') is read, and phased calls are treated as unphased.
func ParseGenotype(field string) Genotype {
	gt, _, _ := strings.Cut(field, ":")
	gt = strings.ReplaceAll(gt, "|", "/")
	switch gt {
	case "0/0":
		return GenotypeHomRef
	case "0/1", "1/0":
		return GenotypeHet
	case "1/1":
		return GenotypeHomAlt
	case "./.", ".", "":
		return GenotypeMissing
	default:
		return GenotypeOther
	}
}

// Record is one VCF data line.
type Record struct {
	Chrom    string
	Pos      uint64
	ID       string
	Ref      string
	Alt      []string
	Qual     float64
	HasQual  bool
	Filter   string
	Info     string
	Genotype Genotype

	// Line is the 1-based physical line number in the source.
	Line int
}

// AlleleSymbol returns "ref>alt" with multiple alternates comma-joined.
func (r Record) AlleleSymbol() string {
	return r.Ref + ">" + strings.Join(r.Alt, ",")
}

// Passed reports whether FILTER is PASS.
func (r Record) Passed() bool {
	return r.Filter == "PASS"
}

// ParseRecord parses one tab-separated data line. lineNo is used only for
// error reporting.
func ParseRecord(line string, lineNo int) (Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 8 {
		return Record{}, lineError(lineNo, fmt.Sprintf("expected at least 8 columns, got %d", len(fields)), nil)
	}
	if fields[0] == "" {
		return Record{}, lineError(lineNo, "empty CHROM", nil)
	}
	pos, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil || pos == 0 {
		return Record{}, lineError(lineNo, fmt.Sprintf("invalid POS %q", fields[1]), err)
	}
	if fields[3] == "" || fields[4] == "" {
		return Record{}, lineError(lineNo, "empty REF or ALT", nil)
	}

	rec := Record{
		Chrom:  fields[0],
		Pos:    pos,
		ID:     fields[2],
		Ref:    strings.ToUpper(fields[3]),
		Alt:    strings.Split(strings.ToUpper(fields[4]), ","),
		Filter: fields[6],
		Info:   fields[7],
		Line:   lineNo,
	}
	if q, err := strconv.ParseFloat(fields[5], 64); err == nil {
		rec.Qual, rec.HasQual = q, true
	}
	if len(fields) > 9 {
		rec.Genotype = ParseGenotype(fields[9])
	}
	return rec, nil
}

func lineError(line int, reason string, err error) *errdefs.FormatError {
	return &errdefs.FormatError{Source: "vcf", Line: line, Reason: reason, Err: err}
}

// Reader reads VCF records. Header lines are consumed by NewReader.
type Reader struct {
	br      *bufio.Reader
	line    int
	meta    []string
	samples []string
}

// NewReader consumes the ## meta lines and the #CHROM header. A stream
// that ends or reaches a data line before #CHROM is a FormatError.
func NewReader(r io.Reader) (*Reader, error) {
	vr := &Reader{br: bufio.NewReaderSize(r, 1<<16)}
	for {
		line, err := vr.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, lineError(vr.line, "missing #CHROM header", nil)
			}
			return nil, err
		}
		switch {
		case strings.HasPrefix(line, "##"):
			vr.meta = append(vr.meta, line)
		case strings.HasPrefix(line, "#CHROM"):
			cols := strings.Split(line, "\t")
			if len(cols) < 8 {
				return nil, lineError(vr.line, "header has fewer than 8 columns", nil)
			}
			if len(cols) > 9 {
				vr.samples = cols[9:]
			}
			return vr, nil
		case line == "":
		default:
			return nil, lineError(vr.line, "data line before #CHROM header", nil)
		}
	}
}

// readLine returns the next line without its terminator. The last line
// may lack a newline.
func (r *Reader) readLine() (string, error) {
	s, err := r.br.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || s == "") {
		return "", err
	}
	r.line++
	return strings.TrimRight(s, "\r\n"), nil
}

// Meta returns the ## header lines.
func (r *Reader) Meta() []string { return r.meta }

// Samples returns the sample names from the #CHROM header.
func (r *Reader) Samples() []string { return r.samples }

// Line returns the number of lines consumed so far.
func (r *Reader) Line() int { return r.line }

// Next returns the next record. Blank and comment lines are skipped. A
// malformed line yields a *errdefs.FormatError and the reader stays
// usable; io.EOF marks the end of input.
func (r *Reader) Next() (Record, error) {
	for {
		line, err := r.readLine()
		if err != nil {
			return Record{}, err
		}
		if line == "" || line[0] == '#' {
			continue
		}
		return ParseRecord(line, r.line)
	}
}

// ReadAll reads every record, stopping at the first error.
func (r *Reader) ReadAll() ([]Record, error) {
	var out []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
