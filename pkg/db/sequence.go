package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"regexp"
	"strings"
)

// Defining possible error
var SequenceNotExists = errors.New("Sequence folder does not exists")

type NoSequenceError struct {
	Msg string // additional context for the error
}

func (e *NoSequenceError) Error() string {
	return fmt.Sprintf("Sequence error: %s", e.Msg)
}

// folder which host <genome> fasta files (indexed with samtools faidx) and
// <genome>/<genome> blast databases
type SequenceDB struct {
	Dir      string
	BlastDir string
}

func NewSequenceDB(dir, blastDir string) (*SequenceDB, error) {
	var errs []error
	for _, folder := range []string{dir, blastDir} {
		if _, err := os.Stat(folder); os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("%w: %s", SequenceNotExists, folder))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &SequenceDB{Dir: dir, BlastDir: blastDir}, nil
}

var genomeNameRegex = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

func (seqdb *SequenceDB) fastaFor(genome string) (string, error) {
	if !genomeNameRegex.MatchString(genome) || strings.Contains(genome, "..") {
		return "", &NoSequenceError{Msg: fmt.Sprintf("invalid genome %q", genome)}
	}
	return path.Join(seqdb.Dir, genome), nil
}

func (seqdb *SequenceDB) blastDBFor(genome string) (string, error) {
	if !genomeNameRegex.MatchString(genome) || strings.Contains(genome, "..") {
		return "", &NoSequenceError{Msg: fmt.Sprintf("invalid genome %q", genome)}
	}
	return path.Join(seqdb.BlastDir, genome, genome), nil
}

// GetSequences returns FASTA records for seqIDs from the genome's fasta file.
func (seqdb *SequenceDB) GetSequences(ctx context.Context, genome string, seqIDs []string) ([]byte, error) {
	if len(seqIDs) == 0 {
		return nil, &NoSequenceError{Msg: "no sequence ids"}
	}
	fasta, err := seqdb.fastaFor(genome)
	if err != nil {
		return nil, err
	}

	var idBuffer bytes.Buffer
	for _, id := range seqIDs {
		idBuffer.WriteString(id)
		idBuffer.WriteString("\n")
	}

	// cat ids.txt | samtools faidx Homo_sapiens.aa -r -
	cmd := exec.CommandContext(ctx, "samtools", "faidx", fasta, "-r", "-")
	cmd.Stdin = &idBuffer
	output, err := cmd.CombinedOutput()

	if err != nil {
		// Will be print to output (due to stderr.)
		return nil, fmt.Errorf("%w - %s", err, output)
	}

	return output, nil
}

// FindSeqID blasts the FASTA sequence against the genome and returns the
// subject id of the first hit, or "" when nothing hits.
func (seqdb *SequenceDB) FindSeqID(ctx context.Context, genome, inputFasta string) (string, error) {
	blastDB, err := seqdb.blastDBFor(genome)
	if err != nil {
		return "", err
	}
	out, err := runBLASTCommand(ctx, "blastp", blastDB, inputFasta, "-outfmt", "6", "-max_target_seqs", "1")
	if err != nil {
		return "", err
	}
	return firstHitID(out), nil
}

func firstHitID(tabular string) string {
	for _, line := range strings.Split(tabular, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		return strings.TrimPrefix(fields[1], "lcl|")
	}
	return ""
}
