package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/yumyai/roundup/pkg/model"
)

// SearchType controls how FindGeneNames matches the substring.
type SearchType string

const (
	Contains   SearchType = "contains"
	Equals     SearchType = "equals"
	StartsWith SearchType = "starts_with"
	EndsWith   SearchType = "ends_with"
)

var SearchTypes = []SearchType{Contains, Equals, StartsWith, EndsWith}

func ParseSearchType(s string) (SearchType, bool) {
	for _, st := range SearchTypes {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func (st SearchType) Label() string {
	switch st {
	case Contains:
		return "Contains"
	case Equals:
		return "Equals"
	case StartsWith:
		return "Starts with"
	case EndsWith:
		return "Ends with"
	}
	return string(st)
}

// GeneNameHit is one (gene name, genome) pair from a gene name search.
type GeneNameHit struct {
	GeneName string
	Genome   string
}

// RoundupDB is the read side of the orthology catalog: genome sources,
// which pairwise results have been loaded, and gene name annotations.
type RoundupDB struct {
	catalogSQL *sql.DB
}

func NewRoundupDB(db *sql.DB) *RoundupDB {
	return &RoundupDB{catalogSQL: db}
}

// CreateSchema makes the catalog tables. Production catalogs are loaded by
// the dataset pipeline; this is for fresh installs and tests.
func (rdb *RoundupDB) CreateSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS roundup_genomes (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS roundup_results (
			query_db TEXT NOT NULL,
			subject_db TEXT NOT NULL,
			divergence TEXT NOT NULL,
			evalue TEXT NOT NULL,
			PRIMARY KEY (query_db, subject_db, divergence, evalue)
		)`,
		`CREATE TABLE IF NOT EXISTS roundup_sequence (
			external_sequence_id TEXT NOT NULL,
			genome_id INTEGER NOT NULL,
			gene_name TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS roundup_sequence_gene_name ON roundup_sequence (gene_name)`,
	}
	for _, stmt := range stmts {
		if _, err := rdb.catalogSQL.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create catalog schema: %w", err)
		}
	}
	return nil
}

func (rdb *RoundupDB) ListGenomes(ctx context.Context) ([]string, error) {
	rows, err := rdb.catalogSQL.QueryContext(ctx, `SELECT name FROM roundup_genomes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var genomes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		genomes = append(genomes, name)
	}
	return genomes, rows.Err()
}

// MissingParams returns the params whose pairwise results are not loaded.
func (rdb *RoundupDB) MissingParams(ctx context.Context, params []model.Params) ([]model.Params, error) {
	stm, err := rdb.catalogSQL.PrepareContext(ctx, `
		SELECT 1 FROM roundup_results
		WHERE query_db = ? AND subject_db = ? AND divergence = ? AND evalue = ?`)
	if err != nil {
		return nil, err
	}
	defer stm.Close()

	var missing []model.Params
	for _, p := range params {
		var one int
		err := stm.QueryRowContext(ctx, p.QueryDB, p.SubjectDB, string(p.Divergence), string(p.Evalue)).Scan(&one)
		if err == sql.ErrNoRows {
			missing = append(missing, p)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("check loaded result %s: %w", p, err)
		}
	}
	return missing, nil
}

// SeqIDsForGeneName returns the sequence ids in genome annotated with geneName.
func (rdb *RoundupDB) SeqIDsForGeneName(ctx context.Context, geneName, genome string) ([]string, error) {
	stm, err := rdb.catalogSQL.PrepareContext(ctx, `
		SELECT DISTINCT rs.external_sequence_id
		FROM roundup_sequence rs JOIN roundup_genomes rg ON rs.genome_id = rg.id
		WHERE rs.gene_name = ? AND rg.name = ?
		ORDER BY rs.external_sequence_id`)
	if err != nil {
		return nil, err
	}
	defer stm.Close()

	rows, err := stm.QueryContext(ctx, geneName, genome)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FindGeneNames lists (gene name, genome) pairs whose gene name matches substring.
func (rdb *RoundupDB) FindGeneNames(ctx context.Context, substring string, searchType SearchType) ([]GeneNameHit, error) {
	pattern, err := likePattern(substring, searchType)
	if err != nil {
		return nil, err
	}

	rows, err := rdb.catalogSQL.QueryContext(ctx, `
		SELECT DISTINCT rs.gene_name, rg.name
		FROM roundup_sequence rs JOIN roundup_genomes rg ON rs.genome_id = rg.id
		WHERE rs.gene_name LIKE ? ESCAPE '\'
		ORDER BY rg.name, rs.gene_name`, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []GeneNameHit
	for rows.Next() {
		var h GeneNameHit
		if err := rows.Scan(&h.GeneName, &h.Genome); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func likePattern(substring string, searchType SearchType) (string, error) {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(substring)
	switch searchType {
	case Contains:
		return "%" + escaped + "%", nil
	case StartsWith:
		return escaped + "%", nil
	case EndsWith:
		return "%" + escaped, nil
	case Equals:
		return escaped, nil
	}
	return "", fmt.Errorf("unrecognized search type %q", searchType)
}
