package db

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/yumyai/roundup/pkg/model"

	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *RoundupDB {
	t.Helper()
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { sqldb.Close() })

	rdb := NewRoundupDB(sqldb)
	ctx := context.Background()
	if err := rdb.CreateSchema(ctx); err != nil {
		t.Fatalf("CreateSchema() error = %v", err)
	}

	fixtures := []string{
		`INSERT INTO roundup_genomes (id, name) VALUES (1, 'Homo_sapiens.aa'), (2, 'Mus_musculus.aa'), (3, 'Danio_rerio.aa')`,
		`INSERT INTO roundup_results VALUES ('Homo_sapiens.aa', 'Mus_musculus.aa', '0.2', '1e-20')`,
		`INSERT INTO roundup_sequence VALUES ('NP_000537', 1, 'TP53'), ('NP_001119584', 1, 'TP53'),
			('NP_035770', 2, 'Trp53'), ('NP_001001', 1, 'TP53BP1'), ('NP_5', 3, 'tp53')`,
	}
	for _, stmt := range fixtures {
		if _, err := sqldb.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("fixture: %v", err)
		}
	}
	return rdb
}

func TestListGenomes(t *testing.T) {
	rdb := newTestDB(t)
	got, err := rdb.ListGenomes(context.Background())
	if err != nil {
		t.Fatalf("ListGenomes() error = %v", err)
	}
	want := []string{"Danio_rerio.aa", "Homo_sapiens.aa", "Mus_musculus.aa"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ListGenomes() = %v, want %v", got, want)
	}
}

func TestMissingParams(t *testing.T) {
	rdb := newTestDB(t)
	loaded := model.Params{QueryDB: "Homo_sapiens.aa", SubjectDB: "Mus_musculus.aa", Divergence: "0.2", Evalue: "1e-20"}
	notLoaded := model.Params{QueryDB: "Danio_rerio.aa", SubjectDB: "Homo_sapiens.aa", Divergence: "0.2", Evalue: "1e-20"}
	otherDiv := loaded
	otherDiv.Divergence = "0.5"

	missing, err := rdb.MissingParams(context.Background(), []model.Params{loaded, notLoaded, otherDiv})
	if err != nil {
		t.Fatalf("MissingParams() error = %v", err)
	}
	want := []model.Params{notLoaded, otherDiv}
	if !reflect.DeepEqual(missing, want) {
		t.Errorf("MissingParams() = %v, want %v", missing, want)
	}
}

func TestSeqIDsForGeneName(t *testing.T) {
	rdb := newTestDB(t)
	ctx := context.Background()

	got, err := rdb.SeqIDsForGeneName(ctx, "TP53", "Homo_sapiens.aa")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"NP_000537", "NP_001119584"}) {
		t.Errorf("SeqIDsForGeneName() = %v", got)
	}

	got, err = rdb.SeqIDsForGeneName(ctx, "TP53", "Mus_musculus.aa")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no ids in mouse, got %v", got)
	}
}

func TestFindGeneNames(t *testing.T) {
	rdb := newTestDB(t)
	ctx := context.Background()

	tests := []struct {
		substring  string
		searchType SearchType
		want       int
	}{
		{"TP53", Equals, 2},
		{"53", EndsWith, 3},
		{"TP53", StartsWith, 3},
		{"p53", Contains, 4},
		{"%", Contains, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.searchType)+"_"+tt.substring, func(t *testing.T) {
			hits, err := rdb.FindGeneNames(ctx, tt.substring, tt.searchType)
			if err != nil {
				t.Fatalf("FindGeneNames() error = %v", err)
			}
			if len(hits) != tt.want {
				t.Errorf("FindGeneNames(%q, %s) = %v, want %d hits", tt.substring, tt.searchType, hits, tt.want)
			}
		})
	}

	if _, err := rdb.FindGeneNames(ctx, "x", SearchType("fuzzy")); err == nil {
		t.Error("unknown search type should fail")
	}
}

func TestGenomeCatalogReloadsAfterRefresh(t *testing.T) {
	calls := 0
	catalog := NewGenomeCatalog(func(context.Context) ([]string, error) {
		calls++
		return []string{"Homo_sapiens.aa"}, nil
	}, time.Hour)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := catalog.Genomes(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Errorf("loader called %d times, want 1", calls)
	}

	catalog.Refresh()
	if _, err := catalog.Genomes(ctx); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("loader called %d times after Refresh, want 2", calls)
	}
}

func TestGenomeCatalogDoesNotCacheErrors(t *testing.T) {
	fail := true
	catalog := NewGenomeCatalog(func(context.Context) ([]string, error) {
		if fail {
			return nil, errors.New("db down")
		}
		return []string{"a"}, nil
	}, time.Hour)

	if _, err := catalog.Genomes(context.Background()); err == nil {
		t.Fatal("expected loader error")
	}
	fail = false
	got, err := catalog.Genomes(context.Background())
	if err != nil || len(got) != 1 {
		t.Errorf("Genomes() = %v, %v", got, err)
	}
}

func TestStaticGenomeCatalogIsSorted(t *testing.T) {
	got, err := StaticGenomeCatalog([]string{"b", "a"}).Genomes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Genomes() = %v", got)
	}
}
