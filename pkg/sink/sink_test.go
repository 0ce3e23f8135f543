package sink

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	herrors "harvester/pkg/errors"
	"harvester/pkg/logger"
	"harvester/pkg/models"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVHeaderWrittenOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "master_list.csv")
	s := NewCSV(path, logger.NewNopLogger())
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, []models.Record{
		{NaturalKey: "13", Name: "CATAN", Year: "1995", Kind: models.KindItem},
	}))
	require.NoError(t, s.Append(ctx, []models.Record{
		{NaturalKey: "926", Name: "CATAN: Seafarers", Year: "1997", Kind: models.KindVariant},
		{NaturalKey: "", Name: "Untitled, \"draft\"", Year: "", Kind: models.KindItem},
	}))

	// a fresh sink on the same file must not repeat the header
	require.NoError(t, NewCSV(path, logger.NewNopLogger()).Append(ctx, []models.Record{
		{NaturalKey: "13", Name: "CATAN", Year: "1995", Kind: models.KindItem},
	}))

	assert.Equal(t, [][]string{
		{"natural_key", "name", "year", "kind"},
		{"13", "CATAN", "1995", "item"},
		{"926", "CATAN: Seafarers", "1997", "variant"},
		{"", "Untitled, \"draft\"", "", "item"},
		{"13", "CATAN", "1995", "item"},
	}, readCSV(t, path))
}

func TestCSVEmptyAppendCreatesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master_list.csv")
	s := NewCSV(path, logger.NewNopLogger())

	require.NoError(t, s.Append(context.Background(), nil))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCSVHeaderAddedToEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master_list.csv")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	require.NoError(t, NewCSV(path, logger.NewNopLogger()).Append(context.Background(), []models.Record{
		{NaturalKey: "1", Name: "Die Macher", Year: "1986", Kind: models.KindItem},
	}))

	rows := readCSV(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, models.Columns, rows[0])
}

func TestCSVKeepsExistingRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master_list.csv")
	require.NoError(t, os.WriteFile(path, []byte("natural_key,name,year,kind\n1,Die Macher,1986,item\n"), 0644))

	require.NoError(t, NewCSV(path, logger.NewNopLogger()).Append(context.Background(), []models.Record{
		{NaturalKey: "2", Name: "Dragonmaster", Year: "1981", Kind: models.KindItem},
	}))

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, "Die Macher", rows[1][1])
	assert.Equal(t, "Dragonmaster", rows[2][1])
}

func TestCSVStartsNewLineAfterPartialRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master_list.csv")
	require.NoError(t, os.WriteFile(path, []byte("natural_key,name,year,kind\n13,CAT"), 0644))

	tl := logger.NewTestLogger()
	require.NoError(t, NewCSV(path, tl).Append(context.Background(), []models.Record{
		{NaturalKey: "926", Name: "CATAN: Seafarers", Year: "1997", Kind: models.KindVariant},
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "natural_key,name,year,kind\n13,CAT\n926,CATAN: Seafarers,1997,variant\n", string(data))
	assert.True(t, tl.HasMessage("Output file ends mid-row, starting a new line"))
}

func TestCSVWriteFailureIsLocalIO(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	s := NewCSV(filepath.Join(blocker, "master_list.csv"), logger.NewNopLogger())
	err := s.Append(context.Background(), []models.Record{{Name: "x", Kind: models.KindItem}})
	require.Error(t, err)
	assert.True(t, herrors.Is(err, herrors.ErrorTypeLocalIO))
}

func TestQuoteTable(t *testing.T) {
	assert.Equal(t, `"harvested_records"`, quoteTable("harvested_records"))
	assert.Equal(t, `"catalog"."records"`, quoteTable("catalog.records"))
	assert.Equal(t, `"bad""name"`, quoteTable(`bad"name`))
}

func TestPostgresAppend(t *testing.T) {
	dsn := os.Getenv("HARVESTER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("HARVESTER_TEST_PG_DSN not set")
	}
	ctx := context.Background()

	s, err := OpenPostgres(ctx, dsn, "harvester_test_records", logger.NewNopLogger())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.pool.Exec(ctx, `TRUNCATE `+s.table)
	require.NoError(t, err)

	records := []models.Record{
		{NaturalKey: "13", Name: "CATAN", Year: "1995", Kind: models.KindItem},
		{NaturalKey: "13", Name: "CATAN", Year: "1995", Kind: models.KindItem},
	}
	require.NoError(t, s.Append(ctx, records))

	var n int
	require.NoError(t, s.pool.QueryRow(ctx, `SELECT count(*) FROM `+s.table).Scan(&n))
	assert.Equal(t, 2, n, "the table is a log, duplicates are kept")
}
