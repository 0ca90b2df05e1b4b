package warehouse

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"dwh/internal/schema"
)

// testDialect is a minimal $n-placeholder dialect for exercising the shared
// builders without importing a backend package.
type testDialect struct {
	maxParams int
}

func (testDialect) Name() string                           { return "test" }
func (testDialect) Quote(ident string) string              { return QuoteDouble(ident) }
func (testDialect) ColumnType(t schema.Type) string        { return t.String() }
func (testDialect) IdentityColumn() string                 { return "serial" }
func (testDialect) InformationalKeys() bool                { return true }
func (testDialect) LayoutClause(schema.Layout) string      { return "" }
func (testDialect) DropTable(t string) string              { return "drop " + t }
func (testDialect) TruncateTable(t string) string          { return "truncate " + t }
func (testDialect) IfNull(e, a string) string              { return "ifnull(" + e + "," + a + ")" }
func (testDialect) EpochMillisToTimestamp(e string) string { return "ts(" + e + ")" }
func (testDialect) DatePart(p DatePart, e string) string   { return string(p) + "(" + e + ")" }
func (testDialect) CastInt(e string) string                { return "int(" + e + ")" }
func (testDialect) Placeholder(n int) string               { return "$" + strconv.Itoa(n) }
func (d testDialect) MaxBindParams() int                   { return d.maxParams }
func (testDialect) ObjectStoreCopy() bool                  { return false }
func (testDialect) Classify(error) ErrorKind               { return KindUnknown }

func TestBuildInsertSQL_PlaceholdersAndArgs(t *testing.T) {
	t.Parallel()

	sql, args := BuildInsertSQL(testDialect{maxParams: 100}, "users", []string{"user_id", "level"}, [][]any{
		{int32(1), "free"},
		{int32(2), "paid"},
	})

	wantSQL := `insert into "users" ("user_id", "level") values ($1, $2), ($3, $4)`
	if sql != wantSQL {
		t.Fatalf("sql=%q\nwant %q", sql, wantSQL)
	}
	wantArgs := []any{int32(1), "free", int32(2), "paid"}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Fatalf("args=%v, want %v", args, wantArgs)
	}
}

func TestRowsPerStatement_RespectsBindLimit(t *testing.T) {
	t.Parallel()

	d := testDialect{maxParams: 2000}
	if got := RowsPerStatement(d, 18, 500); got != 111 {
		t.Fatalf("RowsPerStatement(18 cols) = %d, want 111", got)
	}
	if got := RowsPerStatement(d, 2, 500); got != 500 {
		t.Fatalf("RowsPerStatement(2 cols) = %d, want 500", got)
	}
	if got := RowsPerStatement(d, 2, 0); got != DefaultBatchSize {
		t.Fatalf("RowsPerStatement default = %d, want %d", got, DefaultBatchSize)
	}
}

func TestInsertBatches_FlushesInChunks(t *testing.T) {
	t.Parallel()

	var stmts []string
	exec := func(ctx context.Context, query string, args ...any) (int64, error) {
		stmts = append(stmts, query)
		return int64(len(args) / 2), nil
	}

	rows := [][]any{{1, "a"}, {2, "b"}, {3, "c"}, {4, "d"}, {5, "e"}}
	n, err := InsertBatches(context.Background(), testDialect{maxParams: 100}, exec, "t", []string{"id", "v"}, NewSliceSource(rows), 2)
	if err != nil {
		t.Fatalf("InsertBatches: %v", err)
	}
	if n != 5 {
		t.Fatalf("n=%d, want 5", n)
	}
	if len(stmts) != 3 {
		t.Fatalf("statements=%d, want 3 (2+2+1)", len(stmts))
	}
	if !strings.HasSuffix(stmts[2], "values ($1, $2)") {
		t.Fatalf("last statement should hold one row: %q", stmts[2])
	}
}

func TestInsertBatches_StopsOnExecError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	calls := 0
	exec := func(ctx context.Context, query string, args ...any) (int64, error) {
		calls++
		return 0, boom
	}

	_, err := InsertBatches(context.Background(), testDialect{maxParams: 100}, exec, "t", []string{"id"}, NewSliceSource([][]any{{1}, {2}, {3}}), 1)
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want boom", err)
	}
	if calls != 1 {
		t.Fatalf("exec calls=%d, want 1", calls)
	}
}

func TestInsertBatches_RejectsShortRows(t *testing.T) {
	t.Parallel()

	exec := func(ctx context.Context, query string, args ...any) (int64, error) { return 0, nil }
	_, err := InsertBatches(context.Background(), testDialect{maxParams: 100}, exec, "t", []string{"a", "b"}, NewSliceSource([][]any{{1}}), 10)
	if err == nil {
		t.Fatalf("expected error for row/column mismatch")
	}
}

func TestLiteral_EscapesAndUnwrapsPreQuotedValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"s3://udacity-dend/log_data", "'s3://udacity-dend/log_data'"},
		{"'s3://udacity-dend/log_data'", "'s3://udacity-dend/log_data'"},
		{"arn:aws:iam::1:role/o'brien", "'arn:aws:iam::1:role/o''brien'"},
		{"  'auto'  ", "'auto'"},
		{"'", "''''"},
	}
	for _, tt := range tests {
		if got := Literal(tt.in); got != tt.want {
			t.Errorf("Literal(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCreateStatements_DropThenCreateCoversCatalog(t *testing.T) {
	t.Parallel()

	d := testDialect{}
	drops := DropStatements(d)
	creates := CreateStatements(d)
	if len(drops) != 7 || len(creates) != 7 {
		t.Fatalf("drops=%d creates=%d, want 7 each", len(drops), len(creates))
	}
	if creates[0].Name != "create_staging_events" || drops[6].Name != "drop_time" {
		t.Fatalf("unexpected statement names: %s, %s", creates[0].Name, drops[6].Name)
	}
}

func TestRegister_PanicsOnDuplicateKind(t *testing.T) {
	Register("test-dup", Backend{Dialect: testDialect{}, Open: func(context.Context, ConnParams) (Session, error) { return nil, nil }})

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	Register("test-dup", Backend{Dialect: testDialect{}, Open: func(context.Context, ConnParams) (Session, error) { return nil, nil }})
}

func TestLookup_UnknownKind(t *testing.T) {
	t.Parallel()

	if _, err := Lookup("oracle"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, err := Lookup(""); err == nil {
		t.Fatalf("expected error for empty kind")
	}
}
