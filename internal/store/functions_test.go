package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"

	"funcreg/internal/models"
)

func insertTestRow(t *testing.T, st *Store, functionID, version, typ, owner string) *models.FunctionRow {
	t.Helper()
	row := &models.FunctionRow{
		FunctionID: functionID,
		Version:    version,
		Type:       typ,
		Owner:      owner,
		BlobID:     fmt.Sprintf("%s-%s-%s-%s", functionID, version, typ, owner),
		Outputs:    []string{"result"},
	}
	if err := st.InsertFunctionRow(context.Background(), row); err != nil {
		t.Fatalf("insert row %s/%s/%s: %v", functionID, version, typ, err)
	}
	return row
}

func TestInsertAndGetFunctionRow(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	first := insertTestRow(t, st, "f1", "1.0", "python", "admin")
	second := insertTestRow(t, st, "f1", "1.0", "js", "admin")
	if second.RecordID <= first.RecordID {
		t.Fatalf("expected increasing record ids, got %d then %d", first.RecordID, second.RecordID)
	}

	got, err := st.GetFunctionRow(ctx, "f1", "1.0", "python", "admin")
	if err != nil {
		t.Fatalf("get row: %v", err)
	}
	if got == nil || got.BlobID != first.BlobID {
		t.Fatalf("unexpected row: %+v", got)
	}
	if len(got.Outputs) != 1 || got.Outputs[0] != "result" {
		t.Fatalf("unexpected outputs %v", got.Outputs)
	}

	other, err := st.GetFunctionRow(ctx, "f1", "1.0", "python", "someone-else")
	if err != nil {
		t.Fatalf("get other owner: %v", err)
	}
	if other != nil {
		t.Fatal("expected rows to be owner scoped")
	}

	rows, err := st.ListFunctionRows(ctx, "f1", "1.0", "admin")
	if err != nil {
		t.Fatalf("list rows: %v", err)
	}
	if len(rows) != 2 || rows[0].Type != "python" || rows[1].Type != "js" {
		t.Fatalf("expected rows in insertion order, got %+v", rows)
	}
}

func TestInsertFunctionRowDuplicate(t *testing.T) {
	st := testStore(t)
	insertTestRow(t, st, "f1", "1.0", "python", "admin")

	dup := &models.FunctionRow{FunctionID: "f1", Version: "1.0", Type: "python", Owner: "admin", BlobID: "another"}
	err := st.InsertFunctionRow(context.Background(), dup)
	if !errors.Is(err, ErrDuplicateFunctionRow) {
		t.Fatalf("expected ErrDuplicateFunctionRow, got %v", err)
	}
}

func TestFunctionVersionExists(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	insertTestRow(t, st, "f1", "1.0", "python", "admin")

	exists, err := st.FunctionVersionExists(ctx, "f1", "1.0", "admin")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("expected version to exist")
	}
	exists, err = st.FunctionVersionExists(ctx, "f1", "2.0", "admin")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatal("expected version 2.0 to be absent")
	}
}

func TestUpdateFunctionRow(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	row := insertTestRow(t, st, "f1", "1.0", "python", "admin")
	later := row.UpdatedAt.Add(time.Minute)

	if err := st.UpdateFunctionRowBlob(ctx, row.RecordID, "new-blob", []string{"a", "b"}, later); err != nil {
		t.Fatalf("update blob: %v", err)
	}
	got, err := st.GetFunctionRow(ctx, "f1", "1.0", "python", "admin")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.BlobID != "new-blob" || len(got.Outputs) != 2 {
		t.Fatalf("unexpected row after blob update: %+v", got)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Fatalf("expected updated_at %v, got %v", later, got.UpdatedAt)
	}

	if err := st.UpdateFunctionRowOutputs(ctx, row.RecordID, []string{"c"}, later.Add(time.Minute)); err != nil {
		t.Fatalf("update outputs: %v", err)
	}
	got, err = st.GetFunctionRow(ctx, "f1", "1.0", "python", "admin")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Outputs) != 1 || got.Outputs[0] != "c" || got.BlobID != "new-blob" {
		t.Fatalf("unexpected row after outputs update: %+v", got)
	}

	if err := st.UpdateFunctionRowOutputs(ctx, 9999, []string{"x"}, later); err == nil {
		t.Fatal("expected error updating a missing row")
	}
}

func TestDeleteFunctionRow(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	row := insertTestRow(t, st, "f1", "1.0", "python", "admin")

	deleted, err := st.DeleteFunctionRow(ctx, row.RecordID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Fatal("expected row to be deleted")
	}
	deleted, err = st.DeleteFunctionRow(ctx, row.RecordID)
	if err != nil {
		t.Fatalf("delete again: %v", err)
	}
	if deleted {
		t.Fatal("expected second delete to be a no-op")
	}
}

func TestLatestFunctionVersionIsLexicographic(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	insertTestRow(t, st, "f1", "9.0", "python", "admin")
	insertTestRow(t, st, "f1", "10.0", "python", "admin")
	insertTestRow(t, st, "f1", "1.5", "python", "admin")

	latest, ok, err := st.LatestFunctionVersion(ctx, "f1", "admin")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !ok || latest != "9.0" {
		t.Fatalf("expected lexicographic latest 9.0, got %q (ok=%v)", latest, ok)
	}

	_, ok, err = st.LatestFunctionVersion(ctx, "missing", "admin")
	if err != nil {
		t.Fatalf("latest missing: %v", err)
	}
	if ok {
		t.Fatal("expected no version for missing function")
	}

	versions, err := st.ListFunctionVersions(ctx, "f1", "admin")
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	want := []string{"9.0", "10.0", "1.5"}
	if len(versions) != len(want) {
		t.Fatalf("expected %v, got %v", want, versions)
	}
	for i := range want {
		if versions[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, versions)
		}
	}
}

func TestListFunctionIDsGroupsByFunction(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	insertTestRow(t, st, "f2", "1.0", "A", "admin")
	insertTestRow(t, st, "f1", "1.0", "A", "admin")
	insertTestRow(t, st, "f1", "1.0", "B", "admin")

	total, err := st.CountFunctionIDs(ctx, "")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 distinct functions, got %d", total)
	}

	ids, err := st.ListFunctionIDs(ctx, FunctionListFilter{Limit: 1})
	if err != nil {
		t.Fatalf("list ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != "f1" {
		t.Fatalf("expected lowest id first, got %v", ids)
	}

	ids, err = st.ListFunctionIDs(ctx, FunctionListFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list ids page 2: %v", err)
	}
	if len(ids) != 1 || ids[0] != "f2" {
		t.Fatalf("expected f2 on second page, got %v", ids)
	}

	grouped, err := st.ListLatestFunctionRows(ctx, []string{"f1"})
	if err != nil {
		t.Fatalf("latest rows: %v", err)
	}
	if len(grouped["f1"]) != 2 {
		t.Fatalf("expected both types of f1, got %+v", grouped["f1"])
	}
	if grouped["f1"][0].Type != "A" || grouped["f1"][1].Type != "B" {
		t.Fatalf("expected types in insertion order, got %+v", grouped["f1"])
	}
}

func TestListFunctionIDsPartialIsCaseInsensitive(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	insertTestRow(t, st, "ResizeImage", "1.0", "A", "admin")
	insertTestRow(t, st, "resize-video", "1.0", "A", "admin")
	insertTestRow(t, st, "thumbnail", "1.0", "A", "admin")
	insertTestRow(t, st, "a.b", "1.0", "A", "admin")

	total, err := st.CountFunctionIDs(ctx, "RESIZE")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 matches, got %d", total)
	}

	ids, err := st.ListFunctionIDs(ctx, FunctionListFilter{IDPartial: ".", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 1 || ids[0] != "a.b" {
		t.Fatalf("expected literal match on '.', got %v", ids)
	}
}

func TestListLatestFunctionRowsUsesLatestVersion(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	insertTestRow(t, st, "f1", "2.0", "A", "admin")
	insertTestRow(t, st, "f1", "1.0", "A", "admin")
	insertTestRow(t, st, "f1", "1.0", "B", "admin")

	grouped, err := st.ListLatestFunctionRows(ctx, []string{"f1"})
	if err != nil {
		t.Fatalf("latest rows: %v", err)
	}
	rows := grouped["f1"]
	if len(rows) != 1 || rows[0].Version != "2.0" || rows[0].Type != "A" {
		t.Fatalf("expected only the 2.0 row, got %+v", rows)
	}
}

func TestListLatestFunctionRowsGroupsOwnersByID(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	insertTestRow(t, st, "shared", "1.0", "A", "alice")
	insertTestRow(t, st, "shared", "2.0", "B", "bob")

	ids, err := st.ListFunctionIDs(ctx, FunctionListFilter{Limit: 10})
	if err != nil {
		t.Fatalf("list ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != "shared" {
		t.Fatalf("expected one id across owners, got %v", ids)
	}

	grouped, err := st.ListLatestFunctionRows(ctx, ids)
	if err != nil {
		t.Fatalf("latest rows: %v", err)
	}
	rows := grouped["shared"]
	if len(rows) != 1 || rows[0].Version != "2.0" || rows[0].Owner != "bob" {
		t.Fatalf("expected bob's 2.0 row to represent the id, got %+v", rows)
	}
}

func TestListFunctionIDsPagesNeverSplitFunctions(t *testing.T) {
	dir := t.TempDir()
	run := 0
	rapid.Check(t, func(rt *rapid.T) {
		run++
		st, err := Open(filepath.Join(dir, fmt.Sprintf("prop-%d.db", run)))
		if err != nil {
			rt.Fatalf("open: %v", err)
		}
		defer st.Close()
		ctx := context.Background()

		functionCount := rapid.IntRange(1, 6).Draw(rt, "functions")
		for i := 0; i < functionCount; i++ {
			types := rapid.IntRange(1, 3).Draw(rt, fmt.Sprintf("types-%d", i))
			for j := 0; j < types; j++ {
				row := &models.FunctionRow{
					FunctionID: fmt.Sprintf("fn-%d", i),
					Version:    "1.0",
					Type:       fmt.Sprintf("t%d", j),
					Owner:      "admin",
					BlobID:     fmt.Sprintf("blob-%d-%d", i, j),
					Outputs:    []string{"out"},
				}
				if err := st.InsertFunctionRow(ctx, row); err != nil {
					rt.Fatalf("insert: %v", err)
				}
			}
		}

		total, err := st.CountFunctionIDs(ctx, "")
		if err != nil {
			rt.Fatalf("count: %v", err)
		}
		if total != functionCount {
			rt.Fatalf("expected total %d, got %d", functionCount, total)
		}

		limit := rapid.IntRange(1, 4).Draw(rt, "limit")
		seen := map[string]int{}
		for offset := 0; offset < total; offset += limit {
			ids, err := st.ListFunctionIDs(ctx, FunctionListFilter{Limit: limit, Offset: offset})
			if err != nil {
				rt.Fatalf("list ids: %v", err)
			}
			for _, id := range ids {
				seen[id]++
			}
		}
		if len(seen) != functionCount {
			rt.Fatalf("expected every function on exactly one page, saw %v", seen)
		}
		for id, n := range seen {
			if n != 1 {
				rt.Fatalf("function %s appeared on %d pages", id, n)
			}
		}
	})
}
