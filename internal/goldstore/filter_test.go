package goldstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterClauseEmpty(t *testing.T) {
	t.Parallel()

	clause, args, err := Filter{}.Clause()
	require.NoError(t, err)
	require.Empty(t, clause)
	require.Empty(t, args)
}

func TestFilterClauseAnd(t *testing.T) {
	t.Parallel()

	f := Filter{
		Mode: ModeAnd,
		Conditions: []Condition{
			AuthorIs("Bob"),
			HasTag("python"),
		},
	}
	clause, args, err := f.Clause()
	require.NoError(t, err)
	require.Equal(t, "author = ? AND tags LIKE ?", clause)
	require.Equal(t, []any{"Bob", `%"python"%`}, args)
}

func TestFilterClauseOr(t *testing.T) {
	t.Parallel()

	f := Filter{
		Mode: ModeOr,
		Conditions: []Condition{
			AuthorIs("Bob"),
			AuthorIs("Julian"),
		},
	}
	clause, args, err := f.Clause()
	require.NoError(t, err)
	require.Equal(t, "author = ? OR author = ?", clause)
	require.Len(t, args, 2)
}

func TestFilterClauseDefaultsToAnd(t *testing.T) {
	t.Parallel()

	clause, _, err := Filter{Conditions: []Condition{AuthorIs("Bob"), HasTag("go")}}.Clause()
	require.NoError(t, err)
	require.Contains(t, clause, " AND ")
}

func TestFilterClauseRejectsBadColumn(t *testing.T) {
	t.Parallel()

	f := Filter{Conditions: []Condition{{Column: "author; --", Op: OpEq, Value: "x"}}}
	_, _, err := f.Clause()
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid filter column")
}

func TestFilterClauseRejectsBadOperator(t *testing.T) {
	t.Parallel()

	f := Filter{Conditions: []Condition{{Column: "author", Op: Op(">="), Value: "x"}}}
	_, _, err := f.Clause()
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid filter operator")
}

func TestFilterClauseRejectsBadMode(t *testing.T) {
	t.Parallel()

	f := Filter{Mode: Mode("NOT"), Conditions: []Condition{AuthorIs("Bob")}}
	_, _, err := f.Clause()
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid filter mode")
}
