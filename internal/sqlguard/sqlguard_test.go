package sqlguard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querycraft/querycraft/internal/qerr"
)

func TestVet_PrefixMode(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain select", "SELECT Name FROM Artist;", "SELECT Name FROM Artist;", false},
		{"lowercase select", "select 1", "select 1;", false},
		{"leading whitespace", "  \n\tSELECT 1;", "SELECT 1;", false},
		{"repeated terminators", "SELECT 1;;; ", "SELECT 1;", false},
		{"terminators with spaces", "SELECT 1 ; ;", "SELECT 1;", false},
		{"delete", "DELETE FROM Artist;", "", true},
		{"drop", "DROP TABLE Artist;", "", true},
		{"update", "UPDATE Artist SET Name = 'x';", "", true},
		{"insert", "INSERT INTO Artist VALUES (1, 'x');", "", true},
		{"pragma", "PRAGMA table_info(Artist);", "", true},
		{"with clause", "WITH a AS (SELECT 1) SELECT * FROM a;", "", true},
		{"chatty prefix", "Sure! SELECT COUNT(*) FROM Artist;", "", true},
		{"empty", "", "", true},
		{"terminator only", ";", "", true},
	}

	gate := New(ModePrefix)
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			vetted, err := gate.Vet(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, qerr.Is(err, qerr.RejectedQuery))
				assert.Equal(t, ReasonReadOnly, err.Error())
				assert.True(t, vetted.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, vetted.String())
		})
	}
}

func TestVet_PrefixModeIsLimitedToTheLeadingKeyword(t *testing.T) {
	t.Parallel()

	vetted, err := New(ModePrefix).Vet("SELECT 1; DROP TABLE Artist")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1; DROP TABLE Artist;", vetted.String())
}

func TestVet_ExactlyOneTerminatorAndIdempotent(t *testing.T) {
	t.Parallel()

	gate := New(ModePrefix)
	for _, input := range []string{"SELECT 1", "SELECT 1;", "SELECT 1;;", "  SELECT 1 ;\n"} {
		first, err := gate.Vet(input)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(first.String(), ";"))
		assert.False(t, strings.HasSuffix(first.String(), ";;"))
		assert.Equal(t, 1, strings.Count(first.String(), ";"))

		second, err := gate.Vet(first.String())
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestVet_StrictMode(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		input      string
		wantReason string
	}{
		{"plain read", "SELECT Name FROM Artist WHERE Name = 'AC/DC';", ""},
		{"keyword inside literal", "SELECT * FROM Track WHERE Name = 'Drop it; delete';", ""},
		{"quoted identifier", `SELECT "Update" FROM Artist;`, ""},
		{"chained statement", "SELECT 1; DROP TABLE Artist;", "multiple statements are not allowed"},
		{"line comment", "SELECT 1 -- hidden", "comments are not allowed"},
		{"block comment", "SELECT /* x */ 1", "comments are not allowed"},
		{"select into", "SELECT * INTO backup FROM Artist", "keyword INTO is not allowed"},
		{"pragma function", "SELECT * FROM pragma_table_info('Artist')", ""},
		{"lowercase delete", "select 1 where exists (delete from a)", "keyword DELETE is not allowed"},
		{"unterminated literal", "SELECT 'abc", "statement could not be tokenized: unterminated quoted text"},
		{"non select", "VACUUM", ReasonReadOnly},
		{"replace function", "SELECT REPLACE(Name, 'a', 'b') FROM Artist;", ""},
		{"replace statement", "SELECT 1 WHERE EXISTS (REPLACE INTO Artist VALUES (1, 'x'))", "keyword REPLACE is not allowed"},
	}

	gate := New(ModeStrict)
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			vetted, err := gate.Vet(tc.input)
			if tc.wantReason == "" {
				require.NoError(t, err)
				assert.True(t, strings.HasSuffix(vetted.String(), ";"))
				return
			}
			require.Error(t, err)
			assert.Equal(t, qerr.RejectedQuery, qerr.KindOf(err))
			assert.Equal(t, tc.wantReason, err.Error())
		})
	}
}

func TestVet_RejectHook(t *testing.T) {
	t.Parallel()

	var modes []Mode
	gate := New(ModeStrict, WithRejectHook(func(mode Mode, _ string) { modes = append(modes, mode) }))

	_, err := gate.Vet("DELETE FROM Artist")
	require.Error(t, err)
	_, err = gate.Vet("SELECT 1")
	require.NoError(t, err)

	assert.Equal(t, []Mode{ModeStrict}, modes)
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	mode, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModePrefix, mode)

	mode, err = ParseMode(" STRICT ")
	require.NoError(t, err)
	assert.Equal(t, ModeStrict, mode)

	_, err = ParseMode("paranoid")
	require.Error(t, err)
}

func TestSingleStatement(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input string
		want  bool
	}{
		{"SELECT 1;", true},
		{"SELECT 1", true},
		{"SELECT 1;;", true},
		{"SELECT 1; -- trailing note", true},
		{"SELECT 'a;b' FROM Artist;", true},
		{`SELECT "x;y" FROM Artist;`, true},
		{"SELECT 1; SELECT 2;", false},
		{"SELECT 1; ATTACH DATABASE 'side.db' AS side;", false},
		{"SELECT 1 /* ; */;", true},
		{"SELECT 'abc; DROP TABLE Artist", false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, SingleStatement(tc.input))
		})
	}
}
