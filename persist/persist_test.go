package persist

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowcore/nettable/value"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	entries := []Entry{
		{Name: "bool/a", Value: value.NewBoolean(true, 0)},
		{Name: "double/big", Value: value.NewDouble(1.3e8, 0)},
		{Name: "string/s", Value: value.NewString("hello=\"world\"\n", 0)},
		{Name: "raw/r", Value: value.NewRaw([]byte{0, 1, 2, 255}, 0)},
		{Name: "arr/b", Value: value.NewBooleanArray([]bool{true, false, true}, 0)},
		{Name: "arr/d", Value: value.NewDoubleArray([]float64{1, 2.5, -3}, 0)},
		{Name: "arr/s", Value: value.NewStringArray([]string{"a", "b,c", "d\"e"}, 0)},
	}

	require.NoError(t, Save(fs, "/nt.ini", entries))

	var warnings []string
	loaded, err := Load(fs, "/nt.ini", func(line int, msg string) {
		warnings = append(warnings, msg)
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, loaded, len(entries))

	byName := map[string]Entry{}
	for _, e := range loaded {
		byName[e.Name] = e
	}
	for _, want := range entries {
		got, ok := byName[want.Name]
		require.True(t, ok, "missing %s", want.Name)
		assert.True(t, value.Equal(got.Value, want.Value), "mismatch for %s", want.Name)
	}
}

func TestSaveByteExact(t *testing.T) {
	fs := afero.NewMemMapFs()
	entries := []Entry{
		{Name: "double/big", Value: value.NewDouble(1.3e8, 0)},
		{Name: "bool/a", Value: value.NewBoolean(true, 0)},
	}
	require.NoError(t, Save(fs, "/nt.ini", entries))

	data, err := afero.ReadFile(fs, "/nt.ini")
	require.NoError(t, err)

	expected := Header + "\n" +
		`boolean "bool/a"=true` + "\n" +
		`double "double/big"=1.3e+08` + "\n"
	assert.Equal(t, expected, string(data))
}

func TestLoadTolerantOfGarbage(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := Header + "\n" +
		"; a comment\n" +
		"\n" +
		`boolean "ok"=true` + "\n" +
		"not a valid line\n" +
		`double "n"=3.5` + "\n"
	require.NoError(t, afero.WriteFile(fs, "/nt.ini", []byte(content), 0644))

	var warnings int
	loaded, err := Load(fs, "/nt.ini", func(line int, msg string) { warnings++ })
	require.NoError(t, err)
	assert.Equal(t, 1, warnings)
	require.Len(t, loaded, 2)
}

func TestLoadMissingHeaderAborts(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/nt.ini", []byte(`boolean "ok"=true`+"\n"), 0644))
	_, err := Load(fs, "/nt.ini", func(int, string) {})
	assert.Error(t, err)
}

func TestSaveReplacesAtomically(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, Save(fs, "/nt.ini", []Entry{{Name: "a", Value: value.NewBoolean(true, 0)}}))
	require.NoError(t, Save(fs, "/nt.ini", []Entry{{Name: "b", Value: value.NewBoolean(false, 0)}}))

	exists, _ := afero.Exists(fs, "/nt.ini.bak")
	assert.True(t, exists)

	loaded, err := Load(fs, "/nt.ini", func(int, string) {})
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "b", loaded[0].Name)
}
