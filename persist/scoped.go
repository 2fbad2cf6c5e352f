package persist

import "github.com/spf13/afero"

// SaveEntries is the prefix-scoped counterpart to Save: it writes only
// entries whose name has the given prefix. The file at path is replaced
// as a whole, so afterwards it holds only those entries; entries already
// in the file are not merged in.
func SaveEntries(fs afero.Fs, path, prefix string, entries []Entry) error {
	var filtered []Entry
	for _, e := range entries {
		if hasPrefix(e.Name, prefix) {
			filtered = append(filtered, e)
		}
	}
	return Save(fs, path, filtered)
}

// LoadEntries is the prefix-scoped counterpart to Load: entries not under
// prefix are parsed (so a malformed line still reports through warn with
// the right line number) but dropped from the result.
func LoadEntries(fs afero.Fs, path, prefix string, warn WarnFunc) ([]Entry, error) {
	all, err := Load(fs, path, warn)
	if err != nil {
		return nil, err
	}
	var filtered []Entry
	for _, e := range all {
		if hasPrefix(e.Name, prefix) {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
