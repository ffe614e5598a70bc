package stats

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"hnp-sim/internal/trial"
)

// Entry is one archived trial: <root>/<Name>/pcap_<timestamp>/.
type Entry struct {
	Name       string
	Dir        string
	CaptureDir string
	Files      []string
	Config     trial.Config
}

// Discover lists every trial directory under root. A trial with several capture
// directories uses the newest (last by name). Entries are sorted by name, then
// stably by sensitivity from least to most negative.
func Discover(root string) ([]Entry, error) {
	dirs, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		dir := filepath.Join(root, d.Name())
		capDir, err := captureDir(dir)
		if err != nil {
			return nil, err
		}
		cfg, err := trial.ParseName(d.Name())
		if err != nil {
			return nil, fmt.Errorf("corpus entry %s: %w", dir, err)
		}
		files, err := listFiles(capDir)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{Name: d.Name(), Dir: dir, CaptureDir: capDir, Files: files, Config: cfg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Config.Sensitivity > out[j].Config.Sensitivity })
	return out, nil
}

func captureDir(dir string) (string, error) {
	subs, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var found string
	for _, s := range subs {
		if s.IsDir() && strings.Contains(s.Name(), "pcap") {
			found = s.Name()
		}
	}
	if found == "" {
		return "", fmt.Errorf("corpus entry %s: no pcap directory", dir)
	}
	return filepath.Join(dir, found), nil
}

func listFiles(dir string) ([]string, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, it := range items {
		if !it.IsDir() {
			out = append(out, filepath.Join(dir, it.Name()))
		}
	}
	return out, nil
}
