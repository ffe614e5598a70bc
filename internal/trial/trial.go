// Package trial owns the contract between a trial's parameters and the config file
// that names it: the file name embeds n, t, s, x and p, and the file body declares
// the ping counts used as the theoretical reply maximum.
package trial

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ErrTooFewParams is matched by every *ParamCountError.
var ErrTooFewParams = errors.New("config name holds fewer than five numeric parameters")

// ParamCountError reports a config name without the five positional parameters.
type ParamCountError struct {
	Name  string
	Found int
}

func (e *ParamCountError) Error() string {
	return fmt.Sprintf("%s: found %d numeric parameters, want 5", e.Name, e.Found)
}

func (e *ParamCountError) Is(target error) bool { return target == ErrTooFewParams }

// Config identifies one trial.
type Config struct {
	Nodes       float64 `json:"n"`
	Duration    float64 `json:"t"`
	Sensitivity float64 `json:"s"`
	Scale       float64 `json:"x"`
	Ping        float64 `json:"p"`
}

var numericToken = regexp.MustCompile(`-?\d+\.?\d*`)

// ParseName maps the first five numeric tokens of the file's base name, in order,
// to n, t, s, x and p. Directory components are ignored.
func ParseName(path string) (Config, error) {
	name := filepath.Base(path)
	tokens := numericToken.FindAllString(name, -1)
	if len(tokens) < 5 {
		return Config{}, &ParamCountError{Name: name, Found: len(tokens)}
	}
	var vals [5]float64
	for i := range vals {
		v, err := strconv.ParseFloat(strings.TrimSuffix(tokens[i], "."), 64)
		if err != nil {
			return Config{}, fmt.Errorf("%s: parameter %d: %w", name, i, err)
		}
		vals[i] = v
	}
	return Config{
		Nodes:       vals[0],
		Duration:    vals[1],
		Sensitivity: vals[2],
		Scale:       vals[3],
		Ping:        vals[4],
	}, nil
}

// FileName builds the config file name for cfg, e.g. wf_ot_n3_t1_s-99_x1_p83.cfg.
func FileName(prefix string, cfg Config) string {
	return fmt.Sprintf("%s_n%s_t%s_s%s_x%s_p%s.cfg", prefix,
		num(cfg.Nodes), num(cfg.Duration), num(cfg.Sensitivity), num(cfg.Scale), num(cfg.Ping))
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Stem is the config base name without extension, used as the trial key.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

const pingDirective = "nodePing"

// MaxTheoretical sums the ping count (4th token) of every nodePing line.
func MaxTheoretical(configPath string) (int, error) {
	f, err := os.Open(configPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	total := 0
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if !strings.HasPrefix(text, pingDirective) {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 4 {
			return 0, fmt.Errorf("%s:%d: nodePing line has %d fields, want at least 4", configPath, line, len(fields))
		}
		n, err := strconv.Atoi(fields[3])
		if err != nil {
			return 0, fmt.Errorf("%s:%d: ping count: %w", configPath, line, err)
		}
		total += n
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return total, nil
}
