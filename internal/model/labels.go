package model

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

type Labels struct {
	classes []string
	index   map[string]int
}

func NewLabels(classes []string) (*Labels, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("no classes defined")
	}

	l := &Labels{
		classes: make([]string, len(classes)),
		index:   make(map[string]int, len(classes)),
	}
	for i, c := range classes {
		c = strings.TrimSpace(c)
		if c == "" {
			return nil, fmt.Errorf("class %d has an empty label", i)
		}
		if prev, ok := l.index[c]; ok {
			return nil, fmt.Errorf("duplicate label %q at %d and %d", c, prev, i)
		}
		l.classes[i] = c
		l.index[c] = i
	}
	return l, nil
}

// LoadLabels reads one label per line, in class index order. Blank lines and
// lines starting with '#' are skipped.
func LoadLabels(path string) (*Labels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels: %w", err)
	}
	defer f.Close()

	var classes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		classes = append(classes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}

	labels, err := NewLabels(classes)
	if err != nil {
		return nil, fmt.Errorf("invalid labels file %s: %w", path, err)
	}
	return labels, nil
}

func (l *Labels) Decode(i int) (string, error) {
	if i < 0 || i >= len(l.classes) {
		return "", fmt.Errorf("class index %d out of range [0, %d)", i, len(l.classes))
	}
	return l.classes[i], nil
}

func (l *Labels) Contains(label string) bool {
	_, ok := l.index[label]
	return ok
}

func (l *Labels) Len() int {
	return len(l.classes)
}

func (l *Labels) Classes() []string {
	return append([]string(nil), l.classes...)
}
