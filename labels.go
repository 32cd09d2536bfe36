package percept

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadLabels reads the label set a model was trained with from the given
// text file, one label per line in class index order.  Blank lines and lines
// starting with # are skipped.  Use Config.Object.Labels together with
// Config.Object.BackgroundClass to bind the result to the object pipeline
func LoadLabels(file string) ([]string, error) {

	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	defer f.Close()

	scanner := bufio.NewScanner(f)

	var labels []string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		labels = append(labels, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels found in %s", file)
	}

	return labels, nil
}
