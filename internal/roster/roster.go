// Package roster loads the course roster that maps groups to repositories.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// MaxStudents is the number of student columns in the roster.
const MaxStudents = 5

const columnCount = 2 + MaxStudents

// Group is one roster row.
type Group struct {
	Number int
	// Students holds the non-empty student cells in column order.
	Students []string
	RepoURL  string
}

// Size returns the number of students in the group.
func (g Group) Size() int {
	return len(g.Students)
}

// Load parses a roster CSV. The header row is skipped; columns are
// group_number, student_1..student_5, repo_url.
func Load(reader io.Reader) ([]Group, error) {
	if reader == nil {
		return nil, fmt.Errorf("roster reader is nil")
	}

	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	var groups []Group
	for header := true; ; header = false {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// *csv.ParseError already names the physical line.
			return nil, fmt.Errorf("read roster: %w", err)
		}
		if header {
			continue
		}
		// Physical line of the record start; quoted cells may span lines.
		line, _ := csvReader.FieldPos(0)
		if len(record) < columnCount {
			return nil, fmt.Errorf("roster line %d: want %d columns, got %d", line, columnCount, len(record))
		}

		number, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("roster line %d: invalid group number %q", line, record[0])
		}

		group := Group{Number: number, RepoURL: strings.TrimSpace(record[columnCount-1])}
		for _, cell := range record[1 : 1+MaxStudents] {
			if student := strings.TrimSpace(cell); student != "" {
				group.Students = append(group.Students, student)
			}
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// LoadFile opens and parses the roster at path.
func LoadFile(path string) ([]Group, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer file.Close()

	return Load(file)
}
