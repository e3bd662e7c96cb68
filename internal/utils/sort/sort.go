package sort

import (
	"errors"
	"fmt"
	"strings"

	"entgo.io/ent/dialect/sql"
)

// Method orders by one column.
type Method struct {
	Column string
	Desc   bool
}

func Contains[T comparable](s []T, e T) bool {
	for _, v := range s {
		if v == e {
			return true
		}
	}
	return false
}

// Parse reads a comma separated list of column[:asc|:desc] terms.
func Parse(raw string) ([]Method, error) {
	var methods []Method
	for _, term := range strings.Split(raw, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		column, dir, _ := strings.Cut(term, ":")
		m := Method{Column: column}
		switch strings.ToLower(dir) {
		case "", "asc":
		case "desc":
			m.Desc = true
		default:
			return nil, fmt.Errorf("invalid sort direction %q", dir)
		}
		methods = append(methods, m)
	}
	return methods, nil
}

// Validate rejects methods that name a column outside columns.
func Validate(columns []string, sorts []Method) error {
	for _, m := range sorts {
		if !Contains(columns, m.Column) {
			return errors.New("column not found")
		}
	}
	return nil
}

func GetSort(columns []string, sorts []Method) (func(s *sql.Selector), error) {
	if err := Validate(columns, sorts); err != nil {
		return nil, err
	}
	return func(s *sql.Selector) {
		for _, m := range sorts {
			if m.Desc {
				s.OrderBy(sql.Desc(s.C(m.Column)))
			} else {
				s.OrderBy(sql.Asc(s.C(m.Column)))
			}
		}
	}, nil
}
