package dbtypes

import (
	"database/sql/driver"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// StringList maps a list of strings onto a Postgres text[] column. The sqlite
// driver used in tests stores the same array literal as text.
type StringList []string

func (l *StringList) Scan(src any) error {
	arr := pq.StringArray(*l)
	if err := arr.Scan(src); err != nil {
		return err
	}
	*l = StringList(arr)
	return nil
}

func (l StringList) Value() (driver.Value, error) {
	return pq.StringArray(l).Value()
}

// GormDataType is the fallback type the schema parser uses before a
// dialect is known.
func (StringList) GormDataType() string {
	return "text"
}

// GormDBDataType picks the column type per dialect.
func (StringList) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

// Contains reports whether value is present in the list.
func (l StringList) Contains(value string) bool {
	for _, candidate := range l {
		if candidate == value {
			return true
		}
	}
	return false
}
