package sqlite

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Dump writes every table of the database in a human readable form.
func (s Storage) Dump(ctx context.Context, w io.Writer) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var tables []string
		err := tx.SelectContext(ctx, &tables, `
			SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name
		`)
		if err != nil {
			return err
		}

		for _, table := range tables {
			if err := dumpTable(ctx, tx, w, table); err != nil {
				return fmt.Errorf("dumping %s: %w", table, err)
			}
		}
		return nil
	})
}

func dumpTable(ctx context.Context, tx *sqlx.Tx, w io.Writer, table string) error {
	rows, err := tx.QueryxContext(ctx, `SELECT * FROM `+quoteIdent(table)+` ORDER BY rowid`)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString(table + "\n\t| ")
	for _, c := range cols {
		sb.WriteString(" " + c + " |")
	}
	sb.WriteString("\n")

	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return err
		}
		sb.WriteString("\t| ")
		for _, v := range values {
			sb.WriteString(" " + formatValue(v) + " |")
		}
		sb.WriteString("\n")
	}
	if err := rows.Err(); err != nil {
		return err
	}
	sb.WriteString("----------\n")

	_, err = io.WriteString(w, sb.String())
	return err
}

var valueEscaper = strings.NewReplacer("\r", "<CR>", "\n", "<LF>")

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "<null>"
	case []byte:
		return valueEscaper.Replace(string(v))
	case string:
		return valueEscaper.Replace(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return valueEscaper.Replace(fmt.Sprint(v))
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
