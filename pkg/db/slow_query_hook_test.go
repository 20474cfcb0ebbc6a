package db

import "testing"

func TestDescribeSQL(t *testing.T) {
	cases := []struct {
		sql, op, table string
	}{
		{"SELECT id FROM email_summaries WHERE id = $1", "select", "email_summaries"},
		{"INSERT INTO daily_summaries(date) VALUES ($1)", "insert", "daily_summaries"},
		{`INSERT INTO "vip_contacts"(email, name) VALUES ($1, $2)`, "insert", "vip_contacts"},
		{"update vip_contacts set name = $1", "update", "vip_contacts"},
		{"DELETE FROM configurations", "delete", "configurations"},
		{"CREATE TABLE x (id int)", "create", "unknown"},
		{"", "unknown", "unknown"},
	}
	for _, tc := range cases {
		op, table := describeSQL(tc.sql)
		if op != tc.op || table != tc.table {
			t.Errorf("describeSQL(%q): got (%q, %q), want (%q, %q)", tc.sql, op, table, tc.op, tc.table)
		}
	}
}
