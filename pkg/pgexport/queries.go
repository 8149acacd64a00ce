package pgexport

const (
	querySelectTables = `
SELECT table_name
FROM   information_schema.tables
WHERE  table_schema = $1
AND    table_type = 'BASE TABLE';
`
	querySelectPrimaryKeys = `
SELECT   a.attname
FROM     pg_index i
JOIN     pg_attribute a ON a.attrelid = i.indrelid
                       AND a.attnum   = ANY(i.indkey)
WHERE    i.indrelid = $1::regclass
AND      i.indisprimary
ORDER BY a.attnum;
`
)
