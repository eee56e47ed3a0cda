package queries

// ClassQueries captures class declarations and anonymous default-exported
// classes. Abstract classes are a distinct node kind in the TypeScript
// grammars and are not matched.
const ClassQueries = `
(class_declaration
  name: (_) @class.name) @class.declaration

(export_statement
  value: (class) @class.declaration)
`

// ImportQueries captures import statements with their module specifier.
const ImportQueries = `
(import_statement
  source: (string) @import.source) @import.statement
`
