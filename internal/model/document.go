package model

// Meta keys recorded by the parser for every document.
const (
	MetaParsingMethod = "parsing_method"
	MetaDocumentType  = "document_type"
	MetaEncoding      = "encoding"
	MetaFormat        = "format"
	MetaLineCount     = "line_count"
	MetaOmittedBytes  = "omitted_bytes"
)

// Parsing methods.
const (
	ParsedStructured    = "structured"
	ParsedPlain         = "plain"
	ParsedPlainFallback = "plain_fallback"
)

// ParsedDocument is the normalized text of one source. Owned by the parsing
// stage and never mutated after creation.
type ParsedDocument struct {
	Source LogSource
	Lines  []string
	// StructuralHints come only from the structured extractor (layout,
	// tables, pages). Nil when the plain path produced the document.
	StructuralHints map[string]string
	// Meta carries parser bookkeeping: method, encoding, detected log type.
	Meta      map[string]string
	Truncated bool
}
