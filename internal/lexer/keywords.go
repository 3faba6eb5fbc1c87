package lexer

// reservedItem pairs a reserved word's spelling with its token kind.
type reservedItem struct {
	val string
	typ Kind
}

// rw indexes reserved Tea keywords by length: a word-length index before a
// linear scan of same-length candidates beats a hash lookup for a keyword
// set this small.
var rw = [...][]reservedItem{
	// One-grams
	{},
	// Two-grams
	{
		{val: "of", typ: KwOf},
		{val: "in", typ: KwIn},
		{val: "is", typ: KwIs},
		{val: "or", typ: KwOr},
		{val: "if", typ: KwIf},
	},
	// Three-grams
	{
		{val: "def", typ: KwDef},
		{val: "pub", typ: KwPub},
		{val: "var", typ: KwVar},
		{val: "use", typ: KwUse},
		{val: "end", typ: KwEnd},
		{val: "and", typ: KwAnd},
		{val: "not", typ: KwNot},
		{val: "for", typ: KwFor},
		{val: "try", typ: KwTry},
	},
	// Four-grams
	{
		{val: "else", typ: KwElse},
		{val: "case", typ: KwCase},
		{val: "test", typ: KwTest},
		{val: "enum", typ: KwEnum},
	},
	// Five-grams
	{
		{val: "const", typ: KwConst},
		{val: "throw", typ: KwThrow},
		{val: "catch", typ: KwCatch},
		{val: "while", typ: KwWhile},
		{val: "until", typ: KwUntil},
		{val: "error", typ: KwError},
	},
	// Six-grams
	{
		{val: "struct", typ: KwStruct},
		{val: "return", typ: KwReturn},
		{val: "unless", typ: KwUnless},
	},
	// Seven-grams
	{},
	// Eight-grams
	{},
}

// isKeyword returns true if s is a reserved Tea keyword, along with its
// Kind. true/false/nil are handled separately by the scanner since they
// double as literal values rather than plain reserved words.
func isKeyword(s string) (bool, Kind) {
	if len(s) == 0 || len(s) > len(rw) {
		return false, Ident
	}
	for _, e1 := range rw[len(s)-1] {
		if e1.val == s {
			return true, e1.typ
		}
	}
	return false, Ident
}
