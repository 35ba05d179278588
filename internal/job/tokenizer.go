package job

// Segment is a slice of the raw arguments. Group is 0 for top-level tokens and
// the 1-based bracket group position otherwise. Pos holds the raw argument
// index of each token so later errors can point back at the input.
type Segment struct {
	Group  int
	Tokens []string
	Pos    []int
}

const (
	groupOpen  = "["
	groupClose = "]"
)

type scanState int

const (
	outsideGroup scanState = iota
	insideGroup
)

// Tokenize splits args into segments. All top-level tokens, whether they
// appear before, between or after groups, are collected into one leading
// segment with Group 0; each bracket group follows in input order. Nested,
// unmatched and empty groups are syntax errors.
func Tokenize(args []string) ([]Segment, error) {
	global := Segment{Group: 0}
	var groups []Segment
	var cur *Segment
	openPos := -1
	state := outsideGroup

	for i, tok := range args {
		switch state {
		case outsideGroup:
			switch tok {
			case groupOpen:
				groups = append(groups, Segment{Group: len(groups) + 1})
				cur = &groups[len(groups)-1]
				openPos = i
				state = insideGroup
			case groupClose:
				return nil, &SyntaxError{Pos: i, Token: tok, Message: "unmatched ]"}
			default:
				global.Tokens = append(global.Tokens, tok)
				global.Pos = append(global.Pos, i)
			}
		case insideGroup:
			switch tok {
			case groupOpen:
				return nil, &SyntaxError{Pos: i, Token: tok, Message: "nested groups are not supported"}
			case groupClose:
				if len(cur.Tokens) == 0 {
					return nil, &SyntaxError{Pos: i, Token: tok, Message: "empty group"}
				}
				cur = nil
				state = outsideGroup
			default:
				cur.Tokens = append(cur.Tokens, tok)
				cur.Pos = append(cur.Pos, i)
			}
		}
	}

	if state == insideGroup {
		return nil, &SyntaxError{Pos: openPos, Token: groupOpen, Message: "unmatched ["}
	}

	return append([]Segment{global}, groups...), nil
}
