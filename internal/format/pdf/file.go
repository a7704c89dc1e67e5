package pdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
)

var (
	objHeader = regexp.MustCompile(`(?:^|[\r\n\s])(\d+)\s+(\d+)\s+obj\b`)
	rootRef   = regexp.MustCompile(`/Root\s+(\d+\s+\d+\s+R)`)
	infoRef   = regexp.MustCompile(`/Info\s+(\d+\s+\d+\s+R)`)
	sizeEntry = regexp.MustCompile(`/Size\s+(\d+)`)
	startXref = regexp.MustCompile(`startxref\s+(\d+)`)
)

// stream is a content stream object of the file.
type stream struct {
	num, gen int
	dict     []Token // dictionary tokens from << to >>
	content  *Content
	dirty    bool
}

// file is the object level view of a PDF needed to rewrite content streams.
type file struct {
	raw     []byte
	streams []*stream
}

type object struct {
	num, gen int
	body     int // offset right after "obj"
}

// parseFile locates the content streams of the last revision of every object.
// Streams of pages come first in page order, the rest follow by object number.
func parseFile(raw []byte) (*file, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(raw, "\x00\t\n\f\r "), []byte("%PDF-")) {
		return nil, ferrors.FormatError("missing %PDF header").Build()
	}

	latest := make(map[int]object)
	for _, m := range objHeader.FindAllSubmatchIndex(raw, -1) {
		num, _ := strconv.Atoi(string(raw[m[2]:m[3]]))
		gen, _ := strconv.Atoi(string(raw[m[4]:m[5]]))
		latest[num] = object{num: num, gen: gen, body: m[1]}
	}
	nums := make([]int, 0, len(latest))
	for n := range latest {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	f := &file{raw: raw}
	for _, n := range nums {
		s, err := f.readStream(latest, latest[n])
		if err != nil {
			return nil, err
		}
		if s != nil {
			f.streams = append(f.streams, s)
		}
	}
	f.streams = inPageOrder(f.streams, f.pageContents(latest))
	return f, nil
}

// inPageOrder moves the streams listed in pages to the front, in that order.
func inPageOrder(streams []*stream, pages []int) []*stream {
	byNum := make(map[int]*stream, len(streams))
	for _, s := range streams {
		byNum[s.num] = s
	}
	out := make([]*stream, 0, len(streams))
	used := make(map[int]bool, len(streams))
	for _, n := range pages {
		if s, ok := byNum[n]; ok && !used[n] {
			out = append(out, s)
			used[n] = true
		}
	}
	for _, s := range streams {
		if !used[s.num] {
			out = append(out, s)
		}
	}
	return out
}

// maxPageDepth bounds the page tree walk.
const maxPageDepth = 64

// pageContents returns the object numbers of the page content streams in
// page tree order. It returns nil when the page tree cannot be resolved, for
// example when it lives in compressed object streams.
func (f *file) pageContents(objects map[int]object) []int {
	root := refNum(lastSubmatch(rootRef, f.raw))
	catalog := f.readDict(objects, root)
	if catalog == nil {
		return nil
	}
	var nums []int
	seen := make(map[int]bool)
	var walk func(num, depth int)
	walk = func(num, depth int) {
		if seen[num] || depth > maxPageDepth {
			return
		}
		seen[num] = true
		node := f.readDict(objects, num)
		if node == nil {
			return
		}
		if kids, ok := node["Kids"]; ok {
			for _, kid := range refs(kids) {
				walk(kid, depth+1)
			}
			return
		}
		for _, c := range refs(node["Contents"]) {
			if arr := f.readArray(objects, c); arr != nil {
				nums = append(nums, refs(arr)...)
				continue
			}
			nums = append(nums, c)
		}
	}
	for _, pages := range refs(catalog["Pages"]) {
		walk(pages, 0)
	}
	return nums
}

// readDict returns the entries of the dictionary object num, or nil.
func (f *file) readDict(objects map[int]object, num int) entries {
	obj, ok := objects[num]
	if !ok {
		return nil
	}
	dict := readComposite(&lexer{data: f.raw, pos: obj.body}, KindDictOpen)
	if dict == nil {
		return nil
	}
	return dictEntries(dict)
}

// readArray returns the tokens of the array object num, or nil.
func (f *file) readArray(objects map[int]object, num int) []Token {
	obj, ok := objects[num]
	if !ok {
		return nil
	}
	return readComposite(&lexer{data: f.raw, pos: obj.body}, KindArrayOpen)
}

// readComposite reads a dictionary or array starting with a token of kind
// open, including its delimiters. It returns nil for anything else.
func readComposite(l *lexer, open Kind) []Token {
	first, ok, err := l.next()
	if err != nil || !ok || first.Kind != open {
		return nil
	}
	toks := []Token{first}
	for depth := 1; depth > 0; {
		tok, ok, err := l.next()
		if err != nil || !ok {
			return nil
		}
		switch tok.Kind {
		case KindDictOpen, KindArrayOpen:
			depth++
		case KindDictClose, KindArrayClose:
			depth--
		}
		toks = append(toks, tok)
	}
	return toks
}

// refs returns the object numbers of the indirect references in toks.
func refs(toks []Token) []int {
	var out []int
	for i := 0; i+2 < len(toks); i++ {
		if toks[i].Kind == KindNumber && toks[i+1].Kind == KindNumber &&
			toks[i+2].Kind == KindOperator && toks[i+2].Op() == "R" {
			if n, err := strconv.Atoi(string(toks[i].Raw)); err == nil {
				out = append(out, n)
			}
			i += 2
		}
	}
	return out
}

// refNum parses the object number of a reference such as "1 0 R", or -1.
func refNum(ref string) int {
	fields := strings.Fields(ref)
	if len(fields) == 0 {
		return -1
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return -1
	}
	return n
}

// readStream returns the content stream held by obj, or nil when obj is not
// a decodable content stream.
func (f *file) readStream(objects map[int]object, obj object) (*stream, error) {
	l := &lexer{data: f.raw, pos: obj.body}
	dict := readComposite(l, KindDictOpen)
	if dict == nil {
		return nil, nil
	}
	kw, ok, err := l.next()
	if err != nil || !ok || kw.Kind != KindOperator || kw.Op() != "stream" {
		return nil, nil //nolint:nilerr // plain dictionary object
	}

	entries := dictEntries(dict)
	if !isContentCandidate(entries) {
		return nil, nil
	}

	start := l.pos
	if start < len(f.raw) && f.raw[start] == '\r' {
		start++
	}
	if start < len(f.raw) && f.raw[start] == '\n' {
		start++
	}
	data := f.streamData(objects, entries, start)

	if countNames(entries["Filter"]) > 1 {
		return nil, nil
	}
	switch filter := entries.name("Filter"); filter {
	case "":
	case "FlateDecode":
		if _, hasParms := entries["DecodeParms"]; hasParms {
			return nil, nil
		}
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, streamError(err, obj)
		}
		decoded, err := io.ReadAll(zr)
		if err != nil {
			return nil, streamError(err, obj)
		}
		data = decoded
	default:
		return nil, nil
	}

	content, err := Lex(data)
	if err != nil {
		return nil, nil //nolint:nilerr // binary streams that are not content streams
	}
	if !hasOperator(content, "BT") {
		return nil, nil
	}
	return &stream{num: obj.num, gen: obj.gen, dict: dict, content: content}, nil
}

func streamError(err error, obj object) error {
	return ferrors.WrapError(err, ferrors.CategoryFormat, "cannot decode stream").
		WithContext("object", fmt.Sprintf("%d %d", obj.num, obj.gen)).
		Build()
}

// streamData returns the raw stream bytes, using /Length when it can be
// resolved and the endstream keyword otherwise.
func (f *file) streamData(objects map[int]object, entries entries, start int) []byte {
	if n, ok := f.length(objects, entries); ok && start+n <= len(f.raw) {
		return f.raw[start : start+n]
	}
	end := bytes.Index(f.raw[start:], []byte("endstream"))
	if end < 0 {
		return f.raw[start:]
	}
	data := f.raw[start : start+end]
	data = bytes.TrimSuffix(data, []byte("\n"))
	return bytes.TrimSuffix(data, []byte("\r"))
}

func (f *file) length(objects map[int]object, entries entries) (int, bool) {
	v := entries["Length"]
	switch {
	case len(v) == 1 && v[0].Kind == KindNumber:
		n, err := strconv.Atoi(string(v[0].Raw))
		return n, err == nil
	case len(v) == 3 && v[2].Op() == "R":
		num, _ := strconv.Atoi(string(v[0].Raw))
		obj, ok := objects[num]
		if !ok {
			return 0, false
		}
		l := &lexer{data: f.raw, pos: obj.body}
		tok, ok, err := l.next()
		if err != nil || !ok || tok.Kind != KindNumber {
			return 0, false
		}
		n, err := strconv.Atoi(string(tok.Raw))
		return n, err == nil
	}
	return 0, false
}

func isContentCandidate(e entries) bool {
	if st := e.name("Subtype"); st != "" && st != "Form" {
		return false
	}
	switch e.name("Type") {
	case "ObjStm", "XRef", "Metadata", "EmbeddedFile":
		return false
	}
	for _, k := range []string{"Length1", "Length2", "Length3"} {
		if _, ok := e[k]; ok {
			return false
		}
	}
	return true
}

func hasOperator(c *Content, op string) bool {
	for i := range c.Tokens {
		if c.Tokens[i].Kind == KindOperator && c.Tokens[i].Op() == op {
			return true
		}
	}
	return false
}

// entries maps dictionary keys (without slash) to their value tokens.
type entries map[string][]Token

// name returns the value of key when it is a name, or the first name of an
// array value.
func (e entries) name(key string) string {
	for _, t := range e[key] {
		if t.Kind == KindName {
			return string(t.Raw[1:])
		}
	}
	return ""
}

func countNames(toks []Token) int {
	n := 0
	for _, t := range toks {
		if t.Kind == KindName {
			n++
		}
	}
	return n
}

// dictEntries splits the top level of a dictionary token list into entries.
func dictEntries(dict []Token) entries {
	out := make(entries)
	for i := 1; i < len(dict)-1; {
		if dict[i].Kind != KindName {
			i++
			continue
		}
		key := string(dict[i].Raw[1:])
		n := valueLen(dict[i+1 : len(dict)-1])
		out[key] = dict[i+1 : i+1+n]
		i += 1 + n
	}
	return out
}

// valueLen returns the number of tokens forming the first value of toks.
func valueLen(toks []Token) int {
	if len(toks) == 0 {
		return 0
	}
	switch toks[0].Kind {
	case KindArrayOpen, KindDictOpen:
		depth := 0
		for i, t := range toks {
			switch t.Kind {
			case KindArrayOpen, KindDictOpen:
				depth++
			case KindArrayClose, KindDictClose:
				depth--
			}
			if depth == 0 {
				return i + 1
			}
		}
		return len(toks)
	case KindNumber:
		if len(toks) >= 3 && toks[1].Kind == KindNumber && toks[2].Kind == KindOperator && toks[2].Op() == "R" {
			return 3
		}
	}
	return 1
}

// rewrittenDict drops the length and filter entries of a stream dictionary
// and declares the new ones.
func rewrittenDict(dict []Token, length int) []byte {
	var buf bytes.Buffer
	buf.WriteString("<<")
	inner := dict[1 : len(dict)-1]
	for i := 0; i < len(inner); {
		n := 1
		if inner[i].Kind == KindName {
			n += valueLen(inner[i+1:])
			switch string(inner[i].Raw) {
			case "/Length", "/Filter", "/DecodeParms":
				i += n
				continue
			}
		}
		for _, t := range inner[i : i+n] {
			buf.Write(t.Bytes())
		}
		i += n
	}
	fmt.Fprintf(&buf, " /Length %d /Filter /FlateDecode >>", length)
	return buf.Bytes()
}

// update appends an incremental update holding the rewritten streams.
func (f *file) update() ([]byte, error) {
	var dirty []*stream
	for _, s := range f.streams {
		if s.dirty {
			dirty = append(dirty, s)
		}
	}
	if len(dirty) == 0 {
		return bytes.Clone(f.raw), nil
	}

	root := lastSubmatch(rootRef, f.raw)
	if root == "" {
		return nil, ferrors.FormatError("trailer has no /Root").Build()
	}
	prev := lastSubmatch(startXref, f.raw)
	if prev == "" {
		return nil, ferrors.FormatError("missing startxref").Build()
	}

	out := bytes.NewBuffer(bytes.Clone(f.raw))
	if !bytes.HasSuffix(f.raw, []byte("\n")) {
		out.WriteByte('\n')
	}
	offsets := make([]int, len(dirty))
	size := 0
	for i, s := range dirty {
		var z bytes.Buffer
		zw := zlib.NewWriter(&z)
		if _, err := zw.Write(s.content.Bytes()); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "cannot compress stream").Build()
		}
		if err := zw.Close(); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "cannot compress stream").Build()
		}
		offsets[i] = out.Len()
		fmt.Fprintf(out, "%d %d obj\n", s.num, s.gen)
		out.Write(rewrittenDict(s.dict, z.Len()))
		out.WriteString("\nstream\n")
		out.Write(z.Bytes())
		out.WriteString("\nendstream\nendobj\n")
		size = max(size, s.num+1)
	}

	if n, err := strconv.Atoi(lastSubmatch(sizeEntry, f.raw)); err == nil {
		size = max(size, n)
	}
	xref := out.Len()
	out.WriteString("xref\n")
	for i, s := range dirty {
		fmt.Fprintf(out, "%d 1\n%010d %05d n \n", s.num, offsets[i], s.gen)
	}
	fmt.Fprintf(out, "trailer\n<< /Size %d /Root %s /Prev %s", size, root, prev)
	if info := lastSubmatch(infoRef, f.raw); info != "" {
		fmt.Fprintf(out, " /Info %s", info)
	}
	fmt.Fprintf(out, " >>\nstartxref\n%d\n%%%%EOF\n", xref)
	return out.Bytes(), nil
}

func lastSubmatch(re *regexp.Regexp, data []byte) string {
	all := re.FindAllSubmatch(data, -1)
	if len(all) == 0 {
		return ""
	}
	return string(all[len(all)-1][1])
}
