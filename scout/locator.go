package scout

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"strconv"
	"sync"
)

// Location is what the source file adds to the runtime's file and line.
type Location struct {
	// Column is the 1-based column of the func keyword.
	Column int
	// InferredName is the identifier a function literal is bound to, or the
	// declared name of a function declaration.
	InferredName string
	// Source is the text of the function.
	Source string
}

type parsedFile struct {
	fset *token.FileSet
	file *ast.File
	src  []byte
}

// Locator resolves function positions against Go source files. Parsed files
// are cached; a file that cannot be read or parsed is remembered as missing.
// A Locator is safe for concurrent use.
type Locator struct {
	mu    sync.Mutex
	files map[string]*parsedFile

	// ReadFile loads source files. Defaults to os.ReadFile.
	ReadFile func(name string) ([]byte, error)
}

// NewLocator creates a Locator reading from the local file system.
func NewLocator() *Locator {
	return &Locator{files: make(map[string]*parsedFile), ReadFile: os.ReadFile}
}

// Locate finds the function starting at line in file.
func (l *Locator) Locate(file string, line int) (Location, bool) {
	if l == nil || file == "" || line <= 0 {
		return Location{}, false
	}
	pf := l.parse(file)
	if pf == nil {
		return Location{}, false
	}
	return locate(pf, line)
}

func (l *Locator) parse(name string) *parsedFile {
	l.mu.Lock()
	defer l.mu.Unlock()

	if pf, ok := l.files[name]; ok {
		return pf
	}
	if l.files == nil {
		l.files = make(map[string]*parsedFile)
	}
	read := l.ReadFile
	if read == nil {
		read = os.ReadFile
	}

	var pf *parsedFile
	if src, err := read(name); err == nil {
		fset := token.NewFileSet()
		if f, err := parser.ParseFile(fset, name, src, parser.SkipObjectResolution); err == nil {
			pf = &parsedFile{fset: fset, file: f, src: src}
		}
	}
	l.files[name] = pf
	return pf
}

func locate(pf *parsedFile, line int) (Location, bool) {
	var (
		found  ast.Node
		parent ast.Node
		stack  []ast.Node
	)

	ast.Inspect(pf.file, func(n ast.Node) bool {
		if found != nil {
			return false
		}
		if n == nil {
			stack = stack[:len(stack)-1]
			return false
		}
		switch fn := n.(type) {
		case *ast.FuncLit, *ast.FuncDecl:
			if pf.fset.Position(fn.Pos()).Line == line {
				found = fn
				if len(stack) > 0 {
					parent = stack[len(stack)-1]
				}
				return false
			}
		}
		stack = append(stack, n)
		return true
	})

	if found == nil {
		return Location{}, false
	}

	start := pf.fset.Position(found.Pos())
	end := pf.fset.Position(found.End())
	loc := Location{Column: start.Column}
	if start.Offset >= 0 && end.Offset <= len(pf.src) && start.Offset < end.Offset {
		loc.Source = string(pf.src[start.Offset:end.Offset])
	}

	switch fn := found.(type) {
	case *ast.FuncDecl:
		loc.InferredName = fn.Name.Name
	case *ast.FuncLit:
		loc.InferredName = bindingName(parent, fn)
	}
	return loc, true
}

// bindingName returns the name a function literal is assigned to by its
// parent node.
func bindingName(parent ast.Node, lit *ast.FuncLit) string {
	switch p := parent.(type) {
	case *ast.AssignStmt:
		for i, rhs := range p.Rhs {
			if rhs == lit && i < len(p.Lhs) {
				return exprName(p.Lhs[i])
			}
		}
	case *ast.ValueSpec:
		for i, v := range p.Values {
			if v == lit && i < len(p.Names) {
				return p.Names[i].Name
			}
		}
	case *ast.KeyValueExpr:
		if p.Value == lit {
			return exprName(p.Key)
		}
	}
	return ""
}

func exprName(e ast.Expr) string {
	switch x := e.(type) {
	case *ast.Ident:
		if x.Name == "_" {
			return ""
		}
		return x.Name
	case *ast.SelectorExpr:
		return x.Sel.Name
	case *ast.BasicLit:
		if x.Kind == token.STRING {
			if s, err := strconv.Unquote(x.Value); err == nil {
				return s
			}
		}
		return x.Value
	case *ast.IndexExpr:
		return exprName(x.Index)
	default:
		return ""
	}
}
