// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Recording traces from Go source.  A trace captures one innermost
// 'for' loop: the loop body is recorded once to make the invariant
// section and then recorded again, with the variable environment
// carried over, to make the variant section.  Common subexpression
// elimination turns everything the second copy computes from
// unchanging inputs back into the first copy's references, so only
// the genuinely loop-carried work stays in the variant section, tied
// together with PHIs.
//
// Recording starts at the loop top, the way a hot loop would be
// entered, so the loop's variables come into the trace from their
// interpreter slots.  The init statement of the 'for' is never
// recorded.

package front

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/parser"
	"go/token"
	"go/types"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/tools/go/packages"

	. "github.com/s48/tracejit/jit"
	"github.com/s48/tracejit/util"
)

type ParsedFileT struct {
	AstFile   *ast.File
	TypesInfo *types.Info
	FileSet   *token.FileSet
}

// ParseFile parses and type-checks one file.  With nil contents the
// file is read from disk.

func ParseFile(fileName string, fileContents []byte) (*ParsedFileT, error) {
	fileSet := token.NewFileSet()
	// As recommended in the docs, we skip the old, pre-Generic type checking.
	file, err := parser.ParseFile(fileSet,
		fileName,
		fileContents,
		parser.SkipObjectResolution)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", fileName)
	}
	imports := importsT{packages: map[string]*types.Package{}}
	if 0 < len(file.Imports) {
		if err := imports.load(file); err != nil {
			return nil, err
		}
	}
	conf := types.Config{Importer: imports}
	typeInfo := &types.Info{
		Types: map[ast.Expr]types.TypeAndValue{},
		Defs:  map[*ast.Ident]types.Object{},
		Uses:  map[*ast.Ident]types.Object{},
	}
	if _, err := conf.Check("app", fileSet, []*ast.File{file}, typeInfo); err != nil {
		return nil, errors.Wrapf(err, "type checking %s", fileName)
	}
	return &ParsedFileT{AstFile: file, TypesInfo: typeInfo, FileSet: fileSet}, nil
}

// This implements the types.Importer interface.  Imported packages
// are loaded up front with the full driver so their type information
// comes back ready for the checker.

type importsT struct {
	packages map[string]*types.Package
}

func (imports importsT) load(file *ast.File) error {
	paths := []string{}
	for _, spec := range file.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			return errors.Wrapf(err, "import %s", spec.Path.Value)
		}
		Push(&paths, path)
	}
	mode := packages.LoadTypes |
		packages.NeedFiles |
		packages.NeedSyntax |
		packages.NeedTypesInfo
	loaded, err := packages.Load(&packages.Config{Mode: mode}, paths...)
	if err != nil {
		return errors.Wrap(err, "loading imports")
	}
	if 0 < packages.PrintErrors(loaded) {
		return errors.New("imported packages had errors")
	}
	for _, loadedPackage := range loaded {
		imports.packages[loadedPackage.PkgPath] = loadedPackage.Types
	}
	return nil
}

func (imports importsT) Import(path string) (*types.Package, error) {
	loadedPackage := imports.packages[path]
	if loadedPackage == nil {
		return nil, errors.Errorf("package %q not found", path)
	}
	return loadedPackage, nil
}

//----------------------------------------------------------------
// Finding and recording the loops of one function.

func RecordFile(fileName string, fileContents []byte, funcName string,
	params *ParamsT) ([]*TraceT, error) {

	parsed, err := ParseFile(fileName, fileContents)
	if err != nil {
		return nil, err
	}
	return RecordFunc(parsed, funcName, params)
}

// RecordFunc records every loop in the function that the recorder can
// handle.  A loop the recorder cannot handle is logged and skipped;
// the program would just keep interpreting it.

func RecordFunc(parsed *ParsedFileT, funcName string, params *ParamsT) ([]*TraceT, error) {
	decl := findFuncDecl(parsed.AstFile, funcName)
	if decl == nil {
		return nil, errors.Errorf("no function %q", funcName)
	}
	candidates := findLoops(decl)
	traces := []*TraceT{}
	for !candidates.Empty() {
		loop := candidates.Dequeue()
		trace, err := recordLoop(parsed, funcName, loop, params)
		if err != nil {
			logrus.WithError(err).
				WithField("loop", parsed.FileSet.Position(loop.stmt.For).String()).
				Warn("loop not recorded")
			continue
		}
		Push(&traces, trace)
	}
	return traces, nil
}

func findFuncDecl(file *ast.File, name string) *ast.FuncDecl {
	for _, decl := range file.Decls {
		if funcDecl, ok := decl.(*ast.FuncDecl); ok && funcDecl.Name.Name == name {
			return funcDecl
		}
	}
	return nil
}

type loopT struct {
	stmt  *ast.ForStmt
	depth int // number of enclosing for statements
	order int // source position index, for deterministic ties
}

// Innermost loops come out first.  Recording an outer loop runs into
// the inner 'for' statement and aborts, so the inner loops are the
// ones that end up tracing, which is also what a hotness counter
// would pick.

func findLoops(decl *ast.FuncDecl) *util.PriorityQueueT[*loopT] {
	queue := util.MakePriorityQueue(func(x *loopT, y *loopT) bool {
		if x.depth != y.depth {
			return x.depth < y.depth
		}
		return y.order < x.order
	})
	order := 0
	var walk func(node ast.Node, depth int)
	walk = func(node ast.Node, depth int) {
		ast.Inspect(node, func(child ast.Node) bool {
			forStmt, ok := child.(*ast.ForStmt)
			if !ok {
				return true
			}
			queue.Enqueue(&loopT{stmt: forStmt, depth: depth, order: order})
			order++
			walk(forStmt.Body, depth+1)
			return false
		})
	}
	walk(decl.Body, 0)
	return queue
}

func recordLoop(parsed *ParsedFileT, funcName string, loop *loopT,
	params *ParamsT) (trace *TraceT, err error) {

	defer RecoverTraceAbort(&err)
	position := parsed.FileSet.Position(loop.stmt.For)
	rec := &recorderT{
		parsed:  parsed,
		builder: NewBuilder(fmt.Sprintf("%s:%d", funcName, position.Line), params),
		vars:    map[types.Object]*varStateT{},
	}
	if loop.stmt.Cond == nil {
		rec.nyi(loop.stmt.For, "loop with no condition")
	}
	rec.iteration(loop.stmt)
	carried := rec.carriedVars()
	entering := map[types.Object]RefT{}
	for _, obj := range carried {
		entering[obj] = rec.vars[obj].ref
	}
	rec.builder.Loop()
	rec.iteration(loop.stmt)
	for _, obj := range carried {
		rec.builder.Phi(entering[obj], rec.vars[obj].ref)
	}
	return rec.builder.Finish(), nil
}

//----------------------------------------------------------------
// The recorder.

type recorderT struct {
	parsed   *ParsedFileT
	builder  *BuilderT
	vars     map[types.Object]*varStateT
	nextSlot int
}

type varStateT struct {
	ref      RefT
	loaded   bool // came into the trace from its interpreter slot
	assigned bool
}

// Anything the recorder cannot handle aborts this one loop.

func (rec *recorderT) nyi(pos token.Pos, format string, args ...any) {
	AbortTracef(ErrNYI, "%s: %s",
		rec.parsed.FileSet.Position(pos), fmt.Sprintf(format, args...))
}

// One loop iteration: the condition as a guard, then the body, then
// the post statement.

func (rec *recorderT) iteration(loop *ast.ForStmt) {
	rec.guardCond(loop.Cond)
	rec.stmt(loop.Body)
	if loop.Post != nil {
		rec.stmt(loop.Post)
	}
}

// A variable is loop carried if the loop both reads the value coming
// in (its first access was a read) and assigns it somewhere.

func (rec *recorderT) carriedVars() []types.Object {
	carried := util.NewSet[types.Object]()
	for obj, state := range rec.vars {
		if state.loaded && state.assigned {
			carried.Add(obj)
		}
	}
	objs := carried.Members()
	// Sort the variables to get deterministic behavior.
	sort.Slice(objs, func(i int, j int) bool {
		if objs[i].Name() != objs[j].Name() {
			return objs[i].Name() < objs[j].Name()
		}
		return objs[i].Pos() < objs[j].Pos()
	})
	return objs
}

//----------------------------------------------------------------
// Statements.

func (rec *recorderT) stmt(astNode ast.Stmt) {
	switch x := astNode.(type) {
	case *ast.BlockStmt:
		for _, stmt := range x.List {
			rec.stmt(stmt)
		}
	case *ast.AssignStmt:
		rec.assignStmt(x)
	case *ast.IncDecStmt:
		op := OpAdd
		if x.Tok == token.DEC {
			op = OpSub
		}
		obj := rec.identObject(x.X)
		before := rec.readVar(obj, x.X.Pos())
		one := rec.builder.KInt(1)
		if rec.kindOf(obj.Type(), x.X.Pos()) == KindNum {
			one = rec.builder.KNum(1)
		}
		rec.writeVar(obj, rec.builder.Emit(op, before, one))
	case *ast.ForStmt:
		rec.nyi(x.For, "nested loop")
	case *ast.IfStmt:
		rec.nyi(x.If, "branch in the loop body")
	default:
		rec.nyi(astNode.Pos(), "%T statement", astNode)
	}
}

func (rec *recorderT) assignStmt(x *ast.AssignStmt) {
	if len(x.Lhs) != 1 || len(x.Rhs) != 1 {
		rec.nyi(x.TokPos, "multiple assignment")
	}
	obj := rec.identObject(x.Lhs[0])
	switch x.Tok {
	case token.ASSIGN, token.DEFINE:
		rec.writeVar(obj, rec.expr(x.Rhs[0]))
	default:
		op, found := opAssignOps[x.Tok]
		if !found {
			rec.nyi(x.TokPos, "assignment operator %s", x.Tok)
		}
		before := rec.readVar(obj, x.Lhs[0].Pos())
		rec.writeVar(obj, rec.builder.Emit(op, before, rec.expr(x.Rhs[0])))
	}
}

var opAssignOps = map[token.Token]OpT{
	token.ADD_ASSIGN: OpAdd,
	token.SUB_ASSIGN: OpSub,
	token.MUL_ASSIGN: OpMul,
	token.QUO_ASSIGN: OpDiv,
	token.REM_ASSIGN: OpMod,
}

//----------------------------------------------------------------
// Expressions.

func (rec *recorderT) expr(rawExpr ast.Expr) RefT {
	tv, found := rec.parsed.TypesInfo.Types[rawExpr]
	if found && tv.Value != nil {
		return rec.constRef(tv.Value, tv.Type, rawExpr.Pos())
	}
	switch x := rawExpr.(type) {
	case *ast.Ident:
		obj := rec.identObject(x)
		if constObj, ok := obj.(*types.Const); ok {
			return rec.constRef(constObj.Val(), obj.Type(), x.Pos())
		}
		return rec.readVar(obj, x.Pos())
	case *ast.ParenExpr:
		return rec.expr(x.X)
	case *ast.BinaryExpr:
		op, found := binaryOps[x.Op]
		if !found {
			rec.nyi(x.OpPos, "operator %s", x.Op)
		}
		left := rec.expr(x.X)
		return rec.builder.Emit(op, left, rec.expr(x.Y))
	case *ast.UnaryExpr:
		if x.Op == token.SUB {
			return rec.builder.Emit(OpNeg, rec.expr(x.X), 0)
		}
		rec.nyi(x.OpPos, "operator %s", x.Op)
	case *ast.CallExpr:
		rec.nyi(x.Lparen, "function call")
	}
	rec.nyi(rawExpr.Pos(), "%T expression", rawExpr)
	return 0 // not reached
}

var binaryOps = map[token.Token]OpT{
	token.ADD: OpAdd,
	token.SUB: OpSub,
	token.MUL: OpMul,
	token.QUO: OpDiv,
	token.REM: OpMod,
}

func (rec *recorderT) constRef(value constant.Value, typ types.Type, pos token.Pos) RefT {
	if rec.kindOf(typ, pos) == KindNum {
		float, _ := constant.Float64Val(constant.ToFloat(value))
		return rec.builder.KNum(float)
	}
	whole, exact := constant.Int64Val(constant.ToInt(value))
	if !exact {
		rec.nyi(pos, "constant %s does not fit in 64 bits", value)
	}
	return rec.builder.KInt(whole)
}

// The loop condition compiles to a guard: the trace assumes the loop
// keeps looping and exits when the comparison goes the other way.

func (rec *recorderT) guardCond(cond ast.Expr) {
	for {
		paren, ok := cond.(*ast.ParenExpr)
		if !ok {
			break
		}
		cond = paren.X
	}
	x, ok := cond.(*ast.BinaryExpr)
	if !ok {
		rec.nyi(cond.Pos(), "%T loop condition", cond)
	}
	op, found := compareOps[x.Op]
	if !found {
		rec.nyi(x.OpPos, "loop condition operator %s", x.Op)
	}
	left := rec.expr(x.X)
	rec.builder.Guard(op, left, rec.expr(x.Y))
}

var compareOps = map[token.Token]OpT{
	token.LSS: OpLt,
	token.GTR: OpGt,
	token.LEQ: OpLe,
	token.GEQ: OpGe,
	token.EQL: OpEq,
	token.NEQ: OpNe,
}

//----------------------------------------------------------------
// Variables.

func (rec *recorderT) identObject(expr ast.Expr) types.Object {
	ident, ok := expr.(*ast.Ident)
	if !ok {
		rec.nyi(expr.Pos(), "assignment to %T", expr)
	}
	obj := rec.parsed.TypesInfo.ObjectOf(ident)
	if obj == nil {
		panic("no type object for identifier '" + ident.Name + "'")
	}
	return obj
}

// Reading a variable the trace has not touched yet loads it from its
// interpreter slot.  Slots are handed out in first-read order.

func (rec *recorderT) readVar(obj types.Object, pos token.Pos) RefT {
	state, found := rec.vars[obj]
	if found {
		return state.ref
	}
	kind := rec.kindOf(obj.Type(), pos)
	rec.nextSlot++
	ref := rec.builder.Sload(rec.nextSlot, kind)
	rec.vars[obj] = &varStateT{ref: ref, loaded: true}
	return ref
}

func (rec *recorderT) writeVar(obj types.Object, ref RefT) {
	state, found := rec.vars[obj]
	if !found {
		state = &varStateT{}
		rec.vars[obj] = state
	}
	state.ref = ref
	state.assigned = true
}

func (rec *recorderT) kindOf(typ types.Type, pos token.Pos) TypeKindT {
	if basic, ok := typ.Underlying().(*types.Basic); ok {
		info := basic.Info()
		switch {
		case info&types.IsInteger != 0:
			return KindInt
		case info&types.IsFloat != 0:
			return KindNum
		}
	}
	rec.nyi(pos, "type %s", typ)
	return 0 // not reached
}
